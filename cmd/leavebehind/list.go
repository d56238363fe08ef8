package main

import (
	"fmt"
	"strings"

	"github.com/ajramos/leavebehind/internal/services"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "Display the conversations of a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := manager.GetConfig()
	if len(args) == 1 {
		cfg.Folder = args[0]
	}
	credPath, tokenPath := credentialPaths()
	env, err := openEnvironment(cmd.Context(), cfg, credPath, tokenPath)
	if err != nil {
		return err
	}
	defer env.Close()

	env.mailbox.SetFolder(cfg.Folder)
	ids, err := env.mailbox.Refresh(cmd.Context())
	if err != nil {
		return fmt.Errorf("cannot list %s: %w", cfg.Folder, err)
	}
	headers, err := env.mailbox.Headers(cmd.Context(), ids)
	if err != nil {
		pterm.Warning.Printfln("some headers could not be loaded: %v", err)
	}
	pterm.DefaultSection.Printfln("%s (%d)", cfg.Folder, len(ids))
	return pterm.DefaultTable.WithHasHeader().WithData(headerTable(ids, headers)).Render()
}

func headerTable(ids []string, headers map[string]services.Header) pterm.TableData {
	data := pterm.TableData{{"ID", "From", "Subject", "Received", "Labels"}}
	for _, id := range ids {
		h := headers[id]
		received := ""
		if !h.Received.IsZero() {
			received = h.Received.Format("2006-01-02 15:04")
		}
		data = append(data, []string{id, h.Sender, h.Subject, received, strings.Join(h.Labels, ", ")})
	}
	return data
}
