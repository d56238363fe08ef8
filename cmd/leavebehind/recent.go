package main

import (
	"sort"

	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Display the recently used folders",
	RunE:  runRecent,
}

func init() {
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	cfg := manager.GetConfig()
	credPath, tokenPath := credentialPaths()
	env, err := openEnvironment(cmd.Context(), cfg, credPath, tokenPath)
	if err != nil {
		return err
	}
	defer env.Close()

	entries, err := env.recent.Load(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		pterm.Info.Println("no recent folders")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(recentTable(entries)).Render()
}

// recentTable lists entries most recently used first
func recentTable(entries []recent.Entry) pterm.TableData {
	sorted := append([]recent.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Touched.After(sorted[j].Touched)
	})
	data := pterm.TableData{{"Folder", "Name", "Last used"}}
	for _, e := range sorted {
		data = append(data, []string{e.ID, e.Name, e.Touched.Format("2006-01-02 15:04")})
	}
	return data
}
