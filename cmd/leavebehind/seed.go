package main

import (
	"fmt"
	"time"

	"github.com/ajramos/leavebehind/internal/config"
	"github.com/ajramos/leavebehind/internal/db"
	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the local mailbox with sample conversations",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 25, "number of conversations")
	rootCmd.AddCommand(seedCmd)
}

var (
	sampleSenders = []string{
		"Ana Lima <ana@example.com>",
		"Billing <billing@example.com>",
		"Build Bot <ci@example.com>",
		"Marta Ruiz <marta@example.com>",
		"Newsletter <news@example.com>",
	}
	sampleSubjects = []string{
		"Lunch on Friday?",
		"Your invoice is ready",
		"Build #%d failed",
		"Notes from the planning meeting",
		"This week in mail clients",
	}
	sampleLabels = [][]string{
		{operation.FolderInbox},
		{operation.FolderInbox, "Receipts"},
		{operation.FolderInbox, "Work"},
		{operation.FolderInbox, "Work", operation.FolderStarred},
		{operation.FolderInbox, "Newsletters"},
	}
)

// sampleMessages builds n deterministic conversations, newest first
func sampleMessages(n int, now time.Time) ([]db.Message, [][]string) {
	msgs := make([]db.Message, 0, n)
	labels := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		k := i % len(sampleSenders)
		subject := sampleSubjects[k]
		if k == 2 {
			subject = fmt.Sprintf(subject, 100+i)
		}
		msgs = append(msgs, db.Message{
			ID:         fmt.Sprintf("seed-%03d", i+1),
			Sender:     sampleSenders[k],
			Subject:    subject,
			Snippet:    "Sample conversation " + fmt.Sprint(i+1),
			ReceivedAt: now.Add(-time.Duration(i) * 3 * time.Hour).Unix(),
		})
		labels = append(labels, sampleLabels[k])
	}
	return msgs, labels
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := manager.GetConfig()
	if seedCount <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if cfg.Backend != config.BackendLocal {
		pterm.Warning.Printfln("backend is %s, seeding the local database anyway", cfg.Backend)
	}
	store, err := db.Open(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer store.Close()

	msgs, labels := sampleMessages(seedCount, time.Now())
	if err := db.NewMessageStore(store, cfg.Account, cfg.Folder).Upsert(cmd.Context(), msgs, labels); err != nil {
		return err
	}
	pterm.Success.Printfln("seeded %d conversations into %s", len(msgs), cfg.DatabasePath)
	return nil
}
