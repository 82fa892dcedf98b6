package main

import (
	"context"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/internal/storage"
	"github.com/saker-ai/spot-sdk/pkg/spot"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List flushed programs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := storage.NewJournal(cfg.JournalDir)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOMMANDS\tRESULT")
		for _, e := range journal.List() {
			result := fmt.Sprintf("valid=%t", e.Valid)
			if !e.Submitted() {
				result = "failed: " + e.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Name, len(e.Commands), result)
		}
		return w.Flush()
	},
}

var resubmitCmd = &cobra.Command{
	Use:   "resubmit [id]",
	Short: "Submit a journaled program again",
	Long: `Reads a program from the journal and submits it to the control server.
The new attempt is journaled; the old entry is removed once the server has
answered.

Example:
  spotctl journal
  spotctl journal resubmit 2026-03-01_12-00-00_6f1c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := storage.NewJournal(cfg.JournalDir)
		if err != nil {
			return err
		}
		endpoints := spot.EndpointsFor(cfg.ServerAddr)
		store := spot.NewProgramStore(endpoints.Program, &http.Client{Timeout: cfg.HTTPTimeout}, logger)

		valid, err := resubmit(cmd.Context(), journal, store, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valid=%t\n", valid)
		return nil
	},
}

func init() {
	journalCmd.AddCommand(resubmitCmd)
}

// resubmit sends a journaled program again and records the new outcome. The
// original entry is deleted only when the server answered.
func resubmit(ctx context.Context, journal *storage.Journal, store *spot.ProgramStore, id string) (bool, error) {
	entry, err := journal.Get(id)
	if err != nil {
		return false, fmt.Errorf("journal entry %s: %w", id, err)
	}
	program := entry.Program()

	valid, err := store.Submit(ctx, program)
	rec := spot.ProgramRecord{Program: program, Valid: valid, Err: err, SubmittedAt: time.Now()}
	if recErr := journal.Record(rec); recErr != nil {
		if logger != nil {
			logger.Warn("program journal write failed", zap.String("program", program.Name), zap.Error(recErr))
		}
		if err == nil {
			return valid, fmt.Errorf("record resubmission: %w", recErr)
		}
	}
	if err != nil {
		return false, err
	}
	journal.Delete(id)
	return valid, nil
}
