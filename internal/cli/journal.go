package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/turnlink/internal/journal"
)

var journalFrom uint64

var journalCmd = &cobra.Command{
	Use:   "journal <path>",
	Short: "Print a run journal",
	Long: `Prints the entries of a journal written by "turnlink run --journal".

Example:
  turnlink journal walk.ndjson --from 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJournal(os.Stdout, args[0], journalFrom)
	},
}

func init() {
	journalCmd.Flags().Uint64Var(&journalFrom, "from", 0, "first sequence number to print")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(w io.Writer, path string, from uint64) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	entries, err := journal.Read(path, from)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}
	for _, e := range entries {
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(w, "%4d  %s  %-8s  %-21s  %s\n", e.Seq, e.Time.UTC().Format(time.RFC3339), run, e.Kind, e.Text)
	}
	return nil
}
