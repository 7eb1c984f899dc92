package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"varweave/internal/ledger"
)

var historyLimit int

// historyCmd lists recent runs from the ledger
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent weave runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openLedger()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("the run ledger is disabled (ledger.enabled: false)")
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), runs)
	return nil
}

func printHistory(w io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%-19s  %-8s  %-7s  %5s  %4s  %-12s  %s",
		"STARTED", "ID", "RESULT", "PARAM", "ERR", "DIGEST", "INPUT")))
	for _, r := range runs {
		result := "same"
		switch {
		case r.DryRun:
			result = "dry-run"
		case r.Changed && r.Signed:
			result = "signed"
		case r.Changed:
			result = "patched"
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%-19s  %-8s  %-7s  %5d  %4d  %-12s  %s\n",
			r.StartedAt.Local().Format(time.DateTime), id, result, r.Patched, r.Errors,
			ledger.ShortDigest(r.OutputDigest), r.Input)
	}
}
