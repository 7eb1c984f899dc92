package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"varweave/internal/logging"
	"varweave/internal/pipeline"
	"varweave/internal/watch"
)

var watchOutput string

// watchCmd re-weaves a module whenever it changes
var watchCmd = &cobra.Command{
	Use:   "watch <module>",
	Short: "Re-weave a module every time it is rebuilt",
	Long: `Runs weave once, then again each time the module document changes.
Rapid successive writes are coalesced (watch.debounce in the config).
Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "Output path (default: rewrite in place)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c := currentConfig()
	store, err := openLedger()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	task := &pipeline.Task{Config: c, Logger: logging.Get(logging.CategoryWeave), Ledger: store}
	req := pipeline.Request{Input: args[0], Output: watchOutput}

	out, err := task.Run(ctx, req)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out, false)

	w, err := watch.New(task, req, c.GetDebounce())
	if err != nil {
		return err
	}
	w.OnRun = func(out *pipeline.Outcome, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "weave failed: %v\n", err)
			return
		}
		printOutcome(cmd.OutOrStdout(), out, false)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	<-ctx.Done()
	stats := w.Stats()
	currentLogger().Info("watch stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("changed", stats.Changed),
		zap.Int("failures", stats.Failures))
	return nil
}
