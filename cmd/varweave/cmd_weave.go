package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"varweave/internal/config"
	"varweave/internal/logging"
	"varweave/internal/pipeline"
	"varweave/internal/weave"
)

var (
	weaveOutput       string
	covariantName     string
	contravariantName string
	signOutput        bool
	keyFile           string
	dryRun            bool
)

// weaveCmd rewrites one module document
var weaveCmd = &cobra.Command{
	Use:   "weave <module>",
	Short: "Apply marker-requested variance to a module",
	Long: `Loads a module document (.yaml, .yml or .json), turns every marked
generic parameter covariant or contravariant, removes the marker usages
and writes the result.

The module is written back in place unless --output is given. With
--output the result is always written, changed or not. The command fails
when the rewrite logged errors, such as a parameter marked both ways.

Example:
  varweave weave obj/Acme.Collections.yaml
  varweave weave obj/Acme.yaml -o bin/Acme.yaml --sign --key-file acme.pem`,
	Args: cobra.ExactArgs(1),
	RunE: runWeave,
}

func init() {
	weaveCmd.Flags().StringVarP(&weaveOutput, "output", "o", "", "Output path (default: rewrite in place)")
	weaveCmd.Flags().StringVar(&covariantName, "covariant-name", "", "Covariant marker attribute name")
	weaveCmd.Flags().StringVar(&contravariantName, "contravariant-name", "", "Contravariant marker attribute name")
	weaveCmd.Flags().BoolVar(&signOutput, "sign", false, "Re-sign the module after a rewrite")
	weaveCmd.Flags().StringVar(&keyFile, "key-file", "", "Strong-name key file (implies --sign)")
	weaveCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
}

// applyWeaveFlags layers command-line flags over the loaded config.
func applyWeaveFlags(c *config.Config) {
	if covariantName != "" {
		c.Markers.Covariant = covariantName
	}
	if contravariantName != "" {
		c.Markers.Contravariant = contravariantName
	}
	if signOutput {
		c.Signing.Enabled = true
	}
	if keyFile != "" {
		c.Signing.KeyFile = keyFile
		c.Signing.Enabled = true
	}
}

func runWeave(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c := currentConfig()
	applyWeaveFlags(c)

	store, err := openLedger()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	task := &pipeline.Task{
		Config: c,
		Logger: logging.Get(logging.CategoryWeave),
		Ledger: store,
	}
	out, err := task.Run(ctx, pipeline.Request{Input: args[0], Output: weaveOutput, DryRun: dryRun})
	if err != nil {
		return err
	}

	printOutcome(cmd.OutOrStdout(), out, dryRun)
	if out.HasErrors() {
		return fmt.Errorf("weave of %s logged %d error(s)", out.Input, out.Errors)
	}
	return nil
}

func printOutcome(w io.Writer, out *pipeline.Outcome, dry bool) {
	for _, e := range out.Events {
		if e.Severity < weave.SeverityWarning {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", e.Severity, e.Message)
	}

	switch {
	case dry && out.Changed:
		fmt.Fprintf(w, "%s: would patch %d parameter(s) (dry run)\n", out.Input, out.Patched)
	case out.Changed:
		fmt.Fprintf(w, "%s: patched %d parameter(s) -> %s\n", out.Input, out.Patched, out.Output)
	case out.Written:
		fmt.Fprintf(w, "%s: no variance changes, copied to %s\n", out.Input, out.Output)
	default:
		fmt.Fprintf(w, "%s: no variance changes\n", out.Input)
	}
	if out.Signed {
		fmt.Fprintf(w, "%s: signed\n", out.Output)
	}
}
