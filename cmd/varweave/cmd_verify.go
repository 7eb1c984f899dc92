package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"varweave/internal/modfile"
	"varweave/internal/signing"
)

// verifyCmd checks a module's strong-name signature
var verifyCmd = &cobra.Command{
	Use:   "verify <module>",
	Short: "Check a module's strong-name signature",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	m, err := modfile.Load(args[0])
	if err != nil {
		return err
	}
	if err := signing.Verify(m); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: signature valid (public key token %s)\n", args[0], signing.Token(m.PublicKey))
	return nil
}
