package main

import (
	"fmt"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [funnel-id...]",
	Short: "Check funnel definitions for consistency",
	Long: `Reports broken button targets, duplicate or unknown nodes and payment nodes
without a price. Nodes no visitor can reach are reported as warnings.
Without arguments every funnel is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := cli.Validate(cmd.Context(), cmd.OutOrStdout(), st.Definitions, args); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
