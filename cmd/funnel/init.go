package main

import (
	"fmt"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a sample funnel to start from",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "funnels"
		if len(args) > 0 {
			dir = args[0]
		}
		id, _ := cmd.Flags().GetString("id")

		path, err := cli.Scaffold(dir, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s. Try: funnel play %s --dir %s\n", path, id, dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("id", "welcome", "ID of the generated funnel")
}
