package main

import (
	"github.com/aretw0/funnel/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <funnel-id>",
	Short: "Export the funnel graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of a funnel. With --session the
visitor's current node and the nodes before it are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		return cli.Graph(cmd.Context(), cmd.OutOrStdout(), st.Definitions, st.Sessions, args[0], sessionID)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the position of this session")
}
