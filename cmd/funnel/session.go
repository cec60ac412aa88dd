package main

import (
	"strings"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage visitor sessions",
	Long:  `List, inspect and abandon the sessions stored by the configured backend.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		funnelID, _ := cmd.Flags().GetString("funnel")
		status, _ := cmd.Flags().GetString("status")
		return cli.ListSessions(cmd.Context(), cmd.OutOrStdout(), st.Sessions, cli.SessionFilter{
			FunnelID: funnelID,
			Status:   domain.SessionStatus(strings.ToUpper(status)),
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, _, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		return cli.InspectSession(cmd.Context(), cmd.OutOrStdout(), st.Sessions, args[0])
	},
}

var sessionAbandonCmd = &cobra.Command{
	Use:   "abandon <session-id>...",
	Short: "Abandon one or more active sessions",
	Long:  `Ends the sessions as ABANDONED and drops their pending delays.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, logger, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		engine, err := cli.NewEngine(cfg, st, logger)
		if err != nil {
			return err
		}
		return cli.AbandonSessions(cmd.Context(), cmd.OutOrStdout(), engine, args)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionAbandonCmd)

	sessionLsCmd.Flags().String("funnel", "", "Only list sessions of this funnel")
	sessionLsCmd.Flags().String("status", "", "Only list sessions with this status (active, completed, abandoned, paid)")
}
