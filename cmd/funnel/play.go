package main

import (
	"os"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <funnel-id>",
	Short: "Walk through a funnel in the terminal",
	Long: `Plays a funnel as a visitor. Type the number of a button to pick it, any
other text as a free-text reply, /pay to confirm a pending payment and /quit
to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		visitor, _ := cmd.Flags().GetString("visitor")
		plain, _ := cmd.Flags().GetBool("plain")
		quiet, _ := cmd.Flags().GetBool("quiet")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		return cli.RunPlay(sigCtx, cfg, cli.PlayOptions{
			FunnelID:  args[0],
			VisitorID: visitor,
			Plain:     plain,
			Quiet:     quiet,
		}, os.Stdin, cmd.OutOrStdout(), logger)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("visitor", "local", "Visitor ID to play as")
	playCmd.Flags().Bool("plain", false, "Print raw markdown instead of rendering it")
	playCmd.Flags().BoolP("quiet", "q", false, "Hide the banner and system messages")
}
