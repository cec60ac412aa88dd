package main

import (
	"context"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the funnel server",
	Long: `Starts the HTTP API, the durable delay scheduler and, when a bot token is
configured, the Discord bot. Overdue delays from a previous run fire on start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
		}
		watch, _ := cmd.Flags().GetBool("watch")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		err = cli.Serve(sigCtx, cfg, cli.ServeOptions{Watch: watch}, logger)
		if sig := sigCtx.Signal(); sig != nil {
			logger.Info("Shutdown requested", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http_addr)")
	serveCmd.Flags().Bool("watch", false, "Reload funnel definitions when their files change")
}
