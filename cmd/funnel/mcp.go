package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aretw0/funnel"
	"github.com/aretw0/funnel/internal/cli"
	"github.com/aretw0/funnel/pkg/adapters/mcp"
	"github.com/aretw0/funnel/pkg/payments"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the funnel engine as an MCP Server.
This allows AI agents to drive visitor sessions through tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, logger, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		engine, err := cli.NewEngine(cfg, st, logger,
			funnel.WithPaymentInitiator(payments.NewDemo(payments.WithBaseURL(cfg.Payments.BaseURL), payments.WithLogger(logger))),
		)
		if err != nil {
			return err
		}
		srv := mcp.NewServer(engine, engine.Definitions(), funnel.Version, mcp.WithLogger(logger))

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		go func() {
			if err := engine.Run(sigCtx); err != nil {
				logger.Error("Scheduler stopped", "err", err)
			}
		}()

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting Funnel MCP Server (Stdio)")
			if err := srv.ServeStdio(); err != nil {
				return fmt.Errorf("MCP server execution failed: %w", err)
			}
		case "sse":
			logger.Info("Starting Funnel MCP Server (SSE)", "port", port)
			if err := srv.ServeSSE(sigCtx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("MCP server execution failed: %w", err)
			}
			logger.Info("MCP Server stopped gracefully")
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
