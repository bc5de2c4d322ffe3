package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/cadence/internal/cli"
	"github.com/aretw0/cadence/pkg/adapters/mcp"
	"github.com/aretw0/cadence/pkg/session"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes dialogue sessions as MCP tools (start_dialogue, step, submit_choice,
reset_line, get_variables) and the program list as a resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")

		// Logs must never corrupt JSON-RPC on Stdout.
		log.SetOutput(os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := newEngine()
		if err != nil {
			return err
		}
		persistence, err := cli.OpenStore(ctx, app.cfg, app.logger)
		if err != nil {
			return err
		}
		defer persistence.Close()

		dispatcher, err := cli.HookDispatcher(app.cfg, app.logger)
		if err != nil {
			return err
		}
		mgr := session.NewManager(eng, persistence.Store,
			session.WithLocker(persistence.Locker),
			session.WithAutoSave(true),
			session.WithLogger(app.logger),
		)
		srv := mcp.NewServer(mgr, mcp.WithDispatcher(dispatcher), mcp.WithLogger(app.logger))

		switch transport {
		case "stdio":
			app.logger.Info("starting cadence MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			app.logger.Info("starting cadence MCP server (sse)", "addr", addr)
			if err := srv.ServeSSE(ctx, addr, baseURL); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
				return err
			}
			app.logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced to SSE clients")
}
