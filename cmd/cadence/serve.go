package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/cadence/internal/cli"
	httpAdapter "github.com/aretw0/cadence/pkg/adapters/http"
	"github.com/aretw0/cadence/pkg/observability"
	"github.com/aretw0/cadence/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes sessions over a JSON API described by /openapi.yaml, with
server-sent events per session and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			app.cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		watch, _ := cmd.Flags().GetBool("watch")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}
		eng, err := newEngine(metrics.Hooks())
		if err != nil {
			return err
		}
		if watch {
			if err := eng.AutoReload(ctx); err != nil {
				return err
			}
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
		handler, err := httpAdapter.NewHandler(mgr,
			httpAdapter.WithDispatcher(dispatcher),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithLogger(app.logger),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              app.cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.logger.Info("starting cadence server", "addr", srv.Addr, "repo", app.cfg.Repo, "store", app.cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
		}

		app.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Warn("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("watch", "w", false, "Hot reload changed programs")
}
