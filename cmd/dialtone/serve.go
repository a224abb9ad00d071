package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/dialtone"
	"github.com/aretw0/dialtone/internal/presentation/tui"
	httpAdapter "github.com/aretw0/dialtone/pkg/adapters/http"
	"github.com/aretw0/dialtone/pkg/observability"
	"github.com/aretw0/dialtone/pkg/realtime"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Starts the carrier webhook server. Flow documents found in --flows are
deployed at startup and bound to the numbers they declare.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(dialtone.Version))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stores, err := openBackends(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stores.Close()

		metrics := observability.NewMetrics()
		hub := realtime.NewHub(cfg.EventWindow, logger)
		publishers := realtime.Fanout{hub, metrics}

		if cfg.MonitorURL != "" {
			client := realtime.NewClient(realtime.ClientOptions{URL: cfg.MonitorURL, Logger: logger})
			publishers = append(publishers, client)
			go func() {
				if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Realtime monitor stopped", "err", err)
				}
			}()
		}

		opts := []dialtone.Option{
			dialtone.WithLogger(logger),
			dialtone.WithSessionStore(stores.sessions),
			dialtone.WithRouteStore(stores.routes),
			dialtone.WithPublisher(publishers),
			dialtone.WithRouteCacheTTL(cfg.RouteTTL),
			dialtone.WithLifecycleHooks(observability.Combine(
				metrics.Hooks(),
				observability.LoggingHooks(logger),
			)),
		}
		if stores.locker != nil {
			opts = append(opts, dialtone.WithLocker(stores.locker))
		}
		engine := dialtone.New(opts...)

		if cfg.FlowsDir != "" {
			graphs, err := engine.LoadDir(ctx, cfg.FlowsDir)
			if err != nil {
				return fmt.Errorf("deploy flows: %w", err)
			}
			logger.Info("Flows deployed", "dir", cfg.FlowsDir, "count", len(graphs))
		}

		janitor := engine.NewJanitor(cfg.IdleTimeout, cfg.SweepInterval)
		janitor.OnSweep = metrics.ObserveSweep
		if err := janitor.Start(); err != nil {
			return err
		}
		defer janitor.Stop()

		srv := &http.Server{
			Addr: cfg.Addr,
			Handler: engine.Handler(
				httpAdapter.WithBaseURL(cfg.BaseURL),
				httpAdapter.WithStepTimeout(cfg.StepTimeout),
				httpAdapter.WithEvents(hub),
				httpAdapter.WithMetrics(metrics.Handler()),
				httpAdapter.WithStepObserver(metrics.ObserveStep),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting dialtone server", "addr", srv.Addr, "base_url", cfg.BaseURL,
				"session_store", cfg.SessionStore, "route_store", cfg.RouteStore)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)

			// Give outstanding callbacks a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			logger.Info("Dialtone server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.String("addr", "", "Listen address (default :8080)")
	f.String("base-url", "", "Public URL carriers use to reach this server")
	f.String("flows", "", "Directory of flow documents to deploy at startup")
	f.String("store", "", "Session store: memory, file or redis")
	f.String("session-dir", "", "Directory for the file session store")
	f.String("route-store", "", "Route store: memory, redis or sqlite")
	f.String("redis-addr", "", "Redis address for the redis stores")
	f.String("sqlite-dsn", "", "SQLite database for the sqlite route store")
	f.String("monitor-url", "", "Websocket URL of an external call monitor")
	f.Duration("idle-timeout", 0, "Reclaim sessions idle for longer than this")
	f.Duration("sweep-interval", 0, "How often idle sessions are reclaimed")
	f.Duration("step-timeout", 0, "Time budget for one carrier callback")
	f.BoolP("quiet", "q", false, "Do not print the banner")
}
