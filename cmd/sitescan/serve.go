package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyxxlabs/sitescan/api"
	"github.com/fyxxlabs/sitescan/api/handler"
	"github.com/fyxxlabs/sitescan/cache"
	"github.com/fyxxlabs/sitescan/jobs"
	"github.com/fyxxlabs/sitescan/webhook"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			slog.Info("sitescan starting",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"mode", cfg.Server.Mode,
				"browser", cfg.Browser.Enabled,
				"ai", cfg.AI.Enabled(),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := buildPipeline(cfg)
			defer p.Close()

			manager := jobs.NewManager(p.runner, jobs.Options{
				Cache:  cache.New(cfg.Cache.MaxEntries, cfg.Scan.JobTTL),
				Sender: webhook.NewSender(nil),
				TTL:    cfg.Scan.JobTTL,
			})
			manager.StartCleanup(ctx)
			defer manager.Shutdown()

			// A nil *scraper.Scraper must not become a non-nil interface.
			var pool handler.PoolStatser
			if p.scraper != nil {
				pool = p.scraper
			}

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(ctx, cfg, manager, pool, time.Now()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("HTTP server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
				slog.Info("shutdown signal received")
			}

			// Give in-flight requests 5 seconds to complete.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}
			slog.Info("sitescan stopped")
			return nil
		},
	}
}
