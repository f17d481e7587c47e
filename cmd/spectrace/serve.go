package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/spectrace/engine"
	"github.com/c360studio/spectrace/fetch"
)

func serveCmd() *cobra.Command {
	var (
		listen  string
		natsURL string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coverage daemon",
		Long: `Serves live coverage data over a JSON HTTP API. The daemon rebuilds on
file changes and supports an editor overlay for unsaved buffers, so tooling
always sees coverage for what is on screen, not just what is on disk.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logger := setupLogging(logLevel)

			root, cfgPath, err := locateConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := engine.NewMetrics()
			opts := []engine.Option{
				engine.WithLogger(logger),
				engine.WithRemote(fetch.NewClient()),
				engine.WithMetrics(metrics),
			}

			e, err := engine.New(ctx, root, cfgPath, opts...)
			if err != nil {
				return err
			}
			cfg := e.Config()

			if natsURL == "" {
				natsURL = cfg.Serve.NATSURL
			}
			if natsURL != "" {
				publisher, err := engine.NewPublisher(natsURL)
				if err != nil {
					return err
				}
				defer publisher.Close()
				// Attach after the initial build; startup is not an event.
				engine.WithPublisher(publisher)(e)
			}

			if watch {
				debounce, _ := time.ParseDuration(cfg.Serve.DebounceDelay)
				watcher, err := engine.NewWatcher(e, debounce, logger)
				if err != nil {
					return err
				}
				if err := watcher.Start(ctx); err != nil {
					return err
				}
				defer watcher.Stop()
			}

			if listen == "" {
				listen = cfg.Serve.Listen
			}

			mux := http.NewServeMux()
			engine.NewHTTPHandler(e, logger).RegisterHTTPHandlers(mux)
			mux.Handle("/metrics", metrics.Handler())

			srv := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				fmt.Printf("%s serving on http://%s (version %d)\n", appName, listen, e.Version())
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "Publish rebuild events to this NATS server")
	cmd.Flags().BoolVar(&watch, "watch", true, "Rebuild on file changes")
	return cmd
}
