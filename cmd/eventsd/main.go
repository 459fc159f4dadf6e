// cmd/eventsd is the campus events façade daemon. It wires the state store,
// backend client, aggregator, and checkout reconciler behind the HTTP
// server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/campushub/campus-events/internal/api"
	"github.com/campushub/campus-events/internal/catalog"
	"github.com/campushub/campus-events/internal/checkout"
	"github.com/campushub/campus-events/internal/config"
	"github.com/campushub/campus-events/internal/server"
	"github.com/campushub/campus-events/internal/statestore"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "eventsd",
		Short:   "Campus events catalog, cart, and checkout façade",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP façade",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.AddCommand(serve)
	return root
}

func run(ctx context.Context, cfg config.Config) error {
	logger := newLogger(cfg.LogLevel)

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	backend := api.NewClient(cfg.Backend.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
		api.WithLogger(logger),
	)

	aggregator := catalog.New(backend, logger)

	recOpts := []checkout.ReconcilerOption{
		checkout.WithCurrency(cfg.Payments.Currency),
		checkout.WithLogger(logger),
	}
	if cfg.Payments.ProviderURL != "" {
		recOpts = append(recOpts, checkout.WithCardConfirmer(
			checkout.NewProviderConfirmer(cfg.Payments.ProviderURL, nil)))
	}
	reconciler := checkout.NewReconciler(backend, recOpts...)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.New(store, aggregator, reconciler, logger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (statestore.Store, func(), error) {
	switch cfg.State.Driver {
	case "postgres":
		store, err := statestore.NewPostgres(ctx, cfg.State.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("state store ready", slog.String("driver", "postgres"))
		return store, store.Close, nil
	case "file":
		store, err := statestore.NewFile(cfg.State.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("state store ready", slog.String("driver", "file"), slog.String("path", cfg.State.Path))
		return store, func() {}, nil
	default:
		logger.Info("state store ready", slog.String("driver", "memory"))
		return statestore.NewMemory(), func() {}, nil
	}
}
