package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/bridge"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.RuntimeConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start Chrome and the fill server",
		Long: `Launch Chrome (or attach to CDP_URL) and serve the fill API.

Every tab opened by the server gets the value-setter capture script
before page scripts run, so framework-managed inputs see filled values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	cmd.Flags().BoolVar(&cfg.Headless, "headless", cfg.Headless, "run Chrome headless")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.RuntimeConfig) error {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	mgr, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	b := bridge.New(context.Background(), nil, cfg)
	if err := b.EnsureChrome(cfg); err != nil {
		slog.Error("chrome failed to start",
			"err", err,
			"hint", "delete the profile directory or set CDP_URL",
			"profile", cfg.ProfileDir,
		)
		return err
	}
	b.RegisterInitialTab()

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go b.CleanStaleTabs(cleanupCtx, 30*cfg.ActionTimeout)

	h := handlers.New(b, cfg, mgr, newEngine(cfg, nil), newTerminalNotifier(cmd.ErrOrStderr()))

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down...")
			cleanupCancel()
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("shutdown", "err", err)
			}
			if cfg.CdpURL == "" {
				bridge.MarkCleanExit(cfg.ProfileDir)
			}
			b.Close()
			slog.Info("chrome closed")
		})
	}
	srv.Handler = h.Handler(doShutdown)

	setupSignalHandler(doShutdown, func() {
		cleanupCancel()
		b.Close()
	})

	slog.Info("typeless serving", "addr", cfg.ListenAddr(), "cdp", cfg.CdpURL, "store", cfg.StoreDriver)
	if cfg.Token != "" {
		slog.Info("auth enabled")
	} else {
		slog.Info("auth disabled (set TYPELESS_TOKEN to enable)")
	}

	go runStartupHealthCheck(cfg)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func setupSignalHandler(shutdownFn func(), forceFn func()) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		go shutdownFn()
		<-sig
		slog.Warn("force shutdown requested")
		forceFn()
		os.Exit(130)
	}()
}

func runStartupHealthCheck(cfg *config.RuntimeConfig) {
	time.Sleep(500 * time.Millisecond)
	c := newClient(cfg)
	c.http.Timeout = 5 * time.Second
	if _, err := c.get(context.Background(), "/health", nil); err != nil {
		slog.Error("startup health check failed", "err", err)
		return
	}
	slog.Info("startup health check passed")
}
