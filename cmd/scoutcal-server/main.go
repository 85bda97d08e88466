// Command scoutcal-server serves the generated calendar files over
// HTTP and, when sync.refresh is configured, resyncs them on a cron
// schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"scoutcal/internal/config"
	appLog "scoutcal/internal/log"
	"scoutcal/internal/syncer"
	"scoutcal/internal/web"
)

func main() {
	var (
		configPath string
		listen     string
		verbose    bool
		syncOnBoot bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&syncOnBoot, "sync-on-boot", false, "Run a full sync before serving")
	flag.Parse()

	if verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		os.Exit(1)
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	runner := syncer.New(cfg)

	if syncOnBoot {
		_ = runner.Run(ctx)
	}

	var sched *cron.Cron
	if cfg.Sync.Refresh != "" {
		sched = cron.New()
		_, err := sched.AddFunc(cfg.Sync.Refresh, func() {
			runner.Run(ctx)
		})
		if err != nil {
			appLog.Error("invalid refresh schedule", err, "refresh", cfg.Sync.Refresh)
			os.Exit(1)
		}
		sched.Start()
		appLog.Info("refresh schedule active", "refresh", cfg.Sync.Refresh)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: web.NewServer(cfg, runner).Handler(),
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}

	appLog.Info("scoutcal-server exiting")
}
