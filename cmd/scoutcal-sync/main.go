// Command scoutcal-sync runs one sync pass: every configured calendar
// view is fetched, merged and written out, then the process exits with
// a non-zero status if any view failed.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"scoutcal/internal/config"
	appLog "scoutcal/internal/log"
	"scoutcal/internal/syncer"
)

type flagConfig struct {
	configPath string
	calendar   string
	verbose    bool
}

func main() {
	flags := parseFlags()

	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("starting sync",
		"config_path", flags.configPath,
		"output_dir", cfg.Server.OutputDir,
		"calendars", len(cfg.Calendars),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, canceling run", "signal", sig.String())
		cancel()
	}()

	runner := syncer.New(cfg)

	var summary syncer.Summary
	if flags.calendar != "" {
		summary, err = runner.RunOne(ctx, flags.calendar)
		if err != nil {
			appLog.Error("sync failed", err, "calendar", flags.calendar)
			os.Exit(1)
		}
	} else {
		summary = runner.Run(ctx)
	}

	for _, view := range summary.Views {
		if view.Err != nil {
			appLog.Error("view did not sync", view.Err, "calendar", view.Name, "status", view.Status)
		}
	}

	if !summary.OK() {
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.calendar, "calendar", "", "Only sync the named calendar")
	flag.BoolVar(&cfg.verbose, "verbose", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
