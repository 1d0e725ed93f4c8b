package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bn-scalp-bot/internal/app"
	"bn-scalp-bot/internal/config"
	"bn-scalp-bot/internal/logging"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.yaml", "path to the yaml config")
		symbol     = flag.String("symbol", "", "trade this symbol instead of trading.symbol")
		dryRun     = flag.Bool("dry-run", false, "simulate order execution regardless of config")
	)
	flag.Parse()

	// .env is optional; a bad line count or unreadable file is worth knowing
	// about but not fatal.
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "bot: .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", *configPath, err)
	}
	if *symbol != "" {
		cfg.Trading.Symbol = strings.ToUpper(*symbol)
	}
	if *dryRun {
		cfg.Trading.DryRun = true
	}

	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()
	log.Info("starting",
		zap.String("config", *configPath),
		zap.String("symbol", cfg.Trading.Symbol),
		zap.String("strategy", cfg.Trading.Strategy),
		zap.Bool("dry_run", cfg.Trading.DryRun))

	bot, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped with error", zap.Error(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
}
