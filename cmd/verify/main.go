// Command verify checks exchange connectivity and credentials end to end: it
// fetches the ticker, derives a resting limit order well away from the mid,
// and unless -dry-run is set places and immediately cancels it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bn-scalp-bot/internal/config"
	"bn-scalp-bot/internal/gateway"
	"bn-scalp-bot/internal/logging"
)

const (
	defaultVerifyNotional  = 20.0
	defaultOffsetBps       = 200
	defaultRESTTimeout     = 10 * time.Second
	defaultRESTBaseURL     = "https://fapi.binance.com"
	defaultVerifyEnvFile   = ".env"
	verifyCancelGracePause = 500 * time.Millisecond
)

func main() {
	configPath := flag.String("config", "", "optional config path for REST settings")
	symbolFlag := flag.String("symbol", "", "symbol to verify against (overrides config)")
	dryRun := flag.Bool("dry-run", false, "print the derived order and exit")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvFile); err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	baseURL := defaultRESTBaseURL
	timeout := defaultRESTTimeout
	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
		logCfg = cfg.Log
		if cfg.REST.BaseURL != "" {
			baseURL = cfg.REST.BaseURL
		}
		if cfg.REST.Timeout > 0 {
			timeout = cfg.REST.Timeout
		}
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	symbol := strings.ToUpper(strings.TrimSpace(*symbolFlag))
	if symbol == "" {
		symbol = strings.ToUpper(strings.TrimSpace(os.Getenv("BN_VERIFY_SYMBOL")))
	}
	if symbol == "" && cfg != nil {
		symbol = strings.ToUpper(cfg.Trading.Symbol)
	}
	if symbol == "" {
		fatal(errors.New("symbol is required: pass -symbol, set BN_VERIFY_SYMBOL or provide a config"))
	}

	apiKey := strings.TrimSpace(os.Getenv("BINANCE_API_KEY"))
	if apiKey == "" {
		fatal(errors.New("BINANCE_API_KEY is required"))
	}
	secret := strings.TrimSpace(os.Getenv("BINANCE_API_SECRET"))
	if secret == "" {
		fatal(errors.New("BINANCE_API_SECRET is required"))
	}

	notional := defaultVerifyNotional
	if envVal, ok, err := floatEnv("BN_VERIFY_NOTIONAL"); err != nil {
		fatal(err)
	} else if ok {
		notional = envVal
	} else if cfg != nil && cfg.Trading.QuoteSize > 0 {
		notional = cfg.Trading.QuoteSize
	}

	offsetBps := defaultOffsetBps
	if envVal, ok, err := intEnv("BN_VERIFY_OFFSET_BPS"); err != nil {
		fatal(err)
	} else if ok {
		offsetBps = envVal
	}

	gw := gateway.NewBinance(baseURL, apiKey, secret, timeout, log)
	ctx := context.Background()

	ticker, err := gw.GetTicker(ctx, symbol)
	if err != nil {
		fatal(fmt.Errorf("ticker fetch: %w", err))
	}
	if ticker.Price <= 0 {
		fatal(fmt.Errorf("ticker returned non-positive price %f", ticker.Price))
	}

	// A buy this far below the market rests instead of filling.
	limitPrice := ticker.Price * (1 - float64(offsetBps)/10000.0)
	quantity := notional / limitPrice

	fmt.Printf("verify order: symbol=%s price=%.4f limit_price=%.4f quantity=%.6f notional=%.2f\n",
		symbol, ticker.Price, limitPrice, quantity, quantity*limitPrice)
	if *dryRun {
		return
	}

	order, err := gw.PlaceLimitOrder(ctx, symbol, "BUY", limitPrice, quantity)
	if err != nil {
		fatal(fmt.Errorf("order placement: %w", err))
	}
	fmt.Printf("order placed: order_id=%d status=%s\n", order.OrderID, order.Status)

	time.Sleep(verifyCancelGracePause)
	if err := gw.CancelOrder(ctx, symbol, order.OrderID); err != nil {
		fatal(fmt.Errorf("order %d placed but cancel failed, cancel it manually: %w", order.OrderID, err))
	}
	fmt.Printf("order canceled: order_id=%d\n", order.OrderID)
}

func floatEnv(key string) (float64, bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, false, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}

func intEnv(key string) (int, bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
