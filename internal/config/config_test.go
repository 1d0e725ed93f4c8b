package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "trading:\n  symbol: btcusdt\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.REST.BaseURL != "https://fapi.binance.com" {
		t.Fatalf("unexpected rest base url: %s", cfg.REST.BaseURL)
	}
	if cfg.WS.URL != "wss://fstream.binance.com" {
		t.Fatalf("unexpected ws url: %s", cfg.WS.URL)
	}
	if cfg.Trading.Strategy != StrategyOBI {
		t.Fatalf("expected default strategy OBI, got %s", cfg.Trading.Strategy)
	}
	if cfg.Trading.SignalInterval != 200*time.Millisecond {
		t.Fatalf("unexpected signal interval: %s", cfg.Trading.SignalInterval)
	}
	if cfg.Trading.ReconcileInterval != time.Second {
		t.Fatalf("unexpected reconcile interval: %s", cfg.Trading.ReconcileInterval)
	}
	if cfg.OBI.LongThreshold != 0.70 || cfg.OBI.ShortThreshold != 0.30 {
		t.Fatalf("unexpected obi thresholds: %f/%f", cfg.OBI.LongThreshold, cfg.OBI.ShortThreshold)
	}
	if cfg.VWAP.MinWarmupTrades != 100 {
		t.Fatalf("unexpected warmup default: %d", cfg.VWAP.MinWarmupTrades)
	}
}

func TestLoadTestnetEndpoints(t *testing.T) {
	path := writeConfig(t, "rest:\n  testnet: true\ntrading:\n  symbol: BTCUSDT\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(cfg.REST.BaseURL, "testnet") {
		t.Fatalf("expected testnet rest url, got %s", cfg.REST.BaseURL)
	}
	if !strings.Contains(cfg.WS.URL, "binancefuture") {
		t.Fatalf("expected testnet ws url, got %s", cfg.WS.URL)
	}
}

func TestLoadNormalizesStrategyName(t *testing.T) {
	path := writeConfig(t, "trading:\n  symbol: BTCUSDT\n  strategy: vwap\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trading.Strategy != StrategyVWAP {
		t.Fatalf("expected lowercase strategy to normalize, got %s", cfg.Trading.Strategy)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing symbol",
			yaml: "trading:\n  quote_size: 20\n",
			want: "trading.symbol",
		},
		{
			name: "unknown strategy",
			yaml: "trading:\n  symbol: BTCUSDT\n  strategy: MACD\n",
			want: "trading.strategy",
		},
		{
			name: "obi threshold overlap",
			yaml: "trading:\n  symbol: BTCUSDT\nobi:\n  long_threshold: 0.4\n  short_threshold: 0.6\n",
			want: "obi.short_threshold",
		},
		{
			name: "reset hour out of range",
			yaml: "trading:\n  symbol: BTCUSDT\nvwap:\n  session_reset_hour_utc: 24\n",
			want: "session_reset_hour_utc",
		},
		{
			name: "history without dsn",
			yaml: "trading:\n  symbol: BTCUSDT\nhistory:\n  enabled: true\n",
			want: "history.dsn",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
