package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	REST     RESTConfig     `yaml:"rest"`
	WS       WSConfig       `yaml:"ws"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Trading  TradingConfig  `yaml:"trading"`
	OBI      OBIConfig      `yaml:"obi"`
	VWAP     VWAPConfig     `yaml:"vwap"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	History  HistoryConfig  `yaml:"history"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Testnet bool          `yaml:"testnet"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxReconnects  int           `yaml:"max_reconnects"`
}

type LedgerConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TradingConfig struct {
	Symbol            string        `yaml:"symbol"`
	Strategy          string        `yaml:"strategy"`
	QuoteSize         float64       `yaml:"quote_size"`
	DryRun            bool          `yaml:"dry_run"`
	MaxOpenPositions  int           `yaml:"max_open_positions"`
	SignalInterval    time.Duration `yaml:"signal_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
}

type OBIConfig struct {
	DepthLevels    int     `yaml:"depth_levels"`
	LongThreshold  float64 `yaml:"long_threshold"`
	ShortThreshold float64 `yaml:"short_threshold"`
	TakeProfitPct  float64 `yaml:"take_profit_pct"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
}

type VWAPConfig struct {
	Window              time.Duration `yaml:"window"`
	BandWindow          int           `yaml:"band_window"`
	BandMultiplier      float64       `yaml:"band_multiplier"`
	ADXPeriod           int           `yaml:"adx_period"`
	ADXTrend            float64       `yaml:"adx_trend"`
	ADXStrongTrend      float64       `yaml:"adx_strong_trend"`
	VolThreshold        float64       `yaml:"vol_threshold"`
	VolHaltDuration     time.Duration `yaml:"vol_halt_duration"`
	MinWarmupTrades     int           `yaml:"min_warmup_trades"`
	SessionResetHourUTC int           `yaml:"session_reset_hour_utc"`
	TakeProfitPct       float64       `yaml:"take_profit_pct"`
	StopLossPct         float64       `yaml:"stop_loss_pct"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MinInterval     time.Duration `yaml:"min_interval"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

const (
	StrategyOBI  = "OBI"
	StrategyVWAP = "VWAP"
)

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		if cfg.REST.Testnet {
			cfg.REST.BaseURL = "https://testnet.binancefuture.com"
		} else {
			cfg.REST.BaseURL = "https://fapi.binance.com"
		}
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		if cfg.REST.Testnet {
			cfg.WS.URL = "wss://fstream.binancefuture.com"
		} else {
			cfg.WS.URL = "wss://fstream.binance.com"
		}
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.WS.MaxReconnects == 0 {
		cfg.WS.MaxReconnects = 10
	}
	if cfg.Ledger.SQLitePath == "" {
		cfg.Ledger.SQLitePath = "data/bn-scalp-bot.db"
	}
	if cfg.Trading.Strategy == "" {
		cfg.Trading.Strategy = StrategyOBI
	}
	cfg.Trading.Strategy = strings.ToUpper(cfg.Trading.Strategy)
	if cfg.Trading.QuoteSize == 0 {
		cfg.Trading.QuoteSize = 20
	}
	if cfg.Trading.MaxOpenPositions == 0 {
		cfg.Trading.MaxOpenPositions = 1
	}
	if cfg.Trading.SignalInterval == 0 {
		cfg.Trading.SignalInterval = 200 * time.Millisecond
	}
	if cfg.Trading.ReconcileInterval == 0 {
		cfg.Trading.ReconcileInterval = time.Second
	}
	if cfg.Trading.SnapshotInterval == 0 {
		cfg.Trading.SnapshotInterval = 30 * time.Second
	}
	if cfg.OBI.DepthLevels == 0 {
		cfg.OBI.DepthLevels = 5
	}
	if cfg.OBI.LongThreshold == 0 {
		cfg.OBI.LongThreshold = 0.70
	}
	if cfg.OBI.ShortThreshold == 0 {
		cfg.OBI.ShortThreshold = 0.30
	}
	if cfg.OBI.TakeProfitPct == 0 {
		cfg.OBI.TakeProfitPct = 0.0005
	}
	if cfg.OBI.StopLossPct == 0 {
		cfg.OBI.StopLossPct = 0.0005
	}
	if cfg.VWAP.Window == 0 {
		cfg.VWAP.Window = 5 * time.Minute
	}
	if cfg.VWAP.BandWindow == 0 {
		cfg.VWAP.BandWindow = 20
	}
	if cfg.VWAP.BandMultiplier == 0 {
		cfg.VWAP.BandMultiplier = 1.5
	}
	if cfg.VWAP.ADXPeriod == 0 {
		cfg.VWAP.ADXPeriod = 14
	}
	if cfg.VWAP.ADXTrend == 0 {
		cfg.VWAP.ADXTrend = 20
	}
	if cfg.VWAP.ADXStrongTrend == 0 {
		cfg.VWAP.ADXStrongTrend = 40
	}
	if cfg.VWAP.VolThreshold == 0 {
		cfg.VWAP.VolThreshold = 0.0015
	}
	if cfg.VWAP.VolHaltDuration == 0 {
		cfg.VWAP.VolHaltDuration = 10 * time.Minute
	}
	if cfg.VWAP.MinWarmupTrades == 0 {
		cfg.VWAP.MinWarmupTrades = 100
	}
	if cfg.VWAP.TakeProfitPct == 0 {
		cfg.VWAP.TakeProfitPct = 0.006
	}
	if cfg.VWAP.StopLossPct == 0 {
		cfg.VWAP.StopLossPct = 0.003
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9100"
	}
	if cfg.History.Schema == "" {
		cfg.History.Schema = "public"
	}
	if cfg.History.QueueSize == 0 {
		cfg.History.QueueSize = 256
	}
	if cfg.History.MinInterval == 0 {
		cfg.History.MinInterval = 10 * time.Second
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Trading.Symbol == "" {
		return errors.New("trading.symbol is required")
	}
	if cfg.Trading.QuoteSize <= 0 {
		return errors.New("trading.quote_size must be > 0")
	}
	if cfg.Trading.Strategy != StrategyOBI && cfg.Trading.Strategy != StrategyVWAP {
		return fmt.Errorf("trading.strategy must be %s or %s", StrategyOBI, StrategyVWAP)
	}
	if cfg.OBI.ShortThreshold >= cfg.OBI.LongThreshold {
		return errors.New("obi.short_threshold must be < obi.long_threshold")
	}
	if cfg.OBI.DepthLevels <= 0 {
		return errors.New("obi.depth_levels must be > 0")
	}
	if cfg.OBI.TakeProfitPct <= 0 || cfg.OBI.StopLossPct <= 0 {
		return errors.New("obi take profit and stop loss must be > 0")
	}
	if cfg.VWAP.SessionResetHourUTC < 0 || cfg.VWAP.SessionResetHourUTC > 23 {
		return errors.New("vwap.session_reset_hour_utc must be in [0,23]")
	}
	if cfg.VWAP.TakeProfitPct <= 0 || cfg.VWAP.StopLossPct <= 0 {
		return errors.New("vwap take profit and stop loss must be > 0")
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.DSN) == "" {
		return errors.New("history.dsn is required when history is enabled")
	}
	return nil
}
