package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/notifier"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log         LogConfig                 `mapstructure:"log"`
	History     HistoryConfig             `mapstructure:"history"`
	Strategies  map[string]StrategyConfig `mapstructure:"strategies"`
	Signal      SignalConfig              `mapstructure:"signal"`
	Ensemble    EnsembleConfig            `mapstructure:"ensemble"`
	Performance PerformanceConfig         `mapstructure:"performance"`
	Risk        RiskConfig                `mapstructure:"risk"`
	Filter      FilterConfig              `mapstructure:"filter"`
	Workers     WorkersConfig             `mapstructure:"workers"`
	Feed        FeedConfig                `mapstructure:"feed"`
	Archive     ArchiveConfig             `mapstructure:"archive"`
	Router      RouterConfig              `mapstructure:"router"`
	Metrics     MetricsConfig             `mapstructure:"metrics"`
	Watchlist   []WatchlistItem           `mapstructure:"watchlist"`
	Account     AccountConfig             `mapstructure:"account"`
	Notifiers   []notifier.Config         `mapstructure:"notifiers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type StrategyConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

// SignalConfig bounds the geometry of every per-strategy signal.
type SignalConfig struct {
	TargetRR      float64       `mapstructure:"target_rr"`
	MinRR         float64       `mapstructure:"min_rr"`
	MaxRR         float64       `mapstructure:"max_rr"`
	MaxMovePct    float64       `mapstructure:"max_move_pct"`
	StopBufferPct float64       `mapstructure:"stop_buffer_pct"`
	ATRPeriod     int           `mapstructure:"atr_period"`
	ATRMultiplier float64       `mapstructure:"atr_multiplier"`
	ConfidenceCap float64       `mapstructure:"confidence_cap"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
}

type EnsembleConfig struct {
	Epsilon float64 `mapstructure:"epsilon"`
}

type PerformanceConfig struct {
	LookbackDays    int           `mapstructure:"lookback_days"`
	RecentDays      int           `mapstructure:"recent_days"`
	MinTrades       int           `mapstructure:"min_trades"`
	Temperature     float64       `mapstructure:"temperature"`
	MinWeight       float64       `mapstructure:"min_weight"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type RiskConfig struct {
	RiskPct          float64       `mapstructure:"risk_pct"`
	MaxDrawdown      float64       `mapstructure:"max_drawdown"`
	DrawdownLookback time.Duration `mapstructure:"drawdown_lookback"`
	VolatilityScale  float64       `mapstructure:"volatility_scale"`
	Profile          string        `mapstructure:"profile"` // "low", "medium" or "high"
}

type FilterConfig struct {
	MinAgree       int           `mapstructure:"min_agree"`
	Conservatism   float64       `mapstructure:"conservatism"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	MinSuccessRate float64       `mapstructure:"min_success_rate"`
	RecencyWindow  time.Duration `mapstructure:"recency_window"`
	MinRiskReward  float64       `mapstructure:"min_risk_reward"`
}

// WorkersConfig sizes the ingest pool and the fan-out of batch evaluation.
type WorkersConfig struct {
	Count         int `mapstructure:"count"`
	QueueSize     int `mapstructure:"queue_size"`
	EvaluateLimit int `mapstructure:"evaluate_limit"`
}

type FeedConfig struct {
	Path            string        `mapstructure:"path"`
	Interval        time.Duration `mapstructure:"interval"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type ArchiveConfig struct {
	Backend string   `mapstructure:"backend"` // "", "localfs" or "s3"
	Path    string   `mapstructure:"path"`    // For localfs
	S3      S3Config `mapstructure:"s3"`      // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type RouterConfig struct {
	Cooldown    time.Duration `mapstructure:"cooldown"`
	SinkTimeout time.Duration `mapstructure:"sink_timeout"`
	StoreSize   int           `mapstructure:"store_size"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

type WatchlistItem struct {
	Symbol     string   `mapstructure:"symbol"`
	Name       string   `mapstructure:"name"`
	Strategies []string `mapstructure:"strategies"`
}

// AccountConfig seeds the balances the risk manager reads.
type AccountConfig struct {
	User     string             `mapstructure:"user"`
	Balances map[string]float64 `mapstructure:"balances"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	// Secrets may live in a .env beside the config; existing variables win.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values, including those nested
	// in lists such as notifier params
	for _, key := range v.AllKeys() {
		if val, changed := expandEnv(v.Get(key)); changed {
			v.Set(key, val)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

func expandEnv(val any) (any, bool) {
	switch t := val.(type) {
	case string:
		if strings.HasPrefix(t, "${") && strings.HasSuffix(t, "}") {
			return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(t, "${"), "}")), true
		}
	case []any:
		changed := false
		for i, item := range t {
			if expanded, ok := expandEnv(item); ok {
				t[i] = expanded
				changed = true
			}
		}
		return t, changed
	case map[string]any:
		changed := false
		for k, item := range t {
			if expanded, ok := expandEnv(item); ok {
				t[k] = expanded
				changed = true
			}
		}
		return t, changed
	}
	return val, false
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Capacity: 200,
		},
		Signal: SignalConfig{
			TargetRR:      2.0,
			MinRR:         core.MinRiskReward,
			MaxRR:         core.MaxRiskReward,
			MaxMovePct:    core.MaxTargetMove,
			StopBufferPct: 0.001,
			ATRPeriod:     14,
			ATRMultiplier: 2.0,
			ConfidenceCap: 0.90,
			Cooldown:      6 * time.Hour,
		},
		Ensemble: EnsembleConfig{
			Epsilon: 1e-6,
		},
		Performance: PerformanceConfig{
			LookbackDays:    30,
			RecentDays:      7,
			MinTrades:       5,
			Temperature:     3.0,
			RefreshInterval: time.Hour,
		},
		Risk: RiskConfig{
			RiskPct:          0.01,
			MaxDrawdown:      0.15,
			DrawdownLookback: 30 * 24 * time.Hour,
			VolatilityScale:  1.0,
			Profile:          "medium",
		},
		Filter: FilterConfig{
			MinAgree:       5,
			Conservatism:   1.2,
			MinConfidence:  0.65,
			MinSuccessRate: 0.5,
			RecencyWindow:  7 * 24 * time.Hour,
			MinRiskReward:  2.0,
		},
		Workers: WorkersConfig{
			Count:         4,
			QueueSize:     256,
			EvaluateLimit: 8,
		},
		Feed: FeedConfig{
			Interval:        time.Minute,
			RatePerSecond:   10,
			Burst:           10,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Router: RouterConfig{
			Cooldown:    6 * time.Hour,
			SinkTimeout: 10 * time.Second,
			StoreSize:   10000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Account: AccountConfig{
			User:     "default",
			Balances: map[string]float64{"default": 10000},
		},
	}
}

// Symbols lists the watchlist symbols in order
func (c *Config) Symbols() []string {
	symbols := make([]string, 0, len(c.Watchlist))
	for _, item := range c.Watchlist {
		symbols = append(symbols, item.Symbol)
	}
	return symbols
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.History.Capacity < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("history capacity must be positive, got %d", c.History.Capacity))
	}

	// Signal geometry
	s := c.Signal
	if s.MinRR <= 0 || s.MaxRR < s.MinRR {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("signal risk/reward bounds [%.2f, %.2f] are inconsistent", s.MinRR, s.MaxRR))
	}
	if s.TargetRR < s.MinRR || s.TargetRR > s.MaxRR {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("target_rr %.2f must sit inside [%.2f, %.2f]", s.TargetRR, s.MinRR, s.MaxRR))
	}
	if s.MaxMovePct <= 0 || s.MaxMovePct >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_move_pct must be between 0 and 1, got %f", s.MaxMovePct))
	}
	if s.ConfidenceCap <= 0 || s.ConfidenceCap > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("confidence_cap must be between 0 and 1, got %f", s.ConfidenceCap))
	}
	if s.Cooldown < 0 || c.Router.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("cooldown cannot be negative"))
	}

	// Risk validation
	if c.Risk.RiskPct <= 0 || c.Risk.RiskPct >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("risk_pct must be between 0 and 1, got %f", c.Risk.RiskPct))
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_drawdown must be between 0 and 1, got %f", c.Risk.MaxDrawdown))
	}
	switch c.Risk.Profile {
	case "low", "medium", "high":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown risk profile %q", c.Risk.Profile))
	}

	// Filter validation
	if c.Filter.MinAgree < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_agree must be at least 1, got %d", c.Filter.MinAgree))
	}
	if c.Filter.MinConfidence < 0 || c.Filter.MinConfidence > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_confidence must be between 0 and 1, got %f", c.Filter.MinConfidence))
	}
	if c.Filter.MinSuccessRate < 0 || c.Filter.MinSuccessRate > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_success_rate must be between 0 and 1, got %f", c.Filter.MinSuccessRate))
	}
	if c.Filter.Conservatism <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("conservatism must be positive, got %f", c.Filter.Conservatism))
	}
	if c.Filter.RecencyWindow <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("recency_window must be positive, got %s", c.Filter.RecencyWindow))
	}
	if c.Filter.MinRiskReward < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("filter min_risk_reward must not be negative, got %f", c.Filter.MinRiskReward))
	}

	if c.Workers.Count < 1 || c.Workers.QueueSize < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("workers need a positive count and queue size, got %d/%d", c.Workers.Count, c.Workers.QueueSize))
	}

	// Archive validation - if backend set, check its settings exist
	switch c.Archive.Backend {
	case "":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when backend is localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when backend is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive backend %q", c.Archive.Backend))
	}

	seen := make(map[string]bool, len(c.Watchlist))
	for _, item := range c.Watchlist {
		if item.Symbol == "" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("watchlist entry without symbol"))
		}
		if seen[item.Symbol] {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate watchlist symbol %q", item.Symbol))
		}
		seen[item.Symbol] = true
	}

	return nil
}
