package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"govcontract-signals/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	USASpending USASpendingConfig `mapstructure:"usaspending"`
	Market      MarketConfig      `mapstructure:"market"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	API         APIConfig         `mapstructure:"api"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs pipeline cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// USASpendingConfig covers the transaction provider.
type USASpendingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PageLimit      int           `mapstructure:"page_limit"`
	MaxPages       int           `mapstructure:"max_pages"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MarketConfig covers quote and price-history providers.
type MarketConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PipelineConfig holds signal acceptance thresholds.
type PipelineConfig struct {
	LookbackDays     int     `mapstructure:"lookback_days"`
	MinAwardAmount   float64 `mapstructure:"min_award_amount"`
	MinImpactRatio   float64 `mapstructure:"min_impact_ratio"`
	MaxMarketCap     float64 `mapstructure:"max_market_cap"`
	FuzzyCutoff      float64 `mapstructure:"fuzzy_cutoff"`
	EnrichmentOn     bool    `mapstructure:"enrichment_enabled"`
	EnrichWindowDays int     `mapstructure:"enrich_window_days"`
}

// APIConfig configures the REST read surface.
type APIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ListenAddr  string        `mapstructure:"listen_addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// AlertingConfig defines signal push routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	MinTier  string         `mapstructure:"min_tier"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GOVSIGNALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "govsignals")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "60m")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x676f7673))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("usaspending.base_url", "https://api.usaspending.gov/api/v2")
	v.SetDefault("usaspending.page_limit", 100)
	v.SetDefault("usaspending.max_pages", 5)
	v.SetDefault("usaspending.request_timeout", "60s")
	v.SetDefault("usaspending.user_agent", "govsignals/1.0")

	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "govsignals/1.0")

	v.SetDefault("pipeline.lookback_days", 7)
	v.SetDefault("pipeline.min_award_amount", 1_000_000.0)
	v.SetDefault("pipeline.min_impact_ratio", 5.0)
	v.SetDefault("pipeline.max_market_cap", 50_000_000_000.0)
	v.SetDefault("pipeline.fuzzy_cutoff", 90.0)
	v.SetDefault("pipeline.enrichment_enabled", true)
	v.SetDefault("pipeline.enrich_window_days", 14)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.read_timeout", "15s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_tier", "high")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Pipeline.LookbackDays <= 0 {
		return fmt.Errorf("pipeline.lookback_days must be greater than zero")
	}
	if c.Pipeline.MinAwardAmount < 0 {
		return fmt.Errorf("pipeline.min_award_amount cannot be negative")
	}
	if c.Pipeline.FuzzyCutoff < 0 || c.Pipeline.FuzzyCutoff > 100 {
		return fmt.Errorf("pipeline.fuzzy_cutoff must be within [0,100]")
	}
	if c.USASpending.MaxPages <= 0 {
		return fmt.Errorf("usaspending.max_pages must be greater than zero")
	}
	if c.USASpending.PageLimit <= 0 {
		return fmt.Errorf("usaspending.page_limit must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// MinTierRank maps the configured alerting tier to a comparable rank.
func (a AlertingConfig) MinTierRank() int {
	switch strings.ToLower(a.MinTier) {
	case "nuclear":
		return 2
	case "high":
		return 1
	default:
		return 0
	}
}
