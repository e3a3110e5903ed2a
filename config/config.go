package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Sources   SourcesConfig   `mapstructure:"sources"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Collector CollectorConfig `mapstructure:"collector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type SourcesConfig struct {
	Upbit     UpbitConfig     `mapstructure:"upbit"`
	Bithumb   BithumbConfig   `mapstructure:"bithumb"`
	Coinbase  CoinbaseConfig  `mapstructure:"coinbase"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
}

// MaxUpbitBatchSize is the most markets Upbit accepts in one ticker request.
const MaxUpbitBatchSize = 200

type UpbitConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	QuoteCurrency string        `mapstructure:"quote_currency"` // market prefix, e.g. "KRW" for "KRW-BTC"
	BatchSize     int           `mapstructure:"batch_size"`     // max markets per ticker request
	BatchPause    time.Duration `mapstructure:"batch_pause"`
}

type BithumbConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	PaymentCurrency string `mapstructure:"payment_currency"`
	SuccessStatus   string `mapstructure:"success_status"`
}

type CoinbaseConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Currency string `mapstructure:"currency"`
}

type CoinGeckoConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	VsCurrency string `mapstructure:"vs_currency"`
	PerPage    int    `mapstructure:"per_page"`
}

// FetchConfig controls the shared HTTP fetcher used by every source.
type FetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"` // multiplied by the attempt number
	UserAgent   string        `mapstructure:"user_agent"`
	MinInterval time.Duration `mapstructure:"min_interval"` // 0 disables request pacing
}

type CollectorConfig struct {
	AnchorSymbol   string        `mapstructure:"anchor_symbol"`
	FallbackFXRate float64       `mapstructure:"fallback_fx_rate"`
	StagePause     time.Duration `mapstructure:"stage_pause"`

	// "allowlist": metadata is required and a cycle without it aborts.
	// "reference": metadata is optional; unranked coins get placeholder display data.
	InclusionPolicy string `mapstructure:"inclusion_policy"`
}

type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	HistoryDir    string `mapstructure:"history_dir"`
	LatestFile    string `mapstructure:"latest_file"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type ScheduleConfig struct {
	Spec       string `mapstructure:"spec"` // robfig/cron spec, e.g. "@every 30m"
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// LatestPath is the full path of the latest-state file.
func (s StorageConfig) LatestPath() string {
	return filepath.Join(s.DataDir, s.LatestFile)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.upbit.base_url", "https://api.upbit.com")
	v.SetDefault("sources.upbit.quote_currency", "KRW")
	v.SetDefault("sources.upbit.batch_size", 200)
	v.SetDefault("sources.upbit.batch_pause", 500*time.Millisecond)
	v.SetDefault("sources.bithumb.base_url", "https://api.bithumb.com")
	v.SetDefault("sources.bithumb.payment_currency", "KRW")
	v.SetDefault("sources.bithumb.success_status", "0000")
	v.SetDefault("sources.coinbase.base_url", "https://api.coinbase.com")
	v.SetDefault("sources.coinbase.currency", "USD")
	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com")
	v.SetDefault("sources.coingecko.vs_currency", "usd")
	v.SetDefault("sources.coingecko.per_page", 100)

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.retry_delay", 2*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0")
	v.SetDefault("fetch.min_interval", time.Duration(0))

	v.SetDefault("collector.anchor_symbol", "BTC")
	v.SetDefault("collector.fallback_fx_rate", 1450.0)
	v.SetDefault("collector.stage_pause", time.Second)
	v.SetDefault("collector.inclusion_policy", "allowlist")

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.history_dir", "")
	v.SetDefault("storage.latest_file", "coins.json")
	v.SetDefault("storage.retention_days", 30)

	v.SetDefault("schedule.spec", "@every 30m")
	v.SetDefault("schedule.run_on_start", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "premium")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.ssm_prefix", "/premium/db")
	v.SetDefault("postgres.max_open_conns", 5)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
}

// Load loads application configuration using Viper.
// It reads config.yaml (from path, or ./config and . when path is empty)
// and overrides with PREMIUM_* environment variables. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Support environment variables with dot notation (e.g., PREMIUM_STORAGE_DATA_DIR)
	v.SetEnvPrefix("PREMIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Storage.HistoryDir == "" {
		cfg.Storage.HistoryDir = filepath.Join(cfg.Storage.DataDir, "history")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Sources.Upbit.BatchSize < 1 || c.Sources.Upbit.BatchSize > MaxUpbitBatchSize {
		return fmt.Errorf("sources.upbit.batch_size must be in 1..%d, got %d", MaxUpbitBatchSize, c.Sources.Upbit.BatchSize)
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("storage.retention_days must be positive, got %d", c.Storage.RetentionDays)
	}
	if c.Collector.FallbackFXRate <= 0 {
		return fmt.Errorf("collector.fallback_fx_rate must be positive, got %v", c.Collector.FallbackFXRate)
	}
	switch c.Collector.InclusionPolicy {
	case "allowlist", "reference":
	default:
		return fmt.Errorf("collector.inclusion_policy must be \"allowlist\" or \"reference\", got %q", c.Collector.InclusionPolicy)
	}
	return nil
}
