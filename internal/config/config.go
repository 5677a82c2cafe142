package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Exchange   ExchangeConfig   `yaml:"exchange" mapstructure:"exchange"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Sink       SinkConfig       `yaml:"sink" mapstructure:"sink"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the on-disk artifacts.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" mapstructure:"data_dir"`
	OutputsDir string `yaml:"outputs_dir" mapstructure:"outputs_dir"`
	DebugDir   string `yaml:"debug_dir" mapstructure:"debug_dir"`
}

// ExchangeConfig holds the exchange site URLs.
type ExchangeConfig struct {
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	StocksURL   string   `yaml:"stocks_url" mapstructure:"stocks_url"`
	ListingURLs []string `yaml:"listing_urls" mapstructure:"listing_urls"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Engine         string   `yaml:"engine" mapstructure:"engine"`
	Headless       bool     `yaml:"headless" mapstructure:"headless"`
	SlowMoMs       int      `yaml:"slow_mo_ms" mapstructure:"slow_mo_ms"`
	UserAgents     []string `yaml:"user_agents" mapstructure:"user_agents"`
	NavTimeoutSecs int      `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	// ActionTimeoutMs bounds a single click.
	ActionTimeoutMs int `yaml:"action_timeout_ms" mapstructure:"action_timeout_ms"`
	// RecoveryTimeoutMs bounds the clicks on the recovery path and the final table wait.
	RecoveryTimeoutMs int `yaml:"recovery_timeout_ms" mapstructure:"recovery_timeout_ms"`
	NavAttempts       int `yaml:"nav_attempts" mapstructure:"nav_attempts"`
	MaxPages          int `yaml:"max_pages" mapstructure:"max_pages"`
}

// BatchConfig configures the bounded scrape driver.
type BatchConfig struct {
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	CooldownMinSecs int `yaml:"cooldown_min_secs" mapstructure:"cooldown_min_secs"`
	CooldownMaxSecs int `yaml:"cooldown_max_secs" mapstructure:"cooldown_max_secs"`
	URLAttempts     int `yaml:"url_attempts" mapstructure:"url_attempts"`
}

// RegistryConfig configures the company registry search API.
type RegistryConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	DelayMs       int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// StoreConfig configures the run journal backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SinkConfig configures the relational sink for merged records.
type SinkConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// MonitoringConfig configures failure alerts for batch runs.
type MonitoringConfig struct {
	// WebhookURL receives alerts as JSON. Empty disables alerting.
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	// MinFinished is the number of finished companies below which no rate alert fires.
	MinFinished int `yaml:"min_finished" mapstructure:"min_finished"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgents is the rotation pool used when none are configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment wins over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BURSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.outputs_dir", "outputs")
	v.SetDefault("paths.debug_dir", "debug")
	v.SetDefault("exchange.base_url", "https://my.bursamalaysia.com")
	v.SetDefault("exchange.stocks_url", "https://my.bursamalaysia.com/market/assets/equities/stocks")
	v.SetDefault("exchange.listing_urls", []string{
		"https://www.bursamalaysia.com/trade/trading_resources/listing_directory/main_market",
		"https://www.bursamalaysia.com/trade/trading_resources/listing_directory/ace_market",
		"https://www.bursamalaysia.com/trade/trading_resources/listing_directory/leap_market",
	})
	v.SetDefault("browser.engine", "playwright")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo_ms", 300)
	v.SetDefault("browser.user_agents", DefaultUserAgents)
	v.SetDefault("browser.nav_timeout_secs", 60)
	v.SetDefault("browser.action_timeout_ms", 3000)
	v.SetDefault("browser.recovery_timeout_ms", 5000)
	v.SetDefault("browser.nav_attempts", 2)
	v.SetDefault("browser.max_pages", 50)
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.cooldown_min_secs", 6)
	v.SetDefault("batch.cooldown_max_secs", 15)
	v.SetDefault("batch.url_attempts", 3)
	v.SetDefault("registry.base_url", "https://staging-ssm.onecredit.my/api")
	v.SetDefault("registry.delay_ms", 1000)
	v.SetDefault("registry.timeout_secs", 10)
	v.SetDefault("registry.max_retries", 2)
	v.SetDefault("registry.overrides_file", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/journal.db")
	v.SetDefault("sink.database_url", "")
	v.SetDefault("sink.schema", "public")
	v.SetDefault("sink.max_conns", 4)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_finished", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Sink.DatabaseURL == "" {
		cfg.Sink.DatabaseURL = dsnFromPGEnv()
	}

	return &cfg, nil
}

// Validate checks the fields required by the given mode: "scrape", "match" or "load".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 16 {
		errs = append(errs, fmt.Sprintf("batch.concurrency must be between 1 and 16, got %d", c.Batch.Concurrency))
	}
	if c.Batch.CooldownMinSecs < 0 || c.Batch.CooldownMaxSecs < c.Batch.CooldownMinSecs {
		errs = append(errs, fmt.Sprintf("batch cooldown range [%d, %d] is invalid", c.Batch.CooldownMinSecs, c.Batch.CooldownMaxSecs))
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	switch mode {
	case "scrape":
		switch c.Browser.Engine {
		case "playwright", "rod":
		default:
			errs = append(errs, fmt.Sprintf("unknown browser.engine %q", c.Browser.Engine))
		}
		if len(c.Browser.UserAgents) == 0 {
			errs = append(errs, "browser.user_agents must not be empty")
		}
	case "match":
		if c.Registry.BaseURL == "" {
			errs = append(errs, "registry.base_url is required")
		}
	case "load":
		if c.Sink.DatabaseURL == "" {
			errs = append(errs, "sink.database_url is required (or set PG_HOST)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CooldownRange returns the cool-down bounds as durations.
func (b BatchConfig) CooldownRange() (time.Duration, time.Duration) {
	return time.Duration(b.CooldownMinSecs) * time.Second, time.Duration(b.CooldownMaxSecs) * time.Second
}

// dsnFromPGEnv builds a postgres URL from PG_* variables, or "" when PG_HOST is unset.
func dsnFromPGEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("PG_USER"), os.Getenv("PG_PASSWORD")),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   "/" + os.Getenv("PG_DATABASE"),
	}
	return u.String()
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
