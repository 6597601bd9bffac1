// Package config loads application configuration and builds the logger.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jasonstaker/rfp-scraper-sub000/internal/adapter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/fetcher"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/filter"
	"github.com/jasonstaker/rfp-scraper-sub000/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Filter   FilterConfig   `yaml:"filter" mapstructure:"filter"`
	Estimate EstimateConfig `yaml:"estimate" mapstructure:"estimate"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	FTP      FTPConfig      `yaml:"ftp" mapstructure:"ftp"`
	Browser  BrowserConfig  `yaml:"browser" mapstructure:"browser"`
}

// StoreConfig configures the run history backend. Driver "none" disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScrapeConfig configures target execution.
type ScrapeConfig struct {
	TargetsFile      string `yaml:"targets_file" mapstructure:"targets_file"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxPages         int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// Timeout returns the per-attempt timeout. Zero means none.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Retry returns the attempt policy.
func (c ScrapeConfig) Retry() resilience.RetryConfig {
	return resilience.FromRetryConfig(c.MaxAttempts, c.InitialBackoffMs, c.MaxBackoffMs)
}

// FilterConfig locates the keyword and suppression files.
type FilterConfig struct {
	KeywordsFile string `yaml:"keywords_file" mapstructure:"keywords_file"`
	SuppressFile string `yaml:"suppress_file" mapstructure:"suppress_file"`
}

// EstimateConfig locates the duration store.
type EstimateConfig struct {
	StatsFile string `yaml:"stats_file" mapstructure:"stats_file"`
}

// OutputConfig configures bundle output.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Prefix     string `yaml:"prefix" mapstructure:"prefix"`
	LatestName string `yaml:"latest_name" mapstructure:"latest_name"`
	Format     string `yaml:"format" mapstructure:"format"`
	Retention  int    `yaml:"retention" mapstructure:"retention"`
}

// HTTPConfig configures the HTTP transport adapters build.
type HTTPConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// FTPConfig configures FTP file drops.
type FTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
}

// BrowserConfig configures browser-rendered adapters.
type BrowserConfig struct {
	RemoteURL string `yaml:"remote_url" mapstructure:"remote_url"`
	Headless  bool   `yaml:"headless" mapstructure:"headless"`
	Bin       string `yaml:"bin" mapstructure:"bin"`
	SettleMs  int    `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scrape.targets_file", "targets.yaml")
	v.SetDefault("scrape.timeout_secs", 300)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.initial_backoff_ms", 2000)
	v.SetDefault("scrape.max_backoff_ms", 30000)
	v.SetDefault("scrape.max_pages", 200)
	v.SetDefault("filter.keywords_file", "data/keywords.txt")
	v.SetDefault("filter.suppress_file", "data/suppressed.json")
	v.SetDefault("estimate.stats_file", "data/durations.json")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.prefix", "rfp")
	v.SetDefault("output.latest_name", "latest")
	v.SetDefault("output.format", "xlsx")
	v.SetDefault("output.retention", 5)
	v.SetDefault("http.user_agent", "rfp-scraper/1.0")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.rate_per_sec", 2.0)
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.settle_ms", 1500)

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
	return &cfg, nil
}

// Validate checks enumerations and ranges, plus the settings the given mode
// needs. Modes: "scrape", "serve", "store". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	if !slices.Contains([]string{"json", "console"}, c.Log.Format) {
		errs = append(errs, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	if !slices.Contains([]string{"sqlite", "postgres", "none"}, c.Store.Driver) {
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or none, got %q", c.Store.Driver))
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "scrape":
		if c.Scrape.TargetsFile == "" {
			errs = append(errs, "scrape.targets_file is required")
		}
		if c.Scrape.MaxAttempts < 1 {
			errs = append(errs, fmt.Sprintf("scrape.max_attempts must be >= 1, got %d", c.Scrape.MaxAttempts))
		}
		if c.Scrape.TimeoutSecs < 0 || c.Scrape.InitialBackoffMs < 0 || c.Scrape.MaxPages < 0 {
			errs = append(errs, "scrape timeout_secs, initial_backoff_ms and max_pages must be >= 0")
		}
		if !slices.Contains([]string{"xlsx", "json"}, c.Output.Format) {
			errs = append(errs, fmt.Sprintf("output.format must be xlsx or json, got %q", c.Output.Format))
		}
		if c.Output.Retention < 1 {
			errs = append(errs, fmt.Sprintf("output.retention must be >= 1, got %d", c.Output.Retention))
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "store":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must not be none")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AdapterEnv builds the collaborators handed to adapter constructors.
func (c *Config) AdapterEnv(log *zap.Logger, f *filter.Filter) adapter.Env {
	return adapter.Env{
		Logger: log,
		Filter: f,
		HTTP: fetcher.HTTPOptions{
			UserAgent:  c.HTTP.UserAgent,
			Timeout:    time.Duration(c.HTTP.TimeoutSecs) * time.Second,
			MaxRetries: c.HTTP.MaxRetries,
			RatePerSec: c.HTTP.RatePerSec,
		},
		FTP: fetcher.FTPOptions{
			Timeout:  time.Duration(c.FTP.TimeoutSecs) * time.Second,
			User:     c.FTP.User,
			Password: c.FTP.Password,
		},
		Browser: adapter.BrowserOptions{
			RemoteURL: c.Browser.RemoteURL,
			Headless:  c.Browser.Headless,
			Bin:       c.Browser.Bin,
			Settle:    time.Duration(c.Browser.SettleMs) * time.Millisecond,
		},
		MaxPages: c.Scrape.MaxPages,
	}
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
