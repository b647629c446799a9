// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Job        JobConfig        `yaml:"job" mapstructure:"job"`
	Identity   IdentityConfig   `yaml:"identity" mapstructure:"identity"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Monitor    MonitorConfig    `yaml:"monitor" mapstructure:"monitor"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScrapeConfig bounds the website scraper.
type ScrapeConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// JobConfig bounds the job processor retry loop.
type JobConfig struct {
	MaxRetries      int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelayMS    int `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	CheckpointEvery int `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// IdentityConfig tunes the merge engine.
type IdentityConfig struct {
	// CompanyCityMatch enables the weak batch-local company+city dedup tier.
	CompanyCityMatch bool `yaml:"company_city_match" mapstructure:"company_city_match"`
}

// DiscoveryConfig configures domain discovery for records without a website.
type DiscoveryConfig struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`
	MaxParallel int  `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// MonitorConfig configures stale-job recovery.
type MonitorConfig struct {
	StaleThresholdSecs int `yaml:"stale_threshold_secs" mapstructure:"stale_threshold_secs"`
	CheckIntervalSecs  int `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NotionConfig holds Notion API credentials and the target database.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// AnthropicConfig holds Anthropic API settings for icebreaker polishing.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// StaleThreshold returns the monitor threshold as a duration.
func (m MonitorConfig) StaleThreshold() time.Duration {
	return time.Duration(m.StaleThresholdSecs) * time.Second
}

// CheckInterval returns the sweep cadence as a duration.
func (m MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalSecs) * time.Second
}

// RetryDelay returns the base item retry delay as a duration.
func (j JobConfig) RetryDelay() time.Duration {
	return time.Duration(j.RetryDelayMS) * time.Millisecond
}

// Timeout returns the per-attempt scrape timeout as a duration.
func (s ScrapeConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "leadenrich.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.max_retries", 2)
	v.SetDefault("scrape.requests_per_sec", 2)
	v.SetDefault("job.max_retries", 3)
	v.SetDefault("job.retry_delay_ms", 1000)
	v.SetDefault("job.checkpoint_every", 10)
	v.SetDefault("identity.company_city_match", true)
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.max_parallel", 4)
	v.SetDefault("monitor.stale_threshold_secs", 300)
	v.SetDefault("monitor.check_interval_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")

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
