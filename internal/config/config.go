// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	AI        AIConfig        `mapstructure:"ai"`
	Retention RetentionConfig `mapstructure:"retention"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// CrawlerConfig governs pagination and detail-fetch behavior.
type CrawlerConfig struct {
	MaxConcurrentFetches  int     `mapstructure:"max_concurrent_fetches"`
	RequestDelaySeconds   float64 `mapstructure:"request_delay_seconds"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
	UserAgent             string  `mapstructure:"user_agent"`
	MaxPages              int     `mapstructure:"max_pages"`
}

// AIConfig governs the external classification service and its quota.
type AIConfig struct {
	APIKey            string `mapstructure:"api_key"`
	Model             string `mapstructure:"model"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
}

// RetentionConfig bounds how long postings are kept.
type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

// StorageConfig selects the raw-description blob store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ScheduleConfig holds cron expressions for periodic work. An empty
// expression disables that schedule.
type ScheduleConfig struct {
	Crawl   string `mapstructure:"crawl"`
	Cleanup string `mapstructure:"cleanup"`
	Digest  string `mapstructure:"digest"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("crawler.max_concurrent_fetches", 5)
	v.SetDefault("crawler.request_delay_seconds", 1.0)
	v.SetDefault("crawler.request_timeout_seconds", 30)
	v.SetDefault("crawler.user_agent", "jobcrawler/2.0 (entry level job finder)")
	v.SetDefault("crawler.max_pages", 50)
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.requests_per_minute", 15)
	v.SetDefault("ai.max_concurrent", 1)
	v.SetDefault("retention.days", 7)
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.prefix", "descriptions")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("crawler.max_concurrent_fetches must be > 0")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.AI.RequestsPerMinute <= 0 {
		return fmt.Errorf("ai.requests_per_minute must be > 0")
	}
	if c.AI.MaxConcurrent <= 0 {
		return fmt.Errorf("ai.max_concurrent must be > 0")
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be > 0")
	}
	if c.Storage.Provider == "gcs" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must be set when storage.provider is gcs")
	}
	return nil
}

// RequestTimeout converts the configured fetch timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}

// RequestDelay converts the politeness interval into a duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawler.RequestDelaySeconds * float64(time.Second))
}
