// Package config loads application configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Search     SearchConfig     `mapstructure:"search"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Backoff    BackoffConfig    `mapstructure:"backoff"`
	TMDB       TMDBConfig       `mapstructure:"tmdb"`
	Autosearch AutosearchConfig `mapstructure:"autosearch"`
	Download   DownloadConfig   `mapstructure:"download"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// SearchConfig tunes the search orchestrator.
type SearchConfig struct {
	Concurrency     int `mapstructure:"concurrency"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
	MaxResults      int `mapstructure:"max_results"`
}

// Timeout returns the per-indexer search timeout.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the release cache lifetime.
func (c SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// RateLimitConfig holds the request pacing budgets.
type RateLimitConfig struct {
	IndexerRequestsPerMinute int `mapstructure:"indexer_requests_per_minute"`
	HostRequestsPerMinute    int `mapstructure:"host_requests_per_minute"`
	GrabsPerHour             int `mapstructure:"grabs_per_hour"`
}

// BackoffConfig holds the indexer health backoff policy.
type BackoffConfig struct {
	FailureThreshold      int     `mapstructure:"failure_threshold"`
	InitialBackoffMinutes int     `mapstructure:"initial_backoff_minutes"`
	Multiplier            float64 `mapstructure:"multiplier"`
	MaxBackoffHours       int     `mapstructure:"max_backoff_hours"`
}

// InitialBackoff returns the first backoff duration.
func (c BackoffConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMinutes) * time.Minute
}

// MaxBackoff returns the backoff ceiling.
func (c BackoffConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffHours) * time.Hour
}

// TMDBConfig holds the metadata resolver settings.
type TMDBConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AutosearchConfig tunes the scheduled search task.
type AutosearchConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	MaxItemsPerRun  int  `mapstructure:"max_items_per_run"`
	// WantedFile is the JSON file listing items to search for.
	WantedFile string `mapstructure:"wanted_file"`
}

// Interval returns the time between autosearch runs.
func (c AutosearchConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// DownloadConfig holds dispatcher settings.
type DownloadConfig struct {
	// StreamDir is where .strm pointer files for streaming grabs land.
	StreamDir string `mapstructure:"stream_dir"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/gatherr.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Search: SearchConfig{
			Concurrency:     5,
			TimeoutSeconds:  30,
			CacheTTLMinutes: 5,
			MaxResults:      100,
		},
		RateLimit: RateLimitConfig{
			IndexerRequestsPerMinute: 30,
			HostRequestsPerMinute:    60,
			GrabsPerHour:             25,
		},
		Backoff: BackoffConfig{
			FailureThreshold:      3,
			InitialBackoffMinutes: 5,
			Multiplier:            2.0,
			MaxBackoffHours:       3,
		},
		TMDB: TMDBConfig{TimeoutSeconds: 10},
		Autosearch: AutosearchConfig{
			Enabled:         true,
			IntervalMinutes: 30,
			WantedFile:      "./data/wanted.json",
		},
		Download: DownloadConfig{StreamDir: "./data/streams"},
	}
}

// Load reads configuration from an optional .env file, a config file,
// and environment variables. Priority: environment > file > defaults.
func Load(configPath string) (*Config, error) {
	// Populate the process environment from a local .env, if present.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.gatherr")
	}

	v.SetEnvPrefix("GATHERR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.TMDB.APIKey == "" {
		cfg.TMDB.APIKey = EmbeddedTMDBKey
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("database.path", def.Database.Path)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.path", def.Logging.Path)

	v.SetDefault("search.concurrency", def.Search.Concurrency)
	v.SetDefault("search.timeout_seconds", def.Search.TimeoutSeconds)
	v.SetDefault("search.cache_ttl_minutes", def.Search.CacheTTLMinutes)
	v.SetDefault("search.max_results", def.Search.MaxResults)

	v.SetDefault("ratelimit.indexer_requests_per_minute", def.RateLimit.IndexerRequestsPerMinute)
	v.SetDefault("ratelimit.host_requests_per_minute", def.RateLimit.HostRequestsPerMinute)
	v.SetDefault("ratelimit.grabs_per_hour", def.RateLimit.GrabsPerHour)

	v.SetDefault("backoff.failure_threshold", def.Backoff.FailureThreshold)
	v.SetDefault("backoff.initial_backoff_minutes", def.Backoff.InitialBackoffMinutes)
	v.SetDefault("backoff.multiplier", def.Backoff.Multiplier)
	v.SetDefault("backoff.max_backoff_hours", def.Backoff.MaxBackoffHours)

	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", "")
	v.SetDefault("tmdb.timeout_seconds", def.TMDB.TimeoutSeconds)

	v.SetDefault("autosearch.enabled", def.Autosearch.Enabled)
	v.SetDefault("autosearch.interval_minutes", def.Autosearch.IntervalMinutes)
	v.SetDefault("autosearch.max_items_per_run", def.Autosearch.MaxItemsPerRun)
	v.SetDefault("autosearch.wanted_file", def.Autosearch.WantedFile)

	v.SetDefault("download.stream_dir", def.Download.StreamDir)
}
