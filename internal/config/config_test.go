package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Concurrency != 5 {
		t.Errorf("search.concurrency = %d, want 5", cfg.Search.Concurrency)
	}
	if cfg.Search.Timeout() != 30*time.Second {
		t.Errorf("search timeout = %v, want 30s", cfg.Search.Timeout())
	}
	if cfg.Backoff.MaxBackoff() != 3*time.Hour {
		t.Errorf("max backoff = %v, want 3h", cfg.Backoff.MaxBackoff())
	}
	if cfg.RateLimit.GrabsPerHour != 25 {
		t.Errorf("grabs per hour = %d, want 25", cfg.RateLimit.GrabsPerHour)
	}
	if !cfg.Autosearch.Enabled {
		t.Error("autosearch should default to enabled")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("GATHERR_SEARCH_CONCURRENCY", "12")
	t.Setenv("GATHERR_LOGGING_LEVEL", "debug")
	t.Setenv("GATHERR_TMDB_API_KEY", "env-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Concurrency != 12 {
		t.Errorf("search.concurrency = %d, want 12 from env", cfg.Search.Concurrency)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug from env", cfg.Logging.Level)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Errorf("tmdb.api_key = %q, want env-key", cfg.TMDB.APIKey)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("search:\n  concurrency: 3\nautosearch:\n  interval_minutes: 15\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Concurrency != 3 {
		t.Errorf("search.concurrency = %d, want 3 from file", cfg.Search.Concurrency)
	}
	if cfg.Autosearch.Interval() != 15*time.Minute {
		t.Errorf("autosearch interval = %v, want 15m", cfg.Autosearch.Interval())
	}
	// Untouched keys keep their defaults.
	if cfg.Search.MaxResults != 100 {
		t.Errorf("search.max_results = %d, want default 100", cfg.Search.MaxResults)
	}
}
