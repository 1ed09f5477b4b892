package config

import (
	"os"
	"slices"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Store.Backend != "file" {
		t.Errorf("expected default backend 'file', got '%s'", cfg.Store.Backend)
	}
	if cfg.Match.Threshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %v", cfg.Match.Threshold)
	}
	if cfg.Cluster.Eps != 0.5 || cfg.Cluster.MinPts != 1 {
		t.Errorf("expected default cluster eps=0.5 minPts=1, got eps=%v minPts=%d", cfg.Cluster.Eps, cfg.Cluster.MinPts)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
}

func TestLoad_DefaultThreshold(t *testing.T) {
	// Clear any existing MATCH_THRESHOLD
	os.Unsetenv("MATCH_THRESHOLD")

	cfg := Load()

	if cfg.Match.Threshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %v", cfg.Match.Threshold)
	}
}

func TestLoad_CustomThreshold(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.42")

	cfg := Load()

	if cfg.Match.Threshold != 0.42 {
		t.Errorf("expected threshold 0.42, got %v", cfg.Match.Threshold)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	tests := []string{"invalid", "-0.3", "0"}
	for _, value := range tests {
		t.Run(value, func(t *testing.T) {
			t.Setenv("MATCH_THRESHOLD", value)

			cfg := Load()

			// Should fall back to default
			if cfg.Match.Threshold != 0.5 {
				t.Errorf("expected default threshold 0.5 for %q, got %v", value, cfg.Match.Threshold)
			}
		})
	}
}

func TestLoad_ClusterConfig(t *testing.T) {
	t.Setenv("CLUSTER_EPS", "0.6")
	t.Setenv("CLUSTER_MIN_PTS", "3")

	cfg := Load()

	if cfg.Cluster.Eps != 0.6 {
		t.Errorf("expected eps 0.6, got %v", cfg.Cluster.Eps)
	}
	if cfg.Cluster.MinPts != 3 {
		t.Errorf("expected minPts 3, got %d", cfg.Cluster.MinPts)
	}
}

func TestLoad_StoreConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("STORE_PATH", "/tmp/faces")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "7")

	cfg := Load()

	if cfg.Store.Backend != "postgres" {
		t.Errorf("expected backend 'postgres', got '%s'", cfg.Store.Backend)
	}
	if cfg.Store.Path != "/tmp/faces" {
		t.Errorf("expected path '/tmp/faces', got '%s'", cfg.Store.Path)
	}
	if cfg.Store.DatabaseURL != "postgres://u:p@localhost/db" {
		t.Errorf("unexpected database URL '%s'", cfg.Store.DatabaseURL)
	}
	if cfg.Store.MaxOpenConns != 7 {
		t.Errorf("expected 7 open conns, got %d", cfg.Store.MaxOpenConns)
	}
	if cfg.Store.MaxIdleConns != 5 {
		t.Errorf("expected default 5 idle conns, got %d", cfg.Store.MaxIdleConns)
	}
}

func TestLoad_EmbeddingConfig(t *testing.T) {
	t.Setenv("EMBEDDING_URL", "http://embed:9000")
	t.Setenv("EMBEDDING_TIMEOUT", "5")

	cfg := Load()

	if cfg.Embedding.URL != "http://embed:9000" {
		t.Errorf("expected embedding URL 'http://embed:9000', got '%s'", cfg.Embedding.URL)
	}
	if cfg.Embedding.Timeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Embedding.Timeout())
	}
	if cfg.Embedding.MaxImageSize != 1920 {
		t.Errorf("expected default max image size 1920, got %d", cfg.Embedding.MaxImageSize)
	}
}

func TestLoad_WebConfig(t *testing.T) {
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	if cfg.Web.Host != "127.0.0.1" || cfg.Web.Port != 9090 {
		t.Errorf("unexpected web address %s:%d", cfg.Web.Host, cfg.Web.Port)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !slices.Equal(cfg.Web.AllowedOrigins, want) {
		t.Errorf("expected origins %v, got %v", want, cfg.Web.AllowedOrigins)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got '%s'", cfg.Log.Level)
	}
}
