package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Match     MatchConfig     `yaml:"match"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type StoreConfig struct {
	Backend      string `yaml:"backend"`        // file, badger, postgres or sqlite
	Path         string `yaml:"path"`           // store file / badger dir / sqlite database path
	DatabaseURL  string `yaml:"database_url"`   // PostgreSQL connection URL (postgres backend only)
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL            string `yaml:"url"`             // defaults to http://localhost:8000
	MaxImageSize   int    `yaml:"max_image_size"`  // longest side sent to the embedding server
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-request timeout
}

// Timeout returns the embedding request timeout.
func (c *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type MatchConfig struct {
	Threshold float64 `yaml:"threshold"` // recognition accepts distances strictly below this
}

type ClusterConfig struct {
	Eps    float64 `yaml:"eps"`     // DBSCAN neighborhood radius
	MinPts int     `yaml:"min_pts"` // DBSCAN minimum neighborhood size, self included
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the env var value, or defaultVal when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the built-in configuration without environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Store: StoreConfig{
			Backend:      envString("STORE_BACKEND", d.Store.Backend),
			Path:         envString("STORE_PATH", d.Store.Path),
			DatabaseURL:  envString("DATABASE_URL", d.Store.DatabaseURL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Store.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Store.MaxIdleConns),
		},
		Embedding: EmbeddingConfig{
			URL:            envString("EMBEDDING_URL", d.Embedding.URL),
			MaxImageSize:   envInt("EMBEDDING_MAX_IMAGE_SIZE", d.Embedding.MaxImageSize),
			TimeoutSeconds: envInt("EMBEDDING_TIMEOUT", d.Embedding.TimeoutSeconds),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Match.Threshold),
		},
		Cluster: ClusterConfig{
			Eps:    envFloat("CLUSTER_EPS", d.Cluster.Eps),
			MinPts: envInt("CLUSTER_MIN_PTS", d.Cluster.MinPts),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		Log: LogConfig{
			Level: strings.ToLower(envString("LOG_LEVEL", d.Log.Level)),
		},
	}
}
