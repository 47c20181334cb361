// Package config handles Sofía configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds Sofía configuration
type Config struct {
	// Calendar storage
	DatabasePath string `yaml:"database_path"`

	// Session storage
	SessionDriver string        `yaml:"session_driver"` // "memory" or "redis"
	RedisAddr     string        `yaml:"redis_addr"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`

	// Model providers
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	GeminiModel  string        `yaml:"gemini_model"`
	OpenAIAPIKey string        `yaml:"openai_api_key"`
	OpenAIModel  string        `yaml:"openai_model"`
	LLMTimeout   time.Duration `yaml:"llm_timeout"`

	// Conversation settings
	HistoryLimit int `yaml:"history_limit"`
	MaxAttempts  int `yaml:"max_attempts"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Load loads configuration from defaults, an optional YAML file and
// environment overrides, in that order of precedence (environment wins).
// path may be empty; then sofia.yaml in the working directory is tried.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DatabasePath:  defaultDatabasePath(),
		SessionDriver: "memory",
		RedisAddr:     "localhost:6379",
		RedisTTL:      24 * time.Hour,
		GeminiModel:   "gemini-1.5-flash",
		OpenAIModel:   "gpt-4o-mini",
		LLMTimeout:    30 * time.Second,
		HistoryLimit:  10,
		MaxAttempts:   3,
		LogLevel:      "info",
	}

	explicit := path != ""
	if path == "" {
		path = "sofia.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case explicit:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	// Environment overrides
	if v := os.Getenv("SOFIA_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("SOFIA_SESSION_DRIVER"); v != "" {
		cfg.SessionDriver = v
	}
	if v := os.Getenv("SOFIA_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("SOFIA_REDIS_TTL"); v != "" {
		cfg.RedisTTL = parseDurationOrDefault(v, 24*time.Hour)
	}
	if v := os.Getenv("SOFIA_GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("SOFIA_GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("SOFIA_OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("SOFIA_OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv("SOFIA_LLM_TIMEOUT"); v != "" {
		cfg.LLMTimeout = parseDurationOrDefault(v, 30*time.Second)
	}
	if v := os.Getenv("SOFIA_HISTORY_LIMIT"); v != "" {
		cfg.HistoryLimit = parseIntOrDefault(v, 10)
	}
	if v := os.Getenv("SOFIA_MAX_ATTEMPTS"); v != "" {
		cfg.MaxAttempts = parseIntOrDefault(v, 3)
	}
	if v := os.Getenv("SOFIA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SOFIA_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true" || v == "1"
	}

	if cfg.SessionDriver != "memory" && cfg.SessionDriver != "redis" {
		return nil, fmt.Errorf("unknown session driver %q", cfg.SessionDriver)
	}
	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("history limit must be positive, got %d", cfg.HistoryLimit)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

// defaultDatabasePath returns SQLite in the working directory
func defaultDatabasePath() string {
	dir, err := os.Getwd()
	if err != nil {
		return "sofia.db"
	}
	return filepath.Join(dir, "sofia.db")
}

func parseIntOrDefault(s string, def int) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return def
	}
	return i
}

func parseDurationOrDefault(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
