package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the lead-capture chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	PlannerMode    string
	PlannerHTTPURL string
	PlannerAPIKey  string
	PlannerModel   string
	PlannerTimeout time.Duration

	PersistTimeout  time.Duration
	DatabaseURL     string
	SheetWebhookURL string

	LeadSchemaPath  string
	DefaultLanguage string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "tutorlead"),
		AllowAnyOrigin:   false,
		PlannerMode:      envOrDefault("PLANNER_MODE", "auto"),
		PlannerHTTPURL:   stringsTrimSpace("PLANNER_HTTP_URL"),
		PlannerAPIKey:    stringsTrimSpace("PLANNER_API_KEY"),
		PlannerModel:     envOrDefault("PLANNER_MODEL", "gpt-4o-mini"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		SheetWebhookURL:  stringsTrimSpace("SHEET_WEBHOOK_URL"),
		LeadSchemaPath:   stringsTrimSpace("LEAD_SCHEMA_PATH"),
		DefaultLanguage:  envOrDefault("DEFAULT_LANGUAGE", "en"),
		ShutdownTimeout:  15 * time.Second,
		PlannerTimeout:   20 * time.Second,
		PersistTimeout:   10 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PlannerTimeout, err = durationFromEnv("PLANNER_TIMEOUT", cfg.PlannerTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PersistTimeout, err = durationFromEnv("PERSIST_TIMEOUT", cfg.PersistTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.PlannerTimeout < time.Second {
		return Config{}, fmt.Errorf("PLANNER_TIMEOUT must be at least 1s")
	}
	if cfg.PersistTimeout < time.Second {
		return Config{}, fmt.Errorf("PERSIST_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
