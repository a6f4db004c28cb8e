package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsDoNotSetPlannerHTTPURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PlannerMode != "auto" {
		t.Fatalf("PlannerMode = %q, want %q", cfg.PlannerMode, "auto")
	}
	if cfg.PlannerHTTPURL != "" {
		t.Fatalf("PlannerHTTPURL = %q, want empty default", cfg.PlannerHTTPURL)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.PlannerTimeout != 20*time.Second {
		t.Fatalf("PlannerTimeout = %v, want 20s", cfg.PlannerTimeout)
	}
}

func TestLoadUsesExplicitPlannerHTTPURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PLANNER_HTTP_URL", "http://localhost:7777/v1/chat/completions")
	t.Setenv("PLANNER_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PlannerHTTPURL != "http://localhost:7777/v1/chat/completions" {
		t.Fatalf("PlannerHTTPURL = %q, want explicit value", cfg.PlannerHTTPURL)
	}
	if cfg.PlannerTimeout != 5*time.Second {
		t.Fatalf("PlannerTimeout = %v, want 5s", cfg.PlannerTimeout)
	}
}

func TestLoadRejectsTinyPlannerTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("PLANNER_TIMEOUT", "200ms")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for sub-second planner timeout")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"PLANNER_MODE",
		"PLANNER_HTTP_URL",
		"PLANNER_API_KEY",
		"PLANNER_MODEL",
		"PLANNER_TIMEOUT",
		"PERSIST_TIMEOUT",
		"DATABASE_URL",
		"SHEET_WEBHOOK_URL",
		"LEAD_SCHEMA_PATH",
		"DEFAULT_LANGUAGE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
