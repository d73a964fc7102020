package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("COPILOT_API_BASE", "")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() unexpected error: %v", err)
		}

		if cfg.APIBase != DefaultAPIBase {
			t.Errorf("APIBase = %v, want %v", cfg.APIBase, DefaultAPIBase)
		}
		if cfg.LogPageSize != 50 {
			t.Errorf("LogPageSize = %d, want 50", cfg.LogPageSize)
		}
		if cfg.TaskListLimit != 100 {
			t.Errorf("TaskListLimit = %d, want 100", cfg.TaskListLimit)
		}
		if cfg.HealthInterval != 0 {
			t.Errorf("HealthInterval = %v, want single check", cfg.HealthInterval)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("COPILOT_API_BASE", "https://copilot.example.com/")
		t.Setenv("COPILOT_REQUEST_TIMEOUT", "5s")
		t.Setenv("COPILOT_HEALTH_INTERVAL", "15s")
		t.Setenv("COPILOT_TASK_LIMIT", "25")
		t.Setenv("COPILOT_BREAKER", "true")
		t.Setenv("REDPANDA_BROKERS", "localhost:19092, localhost:29092")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() unexpected error: %v", err)
		}

		if cfg.APIBase != "https://copilot.example.com" {
			t.Errorf("APIBase = %v, trailing slash should be trimmed", cfg.APIBase)
		}
		if cfg.RequestTimeout != 5*time.Second {
			t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
		}
		if cfg.HealthInterval != 15*time.Second {
			t.Errorf("HealthInterval = %v", cfg.HealthInterval)
		}
		if cfg.TaskListLimit != 25 {
			t.Errorf("TaskListLimit = %d", cfg.TaskListLimit)
		}
		if !cfg.Breaker {
			t.Error("Breaker should be enabled")
		}
		if len(cfg.RedpandaBrokers) != 2 || cfg.RedpandaBrokers[1] != "localhost:29092" {
			t.Errorf("RedpandaBrokers = %v", cfg.RedpandaBrokers)
		}
	})

	t.Run("invalid base url", func(t *testing.T) {
		t.Setenv("COPILOT_API_BASE", "localhost:8000")

		_, err := LoadFromEnv()
		if err == nil {
			t.Error("LoadFromEnv() expected error for relative URL, got nil")
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Setenv("COPILOT_REQUEST_TIMEOUT", "soon")

		_, err := LoadFromEnv()
		if err == nil {
			t.Error("LoadFromEnv() expected error for bad duration, got nil")
		}
	})

	t.Run("non-positive page size", func(t *testing.T) {
		t.Setenv("COPILOT_LOG_PAGE_SIZE", "0")

		_, err := LoadFromEnv()
		if err == nil {
			t.Error("LoadFromEnv() expected error for zero page size, got nil")
		}
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "copilot.yaml")
	content := `api_base: http://ci-dashboard:9000
request_timeout: 10s
health_interval: 1m
log_page_size: 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv("COPILOT_API_BASE", "")
	t.Setenv("COPILOT_LOG_PAGE_SIZE", "30")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() unexpected error: %v", err)
	}
	if cfg.APIBase != "http://ci-dashboard:9000" {
		t.Errorf("APIBase = %v", cfg.APIBase)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.HealthInterval != time.Minute {
		t.Errorf("HealthInterval = %v", cfg.HealthInterval)
	}
	if cfg.LogPageSize != 30 {
		t.Errorf("LogPageSize = %d, env should override file", cfg.LogPageSize)
	}
	if cfg.TaskListLimit != 100 {
		t.Errorf("TaskListLimit = %d, default should survive", cfg.TaskListLimit)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}
