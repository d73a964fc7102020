// Package config provides configuration management for the copilot dashboard client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIBase is the backend address used when none is configured.
	DefaultAPIBase = "http://localhost:8000"
	// DefaultEventsTopic is the Redpanda topic dashboard events are mirrored to.
	DefaultEventsTopic = "copilot.dashboard.events"
	// DefaultLogFile receives logs while the TUI owns the terminal.
	DefaultLogFile = "copilot.log"
)

// Config holds the application configuration. It is resolved once at startup and
// injected into each component.
type Config struct {
	// APIBase is the base URL for every backend request.
	APIBase string `yaml:"api_base"`
	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// HealthInterval re-probes the backend periodically. Zero means a single check.
	HealthInterval time.Duration `yaml:"health_interval"`
	// TaskListLimit caps the agent task list.
	TaskListLimit int `yaml:"task_list_limit"`
	// LogPageSize is the number of log entries requested per page.
	LogPageSize int `yaml:"log_page_size"`
	// Breaker wraps backend calls in a circuit breaker.
	Breaker bool `yaml:"breaker"`
	// LogFile receives logs in TUI mode.
	LogFile string `yaml:"log_file"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
	// RedpandaBrokers mirrors dashboard events to Redpanda when set.
	RedpandaBrokers []string `yaml:"redpanda_brokers"`
	// EventsTopic is the topic used for mirrored events.
	EventsTopic string `yaml:"events_topic"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		APIBase:        DefaultAPIBase,
		RequestTimeout: 30 * time.Second,
		TaskListLimit:  100,
		LogPageSize:    50,
		LogFile:        DefaultLogFile,
		EventsTopic:    DefaultEventsTopic,
	}
}

// LoadFromEnv loads configuration from environment variables on top of the defaults.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads a YAML config file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
// This is useful for initialization in main() where configuration errors should be fatal.
func MustLoadFromEnv() *Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil {
		return fmt.Errorf("COPILOT_API_BASE is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("COPILOT_API_BASE must be an absolute http(s) URL, got %q", c.APIBase)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.HealthInterval < 0 {
		return fmt.Errorf("health interval must not be negative, got %s", c.HealthInterval)
	}
	if c.TaskListLimit <= 0 {
		return fmt.Errorf("task list limit must be positive, got %d", c.TaskListLimit)
	}
	if c.LogPageSize <= 0 {
		return fmt.Errorf("log page size must be positive, got %d", c.LogPageSize)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("COPILOT_API_BASE"); v != "" {
		c.APIBase = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("COPILOT_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COPILOT_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("COPILOT_HEALTH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COPILOT_HEALTH_INTERVAL: %w", err)
		}
		c.HealthInterval = d
	}
	if v := os.Getenv("COPILOT_TASK_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COPILOT_TASK_LIMIT: %w", err)
		}
		c.TaskListLimit = n
	}
	if v := os.Getenv("COPILOT_LOG_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid COPILOT_LOG_PAGE_SIZE: %w", err)
		}
		c.LogPageSize = n
	}
	if v := os.Getenv("COPILOT_BREAKER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COPILOT_BREAKER: %w", err)
		}
		c.Breaker = b
	}
	if v := os.Getenv("COPILOT_LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv("COPILOT_DEBUG"); v != "" {
		c.Debug = v != "0" && strings.ToLower(v) != "false"
	}
	if v := os.Getenv("REDPANDA_BROKERS"); v != "" {
		c.RedpandaBrokers = splitList(v)
	}
	if v := os.Getenv("COPILOT_EVENTS_TOPIC"); v != "" {
		c.EventsTopic = v
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
