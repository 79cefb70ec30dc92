// Package config provides runtime configuration values for the service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration knobs for the sync engine, the state store,
// and the HTTP trigger surface.
type Config struct {
	BaseURL        string
	APIKey         string
	RateLimitRPS   int
	MaxAttempts    int
	InitialBackoff time.Duration
	HTTPTimeout    time.Duration
	WorkerCount    int

	FeedPath    string
	StateDriver string
	StateDSN    string

	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Supported state drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		BaseURL:        getenv("ESHOP_API_BASE_URL", "http://localhost:9000"),
		APIKey:         getenv("ESHOP_API_KEY", ""),
		RateLimitRPS:   atoienv("RATE_LIMIT_RPS", 5),
		MaxAttempts:    atoienv("MAX_ATTEMPTS", 3),
		InitialBackoff: durenvms("INITIAL_BACKOFF_MS", 1000),
		HTTPTimeout:    durenvms("HTTP_TIMEOUT_MS", 10000),
		WorkerCount:    atoienv("WORKER_COUNT", 4),

		FeedPath:    getenv("FEED_PATH", "erp_data.json"),
		StateDriver: getenv("STATE_DRIVER", DriverSQLite),
		StateDSN:    getenv("STATE_DSN", "catalog-sync.db"),

		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}
}

// fileConfig mirrors the YAML config file shape. Durations are expressed in
// milliseconds or seconds to match the environment knobs.
type fileConfig struct {
	BaseURL          *string `yaml:"base_url"`
	APIKey           *string `yaml:"api_key"`
	RateLimitRPS     *int    `yaml:"rate_limit_rps"`
	MaxAttempts      *int    `yaml:"max_attempts"`
	InitialBackoffMS *int    `yaml:"initial_backoff_ms"`
	HTTPTimeoutMS    *int    `yaml:"http_timeout_ms"`
	WorkerCount      *int    `yaml:"worker_count"`
	FeedPath         *string `yaml:"feed_path"`
	StateDriver      *string `yaml:"state_driver"`
	StateDSN         *string `yaml:"state_dsn"`
	HTTPAddr         *string `yaml:"http_addr"`
	ShutdownTimeoutS *int    `yaml:"shutdown_timeout_s"`
	LogLevel         *string `yaml:"log_level"`
}

// LoadFile loads defaults, overlays the YAML file at path, then lets any set
// environment variables win. A missing file is an error; the caller decides
// whether a config file is mandatory.
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	c := Load()
	applyString := func(dst *string, envKey string, v *string) {
		if v != nil && os.Getenv(envKey) == "" {
			*dst = *v
		}
	}
	applyInt := func(dst *int, envKey string, v *int) {
		if v != nil && os.Getenv(envKey) == "" {
			*dst = *v
		}
	}
	applyString(&c.BaseURL, "ESHOP_API_BASE_URL", fc.BaseURL)
	applyString(&c.APIKey, "ESHOP_API_KEY", fc.APIKey)
	applyInt(&c.RateLimitRPS, "RATE_LIMIT_RPS", fc.RateLimitRPS)
	applyInt(&c.MaxAttempts, "MAX_ATTEMPTS", fc.MaxAttempts)
	if fc.InitialBackoffMS != nil && os.Getenv("INITIAL_BACKOFF_MS") == "" {
		c.InitialBackoff = time.Duration(*fc.InitialBackoffMS) * time.Millisecond
	}
	if fc.HTTPTimeoutMS != nil && os.Getenv("HTTP_TIMEOUT_MS") == "" {
		c.HTTPTimeout = time.Duration(*fc.HTTPTimeoutMS) * time.Millisecond
	}
	applyInt(&c.WorkerCount, "WORKER_COUNT", fc.WorkerCount)
	applyString(&c.FeedPath, "FEED_PATH", fc.FeedPath)
	applyString(&c.StateDriver, "STATE_DRIVER", fc.StateDriver)
	applyString(&c.StateDSN, "STATE_DSN", fc.StateDSN)
	applyString(&c.HTTPAddr, "HTTP_ADDR", fc.HTTPAddr)
	if fc.ShutdownTimeoutS != nil && os.Getenv("SHUTDOWN_TIMEOUT") == "" {
		c.ShutdownTimeout = time.Duration(*fc.ShutdownTimeoutS) * time.Second
	}
	applyString(&c.LogLevel, "LOG_LEVEL", fc.LogLevel)
	return c, nil
}
