// Package config centralizes environment-driven configuration. Unlike the
// teacher's GetConfig/LoadConfig singleton pair, callers build a *Config
// once at startup and pass it explicitly, consistent with the rest of this
// module's preference for explicit context over package-level state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-tunable setting for the editor service,
// the repair driver, and the HTTP gateway.
type Config struct {
	HTTPAddr   string
	LogLevel   string
	LogFormat  string
	SchemaPath string // empty means use the bundled schema

	RepairMaxIters       int
	RepairProviderKind   string // "mock" or "cmd"
	RepairProviderCmd    string
	PatchProviderTimeout time.Duration

	PropcheckDefaultCases int
	PropcheckMaxSize      int

	RateLimitRPS   int
	RateLimitBurst int

	MetricsEnabled bool

	AuditDSN string // audit log backing store, empty disables persistence
}

// fileConfig is the subset of Config an astra.yaml file may set. Fields are
// pointers so "unset in YAML" is distinguishable from "zero value"; only
// the property-runner defaults and rate-limit settings are overridable
// this way, matching what the teacher's env-only config.go leaves on the
// table for a file-based layer to fill.
type fileConfig struct {
	PropcheckDefaultCases *int `yaml:"propcheck_default_cases"`
	PropcheckMaxSize      *int `yaml:"propcheck_max_size"`
	RateLimitRPS          *int `yaml:"rate_limit_rps"`
	RateLimitBurst        *int `yaml:"rate_limit_burst"`
}

// Load reads configuration from an optional astra.yaml file (path from
// ASTRA_CONFIG_FILE, default "astra.yaml" if present) layered under
// environment variables, which always win. Typed defaults apply when
// neither source sets a value.
func Load() (*Config, error) {
	fc := loadFileConfig(getEnv("ASTRA_CONFIG_FILE", "astra.yaml"))

	cfg := &Config{
		HTTPAddr:   getEnv("ASTRA_HTTP_ADDR", ":8080"),
		LogLevel:   getEnv("ASTRA_LOG_LEVEL", "info"),
		LogFormat:  getEnv("ASTRA_LOG_FORMAT", "console"),
		SchemaPath: getEnv("ASTRA_SCHEMA_PATH", ""),

		RepairMaxIters:       parseInt("ASTRA_REPAIR_MAX_ITERS", 5),
		RepairProviderKind:   getEnv("ASTRA_REPAIR_PROVIDER", "mock"),
		RepairProviderCmd:    getEnv("ASTRA_REPAIR_PROVIDER_CMD", ""),
		PatchProviderTimeout: parseDuration("ASTRA_PATCH_PROVIDER_TIMEOUT", 60*time.Second),

		PropcheckDefaultCases: parseIntFile("ASTRA_PROPCHECK_CASES", fc.PropcheckDefaultCases, 100),
		PropcheckMaxSize:      parseIntFile("ASTRA_PROPCHECK_MAX_SIZE", fc.PropcheckMaxSize, 50),

		RateLimitRPS:   parseIntFile("ASTRA_RATE_LIMIT_RPS", fc.RateLimitRPS, 20),
		RateLimitBurst: parseIntFile("ASTRA_RATE_LIMIT_BURST", fc.RateLimitBurst, 40),

		MetricsEnabled: parseBool("ASTRA_METRICS_ENABLED", true),

		AuditDSN: getEnv("ASTRA_AUDIT_DSN", ""),
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFileConfig reads path if it exists, ignoring a missing file (the
// YAML layer is entirely optional). A malformed file that does exist is
// treated as empty rather than fatal, since env vars can still fully
// populate Config.
func loadFileConfig(path string) fileConfig {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	_ = yaml.Unmarshal(b, &fc)
	return fc
}

func validate(cfg *Config) error {
	if cfg.RepairMaxIters <= 0 {
		return fmt.Errorf("ASTRA_REPAIR_MAX_ITERS must be > 0")
	}
	if cfg.RepairProviderKind != "mock" && cfg.RepairProviderKind != "cmd" {
		return fmt.Errorf("ASTRA_REPAIR_PROVIDER must be 'mock' or 'cmd', got %q", cfg.RepairProviderKind)
	}
	if cfg.RepairProviderKind == "cmd" && cfg.RepairProviderCmd == "" {
		return fmt.Errorf("ASTRA_REPAIR_PROVIDER_CMD is required when ASTRA_REPAIR_PROVIDER=cmd")
	}
	if cfg.PatchProviderTimeout <= 0 {
		return fmt.Errorf("ASTRA_PATCH_PROVIDER_TIMEOUT must be > 0")
	}
	if cfg.PropcheckDefaultCases <= 0 {
		return fmt.Errorf("ASTRA_PROPCHECK_CASES must be > 0")
	}
	if cfg.PropcheckMaxSize <= 0 {
		return fmt.Errorf("ASTRA_PROPCHECK_MAX_SIZE must be > 0")
	}
	if cfg.RateLimitRPS <= 0 {
		return fmt.Errorf("ASTRA_RATE_LIMIT_RPS must be > 0")
	}
	if cfg.RateLimitBurst <= 0 {
		return fmt.Errorf("ASTRA_RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// parseIntFile resolves an int setting with precedence env > file > default.
func parseIntFile(key string, fileValue *int, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
