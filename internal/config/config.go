package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FREELANCE_ADDR.
const EnvPrefix = "FREELANCE_"

type Config struct {
	Addr         string        `yaml:"addr" toml:"addr"`
	APITimeout   time.Duration `yaml:"timeout" toml:"timeout"`
	DatabasePath string        `yaml:"database_path" toml:"database_path"`
	LogLevel     string        `yaml:"log_level" toml:"log_level"`
	Env          string        `yaml:"env" toml:"env"`

	Deposit DepositConfig `yaml:"deposit" toml:"deposit"`
	Reports ReportsConfig `yaml:"reports" toml:"reports"`
	Workers WorkersConfig `yaml:"workers" toml:"workers"`
}

type DepositConfig struct {
	// MaxRatio bounds a deposit to this share of the client's outstanding jobs.
	MaxRatio        float64 `yaml:"max_ratio" toml:"max_ratio"`
	AllowThirdParty bool    `yaml:"allow_third_party" toml:"allow_third_party"`
}

type ReportsConfig struct {
	DefaultScope string `yaml:"default_scope" toml:"default_scope"`
	DefaultLimit int    `yaml:"default_limit" toml:"default_limit"`
	MaxLimit     int    `yaml:"max_limit" toml:"max_limit"`
}

type WorkersConfig struct {
	Count        int           `yaml:"count" toml:"count"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts" toml:"max_attempts"`
	// Lease is how long a running task may go untouched before it is retried.
	Lease        time.Duration `yaml:"lease" toml:"lease"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:         ":8080",
		APITimeout:   15 * time.Second,
		DatabasePath: "freelance.db",
		LogLevel:     "info",
		Env:          "development",
		Deposit: DepositConfig{
			MaxRatio: 0.25,
		},
		Reports: ReportsConfig{
			DefaultScope: "caller",
			DefaultLimit: 2,
			MaxLimit:     100,
		},
		Workers: WorkersConfig{
			Count:        2,
			PollInterval: time.Second,
			MaxAttempts:  5,
			Lease:        5 * time.Minute,
		},
	}
}

// LoadConfig layers defaults, a .env file in the working directory, FREELANCE_*
// environment variables and finally the file at path (YAML, or TOML when the
// name ends in .toml). The result is validated.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	c.Addr = getEnv("ADDR", c.Addr)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Env = getEnv("ENV", c.Env)
	c.Reports.DefaultScope = getEnv("REPORTS_DEFAULT_SCOPE", c.Reports.DefaultScope)

	var err error
	if v := getEnv("TIMEOUT", ""); v != "" {
		if c.APITimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
	}
	if v := getEnv("DEPOSIT_MAX_RATIO", ""); v != "" {
		if c.Deposit.MaxRatio, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("%sDEPOSIT_MAX_RATIO: %w", EnvPrefix, err)
		}
	}
	if v := getEnv("DEPOSIT_ALLOW_THIRD_PARTY", ""); v != "" {
		if c.Deposit.AllowThirdParty, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("%sDEPOSIT_ALLOW_THIRD_PARTY: %w", EnvPrefix, err)
		}
	}
	if v := getEnv("WORKERS", ""); v != "" {
		if c.Workers.Count, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
	}

	return nil
}

// Validate checks required values and fills zero values with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.APITimeout <= 0 {
		c.APITimeout = def.APITimeout
	}

	switch strings.ToLower(c.LogLevel) {
	case "":
		c.LogLevel = def.LogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	if c.Deposit.MaxRatio < 0 || c.Deposit.MaxRatio > 1 {
		return fmt.Errorf("deposit.max_ratio must be within [0, 1], got %v", c.Deposit.MaxRatio)
	}
	if c.Deposit.MaxRatio == 0 {
		c.Deposit.MaxRatio = def.Deposit.MaxRatio
	}

	switch c.Reports.DefaultScope {
	case "":
		c.Reports.DefaultScope = def.Reports.DefaultScope
	case "caller", "global":
	default:
		return fmt.Errorf("reports.default_scope must be caller or global, got %q", c.Reports.DefaultScope)
	}
	if c.Reports.MaxLimit <= 0 {
		c.Reports.MaxLimit = def.Reports.MaxLimit
	}
	if c.Reports.DefaultLimit <= 0 {
		c.Reports.DefaultLimit = def.Reports.DefaultLimit
	}
	if c.Reports.DefaultLimit > c.Reports.MaxLimit {
		return fmt.Errorf("reports.default_limit %d exceeds reports.max_limit %d", c.Reports.DefaultLimit, c.Reports.MaxLimit)
	}

	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative")
	}
	if c.Workers.PollInterval <= 0 {
		c.Workers.PollInterval = def.Workers.PollInterval
	}
	if c.Workers.MaxAttempts <= 0 {
		c.Workers.MaxAttempts = def.Workers.MaxAttempts
	}
	if c.Workers.Lease <= 0 {
		c.Workers.Lease = def.Workers.Lease
	}

	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || strings.EqualFold(c.Env, "development")
}

func getEnv(key, def string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}

	return def
}
