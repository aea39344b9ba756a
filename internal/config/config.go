// Package config loads server settings from a YAML file, a .env file and the
// process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcoot/geoseek/internal/model"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config is the full server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	H2C            bool     `yaml:"h2c"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// StorageConfig selects and configures the summary archive
type StorageConfig struct {
	Type       string        `yaml:"type"`
	RedisURL   string        `yaml:"redis_url"`
	SummaryTTL time.Duration `yaml:"summary_ttl"`
}

// SessionConfig holds session coordination settings
type SessionConfig struct {
	LateJoinPolicy     model.LateJoinPolicy `yaml:"late_join_policy"`
	DefaultStartPolicy model.StartPolicy    `yaml:"default_start_policy"`
	TickInterval       time.Duration        `yaml:"tick_interval"`
	// ReapAfter is how long ended sessions stay resident; zero disables reaping
	ReapAfter    time.Duration `yaml:"reap_after"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Type:       StorageMemory,
			SummaryTTL: 7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			LateJoinPolicy:     model.LateJoinReject,
			DefaultStartPolicy: model.StartManual,
			TickInterval:       time.Second,
			ReapInterval:       time.Minute,
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file.
// Values from the environment override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment. Missing files are ignored; set variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
			}
		}
	}
	num := func(dst *int, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", k, err))
					continue
				}
				*dst = n
			}
		}
	}
	flag := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.Server.Host, "GEOSEEK_HOST")
	// GEOSEEK_PORT wins over the platform-provided PORT
	num(&c.Server.Port, "PORT", "GEOSEEK_PORT")
	flag(&c.Server.H2C, "GEOSEEK_H2C")
	if v, ok := lookup("GEOSEEK_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	str(&c.Log.Level, "GEOSEEK_LOG_LEVEL")
	str(&c.Log.Format, "GEOSEEK_LOG_FORMAT")

	str(&c.Storage.Type, "STORAGE_TYPE", "GEOSEEK_STORAGE_TYPE")
	str(&c.Storage.RedisURL, "REDIS_URL", "GEOSEEK_REDIS_URL")
	dur(&c.Storage.SummaryTTL, "GEOSEEK_SUMMARY_TTL")

	var lateJoin, startPolicy string
	str(&lateJoin, "GEOSEEK_LATE_JOIN_POLICY")
	str(&startPolicy, "GEOSEEK_DEFAULT_START_POLICY")
	if lateJoin != "" {
		c.Session.LateJoinPolicy = model.LateJoinPolicy(lateJoin)
	}
	if startPolicy != "" {
		c.Session.DefaultStartPolicy = model.StartPolicy(startPolicy)
	}
	dur(&c.Session.TickInterval, "GEOSEEK_TICK_INTERVAL")
	dur(&c.Session.ReapAfter, "GEOSEEK_REAP_AFTER")
	dur(&c.Session.ReapInterval, "GEOSEEK_REAP_INTERVAL")

	return errors.Join(errs...)
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

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url required when storage.type is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be memory or redis, got %q", c.Storage.Type))
	}
	if !c.Session.LateJoinPolicy.Valid() {
		errs = append(errs, fmt.Errorf("session.late_join_policy must be reject or allow, got %q", c.Session.LateJoinPolicy))
	}
	if !c.Session.DefaultStartPolicy.Valid() {
		errs = append(errs, fmt.Errorf("session.default_start_policy must be manual or auto, got %q", c.Session.DefaultStartPolicy))
	}
	if c.Session.TickInterval <= 0 {
		errs = append(errs, errors.New("session.tick_interval must be positive"))
	}
	if c.Session.ReapAfter < 0 {
		errs = append(errs, errors.New("session.reap_after must not be negative"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured level
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the application logger writing to w
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
