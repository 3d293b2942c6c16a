// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CMSCORE_"

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Wire     WireConfig     `yaml:"wire"`
	Items    ItemsConfig    `yaml:"items"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the content store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite memory"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver sqlite"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"startswith=/"`
}

// WireConfig selects the response format used when a client sends no Accept.
type WireConfig struct {
	DefaultFormat string `yaml:"default_format" validate:"oneof=json cbor"`
}

// ContentType returns the media type of the default format.
func (w WireConfig) ContentType() string {
	if w.DefaultFormat == "cbor" {
		return "application/cbor"
	}
	return "application/json"
}

// ItemsConfig tunes the item service.
type ItemsConfig struct {
	LockShards      int `yaml:"lock_shards" validate:"min=1,max=4096"`
	DefaultPageSize int `yaml:"default_page_size" validate:"min=1"`
	MaxPageSize     int `yaml:"max_page_size" validate:"gtefield=DefaultPageSize"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml keys rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML, expanding ${VAR} references and
// applying CMSCORE_* overrides and defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	CMSCORE_SERVER_HOST         - Server host (default: 0.0.0.0)
//	CMSCORE_SERVER_PORT         - Server port (default: 8080)
//	CMSCORE_DATABASE_DRIVER     - sqlite or memory (default: sqlite)
//	CMSCORE_DATABASE_DSN        - Database path (default: cmscore.db)
//	CMSCORE_LOG_LEVEL           - Log level (default: info)
//	CMSCORE_LOG_FORMAT          - json or console (default: json)
//	CMSCORE_METRICS_ENABLED     - Enable /metrics (default: true)
//	CMSCORE_WIRE_DEFAULT_FORMAT - json or cbor (default: json)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.Metrics.Enabled = true

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFallback loads the file when it exists and the environment
// otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// Validate checks every section, reporting each violation by its yaml path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s: failed %s=%s (got %v)", path, fe.Tag(), fe.Param(), fe.Value())
		} else {
			msgs[i] = fmt.Sprintf("%s: failed %s", path, fe.Tag())
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// applyEnvOverrides applies CMSCORE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	envString("SERVER_HOST", &cfg.Server.Host)
	envInt("SERVER_PORT", &cfg.Server.Port)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	envString("DATABASE_DRIVER", &cfg.Database.Driver)
	envString("DATABASE_DSN", &cfg.Database.DSN)

	envString("LOG_LEVEL", &cfg.Logging.Level)
	envString("LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv(EnvPrefix + "METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	envString("METRICS_PATH", &cfg.Metrics.Path)

	envString("WIRE_DEFAULT_FORMAT", &cfg.Wire.DefaultFormat)

	envInt("ITEMS_LOCK_SHARDS", &cfg.Items.LockShards)
	envInt("ITEMS_DEFAULT_PAGE_SIZE", &cfg.Items.DefaultPageSize)
	envInt("ITEMS_MAX_PAGE_SIZE", &cfg.Items.MaxPageSize)
}

func envString(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "cmscore.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Wire.DefaultFormat == "" {
		cfg.Wire.DefaultFormat = "json"
	}

	if cfg.Items.LockShards == 0 {
		cfg.Items.LockShards = 64
	}
	if cfg.Items.DefaultPageSize == 0 {
		cfg.Items.DefaultPageSize = 50
	}
	if cfg.Items.MaxPageSize == 0 {
		cfg.Items.MaxPageSize = 100
	}
}
