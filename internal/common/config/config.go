// Package config provides configuration management for the A2A runtime.
// It supports loading configuration from environment variables, config
// files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the runtime.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Queue   QueueConfig   `mapstructure:"queue"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Push    PushConfig    `mapstructure:"push"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// StoreConfig selects the task store backend.
// Driver is one of: memory, sqlite, postgres.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"` // sqlite database file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// QueueConfig holds event queue tuning.
type QueueConfig struct {
	Capacity           int `mapstructure:"capacity"`           // events per queue
	PollerStartTimeout int `mapstructure:"pollerStartTimeout"` // producer handshake, seconds
}

// NATSConfig holds the optional NATS transport configuration.
// An empty URL disables the NATS binding.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Subject       string `mapstructure:"subject"`
	QueueGroup    string `mapstructure:"queueGroup"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// PushConfig holds push notification delivery settings.
type PushConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // per-request, seconds
}

// AgentConfig holds the agent card fields advertised on the discovery
// endpoint.
type AgentConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	URL         string `mapstructure:"url"`
	Version     string `mapstructure:"version"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// PollerStartTimeoutDuration returns the handshake timeout as a
// time.Duration.
func (q *QueueConfig) PollerStartTimeoutDuration() time.Duration {
	return time.Duration(q.PollerStartTimeout) * time.Second
}

// TimeoutDuration returns the push delivery timeout as a time.Duration.
func (p *PushConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// DSN returns the PostgreSQL connection string.
func (s *StoreConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.DBName, s.SSLMode,
	)
}

// detectDefaultLogFormat returns "json" in production-like environments and
// "text" for terminal/development use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("A2A_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Store defaults - in-memory unless configured otherwise
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "./a2a.db")
	v.SetDefault("store.host", "")
	v.SetDefault("store.port", 5432)
	v.SetDefault("store.user", "a2a")
	v.SetDefault("store.password", "")
	v.SetDefault("store.dbName", "a2a")
	v.SetDefault("store.sslMode", "disable")
	v.SetDefault("store.maxConns", 25)
	v.SetDefault("store.minConns", 5)

	// Queue defaults
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("queue.pollerStartTimeout", 10)

	// NATS defaults - empty URL means the NATS binding is disabled
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "a2a.rpc")
	v.SetDefault("nats.queueGroup", "a2a")
	v.SetDefault("nats.clientId", "a2a-server")
	v.SetDefault("nats.maxReconnects", 10)

	// Push defaults
	v.SetDefault("push.enabled", true)
	v.SetDefault("push.timeout", 10)

	// Agent card defaults
	v.SetDefault("agent.name", "a2a-server")
	v.SetDefault("agent.description", "A2A runtime")
	v.SetDefault("agent.url", "http://localhost:8080/")
	v.SetDefault("agent.version", "0.1.0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and
// defaults. Environment variables use the prefix A2A_ with snake_case
// naming. The config file is config.yaml in the current directory or
// /etc/a2a/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default
// locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("A2A")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/a2a/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be one of: memory, sqlite, postgres")
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.Path == "" {
		errs = append(errs, "store.path is required when store.driver is sqlite")
	}
	if cfg.Store.Driver == "postgres" {
		if cfg.Store.Host == "" {
			errs = append(errs, "store.host is required when store.driver is postgres")
		}
		if cfg.Store.DBName == "" {
			errs = append(errs, "store.dbName is required when store.driver is postgres")
		}
	}

	if cfg.Queue.Capacity <= 0 {
		errs = append(errs, "queue.capacity must be positive")
	}
	if cfg.Queue.PollerStartTimeout <= 0 {
		errs = append(errs, "queue.pollerStartTimeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
