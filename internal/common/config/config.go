// Package config provides configuration management for Agor.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the Agor terminal service.
type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	Logging       LoggingConfig         `mapstructure:"logging"`
	Terminal      TerminalConfig        `mapstructure:"terminal"`
	Impersonation ImpersonationConfig   `mapstructure:"impersonation"`
	Worktree      WorktreeConfig        `mapstructure:"worktree"`
	Users         map[string]UserConfig `mapstructure:"users"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// TerminalConfig holds PTY and multiplexer tuning.
type TerminalConfig struct {
	// SessionPrefix is prepended to the acting identity to form the
	// multiplexer session name (one shared session per identity).
	SessionPrefix string `mapstructure:"sessionPrefix"`

	// DefaultTab is the tab label used when a terminal has no worktree.
	DefaultTab string `mapstructure:"defaultTab"`

	// FlushIntervalMs is the output batcher delay in milliseconds.
	FlushIntervalMs int `mapstructure:"flushIntervalMs"`

	// MaxBufferBytes is the batcher force-flush ceiling.
	MaxBufferBytes int `mapstructure:"maxBufferBytes"`

	// ReadyTimeout is the first-output readiness ceiling in seconds.
	ReadyTimeout int `mapstructure:"readyTimeout"`

	// CommandTimeout bounds every external multiplexer call, in seconds.
	CommandTimeout int `mapstructure:"commandTimeout"`

	// CacheTTL is the multiplexer query cache window in seconds.
	CacheTTL int `mapstructure:"cacheTtl"`

	// EnvFileDir is where per-user sourceable env files are written.
	EnvFileDir string `mapstructure:"envFileDir"`

	// DefaultCols/DefaultRows are used when the caller requests no dimensions.
	DefaultCols int `mapstructure:"defaultCols"`
	DefaultRows int `mapstructure:"defaultRows"`
}

// ImpersonationMode selects which OS identity terminals run as.
type ImpersonationMode string

const (
	// ImpersonationNever runs every terminal as the service's own identity.
	ImpersonationNever ImpersonationMode = "never"
	// ImpersonationMapped impersonates only users with a mapped OS identity.
	ImpersonationMapped ImpersonationMode = "mapped"
	// ImpersonationAlways impersonates every terminal, falling back to the
	// configured fallback user when the requesting user has no mapping.
	ImpersonationAlways ImpersonationMode = "always"
)

// ImpersonationConfig holds OS identity impersonation settings.
type ImpersonationConfig struct {
	Mode         string `mapstructure:"mode"`         // never, mapped, always
	FallbackUser string `mapstructure:"fallbackUser"` // executor identity for "always" mode
}

// ParsedMode returns the impersonation mode as a typed value.
func (i *ImpersonationConfig) ParsedMode() ImpersonationMode {
	return ImpersonationMode(strings.ToLower(i.Mode))
}

// WorktreeConfig holds worktree path resolution settings.
type WorktreeConfig struct {
	// LinkRoot is the base under which per-identity worktree symlinks live,
	// as <linkRoot>/<identity>/worktrees/<name>.
	LinkRoot string `mapstructure:"linkRoot"`

	// Registry maps worktree IDs to their name and canonical path.
	Registry map[string]WorktreeEntry `mapstructure:"registry"`
}

// WorktreeEntry describes one registered worktree.
type WorktreeEntry struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
}

// UserConfig holds per-user identity mapping and custom environment.
type UserConfig struct {
	OSUser string            `mapstructure:"osUser"`
	Env    map[string]string `mapstructure:"env"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// FlushInterval returns the batcher delay as a time.Duration.
func (t *TerminalConfig) FlushInterval() time.Duration {
	return time.Duration(t.FlushIntervalMs) * time.Millisecond
}

// ReadyTimeoutDuration returns the readiness ceiling as a time.Duration.
func (t *TerminalConfig) ReadyTimeoutDuration() time.Duration {
	return time.Duration(t.ReadyTimeout) * time.Second
}

// CommandTimeoutDuration returns the multiplexer call bound as a time.Duration.
func (t *TerminalConfig) CommandTimeoutDuration() time.Duration {
	return time.Duration(t.CommandTimeout) * time.Second
}

// CacheTTLDuration returns the query cache window as a time.Duration.
func (t *TerminalConfig) CacheTTLDuration() time.Duration {
	return time.Duration(t.CacheTTL) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("AGOR_ENV"); env == "production" || env == "prod" {
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

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Terminal defaults
	v.SetDefault("terminal.sessionPrefix", "agor")
	v.SetDefault("terminal.defaultTab", "main")
	v.SetDefault("terminal.flushIntervalMs", 8)
	v.SetDefault("terminal.maxBufferBytes", 32*1024)
	v.SetDefault("terminal.readyTimeout", 3)
	v.SetDefault("terminal.commandTimeout", 5)
	v.SetDefault("terminal.cacheTtl", 5)
	v.SetDefault("terminal.envFileDir", "~/.agor/env")
	v.SetDefault("terminal.defaultCols", 80)
	v.SetDefault("terminal.defaultRows", 24)

	// Impersonation defaults
	v.SetDefault("impersonation.mode", "never")
	v.SetDefault("impersonation.fallbackUser", "")

	// Worktree defaults
	v.SetDefault("worktree.linkRoot", "/home")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGOR_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/agor/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("AGOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agor/")

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

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	switch cfg.Impersonation.ParsedMode() {
	case ImpersonationNever, ImpersonationMapped:
	case ImpersonationAlways:
		if cfg.Impersonation.FallbackUser == "" {
			errs = append(errs, "impersonation.fallbackUser is required when impersonation.mode is 'always'")
		}
	default:
		errs = append(errs, "impersonation.mode must be one of: never, mapped, always")
	}

	if cfg.Terminal.FlushIntervalMs <= 0 {
		errs = append(errs, "terminal.flushIntervalMs must be positive")
	}
	if cfg.Terminal.MaxBufferBytes <= 0 {
		errs = append(errs, "terminal.maxBufferBytes must be positive")
	}
	if cfg.Terminal.CommandTimeout <= 0 {
		errs = append(errs, "terminal.commandTimeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
