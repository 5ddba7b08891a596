// File: internal/config/config.go
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Browser modes.
const (
	// BrowserModeRemote attaches to a Chrome that is already running, usually
	// the one where the user logged into the exam.
	BrowserModeRemote = "remote"
	// BrowserModeLaunch starts a dedicated Chrome.
	BrowserModeLaunch = "launch"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Exam    ExamConfig    `mapstructure:"exam" yaml:"exam"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how the exam page is reached.
type BrowserConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode"`
	// RemoteURL is the DevTools endpoint of a running Chrome, e.g.
	// http://127.0.0.1:9222. Used in remote mode.
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	// Headless, Args, UserDataDir and StartURL apply to launch mode.
	Headless    bool     `mapstructure:"headless" yaml:"headless"`
	Args        []string `mapstructure:"args" yaml:"args"`
	UserDataDir string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	StartURL    string   `mapstructure:"start_url" yaml:"start_url"`
	// PageURLPattern picks the exam tab among the open page targets.
	PageURLPattern string `mapstructure:"page_url_pattern" yaml:"page_url_pattern"`
	// EvaluateTimeout bounds a single page script.
	EvaluateTimeout time.Duration `mapstructure:"evaluate_timeout" yaml:"evaluate_timeout"`
	// MinActionInterval is the minimum spacing between page scripts.
	MinActionInterval time.Duration `mapstructure:"min_action_interval" yaml:"min_action_interval"`
}

// ExamConfig tunes question handling.
type ExamConfig struct {
	// IDThreshold separates display positions from internal question ids.
	IDThreshold int64 `mapstructure:"id_threshold" yaml:"id_threshold"`
}

// ServerConfig configures the action server.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "exam-autofill")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.mode", BrowserModeRemote)
	v.SetDefault("browser.remote_url", "http://127.0.0.1:9222")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.start_url", "about:blank")
	v.SetDefault("browser.page_url_pattern", "")
	v.SetDefault("browser.evaluate_timeout", "15s")
	v.SetDefault("browser.min_action_interval", "150ms")

	// -- Exam --
	v.SetDefault("exam.id_threshold", 1000)

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8765")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// -- Metrics --
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	var err error
	if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
		return fmt.Errorf("failed to expand logger.log_file: %w", err)
	}
	if c.Browser.UserDataDir, err = homedir.Expand(c.Browser.UserDataDir); err != nil {
		return fmt.Errorf("failed to expand browser.user_data_dir: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if c.Exam.IDThreshold <= 0 {
		return fmt.Errorf("exam.id_threshold must be a positive integer")
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be a positive duration")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}
	return nil
}

// Validate checks the browser configuration.
func (b *BrowserConfig) Validate() error {
	switch b.Mode {
	case BrowserModeRemote:
		if b.RemoteURL == "" {
			return fmt.Errorf("remote_url is required in remote mode")
		}
	case BrowserModeLaunch:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", BrowserModeRemote, BrowserModeLaunch, b.Mode)
	}
	if b.PageURLPattern != "" {
		if _, err := regexp.Compile(b.PageURLPattern); err != nil {
			return fmt.Errorf("page_url_pattern is not a valid regular expression: %w", err)
		}
	}
	if b.EvaluateTimeout <= 0 {
		return fmt.Errorf("evaluate_timeout must be a positive duration")
	}
	if b.MinActionInterval < 0 {
		return fmt.Errorf("min_action_interval cannot be negative")
	}
	return nil
}
