package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/econet-fs/efsd/internal/bytesize"
)

// Config represents efsd's configuration.
//
// This structure captures every static configuration aspect of an efsd
// deployment:
//   - Logging configuration
//   - Metrics (Prometheus) configuration
//   - One or more Econet server instances
//   - Shutdown timeout
//
// Configuration sources (in order of precedence):
//  1. Environment variables (EFSD_*) (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics configuration shared by every
	// configured server instance.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Servers lists the Econet server instances this process runs. Most
	// deployments configure exactly one, but nothing prevents running
	// several (e.g. one per physical network segment) from one process.
	Servers []ServerInstanceConfig `mapstructure:"servers" validate:"required,min=1,dive" yaml:"servers"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port defaults to 8081 when Enabled is set. Nothing reads it; the
	// admin API serves no /metrics endpoint.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ServerInstanceConfig configures one Econet fileserver instance: its server
// root (scanned for disc trees), its listen address, and its per-instance
// admin/bootstrap settings.
type ServerInstanceConfig struct {
	// Name identifies this instance in logs and the admin API. Required
	// when more than one server is configured.
	Name string `mapstructure:"name" yaml:"name"`

	// ListenAddr is the UDP address to listen on, e.g. ":32768" (the
	// well-known Econet fileserver port) or "0.0.0.0:32768".
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// ServerRoot is the directory containing the "<n><discname>" disc
	// trees and the Passwords user-store file.
	ServerRoot string `mapstructure:"server_root" validate:"required" yaml:"server_root"`

	// DefaultDisc names the disc used when a path resolves with no anchor
	// handle and no explicit disc specifier. Empty selects disc 0.
	DefaultDisc string `mapstructure:"default_disc" yaml:"default_disc"`

	// Attrs selects the sidecar-attribute backend: "xattr" or "badger".
	// Default: xattr.
	Attrs string `mapstructure:"attrs" validate:"omitempty,oneof=xattr badger" yaml:"attrs"`

	// BadgerDir is the base directory for per-disc Badger journals when
	// Attrs is "badger".
	BadgerDir string `mapstructure:"badger_dir" yaml:"badger_dir"`

	// SevenBitDates selects the extended "seven-bit bodge" date encoding
	// for this instance instead of the standard packing.
	SevenBitDates bool `mapstructure:"seven_bit_dates" yaml:"seven_bit_dates"`

	// MaxBulkPayload is a size limit for a single SAVE/PUTBYTES transfer.
	// Supports human-readable formats: "1MB", "512KB". Default: 16MiB. It
	// is not passed to the server, so transfer sizes are not capped.
	MaxBulkPayload bytesize.ByteSize `mapstructure:"max_bulk_payload" yaml:"max_bulk_payload,omitempty"`

	// BulkGCInterval is how often the bulk-transfer garbage-collection
	// sweep runs. Default: 5s.
	BulkGCInterval time.Duration `mapstructure:"bulk_gc_interval" yaml:"bulk_gc_interval"`

	// BulkGCIdle is how long a bulk context may sit without activity
	// before the sweep reclaims it. Default: 30s.
	BulkGCIdle time.Duration `mapstructure:"bulk_gc_idle" yaml:"bulk_gc_idle"`

	// Admin configures this instance's read-only HTTP introspection
	// server.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Bootstrap lists users to create on first start if the Passwords
	// store is empty, letting a fresh deployment come up with a working
	// SYST account without a manual NEWUSER/PRIV session.
	Bootstrap []BootstrapUserConfig `mapstructure:"bootstrap" yaml:"bootstrap,omitempty"`
}

// AdminConfig configures the admin HTTP introspection server.
type AdminConfig struct {
	// Enabled controls whether the admin server is started. Default: true.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the introspection endpoints. Default: 8081.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// BootstrapUserConfig describes a user account to create at first start.
type BootstrapUserConfig struct {
	Username  string `mapstructure:"username" validate:"required" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password,omitempty"`
	System    bool   `mapstructure:"system" yaml:"system,omitempty"`
	Home      string `mapstructure:"home" yaml:"home,omitempty"`
	Library   string `mapstructure:"library" yaml:"library,omitempty"`
	HomeDisc  byte   `mapstructure:"home_disc" yaml:"home_disc,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (EFSD_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  efsd init\n\n"+
				"Or specify a custom config file:\n"+
				"  efsd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  efsd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML
// format, respecting yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: a bootstrap password may be embedded.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("EFSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts
// strings and integers to bytesize.ByteSize, enabling config files to use
// human-readable sizes like "16MB" or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts
// strings to time.Duration, enabling config files to use human-readable
// durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "efsd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "efsd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
