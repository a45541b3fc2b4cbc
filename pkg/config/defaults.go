package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/econet-fs/efsd/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	for i := range cfg.Servers {
		applyServerInstanceDefaults(&cfg.Servers[i], i)
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 8081
	}
}

// applyServerInstanceDefaults sets defaults for one Econet server instance.
// index is used only to synthesize a name when one was not given.
func applyServerInstanceDefaults(cfg *ServerInstanceConfig, index int) {
	if cfg.Name == "" {
		cfg.Name = defaultServerName(index)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":32768" // the well-known Econet fileserver UDP port
	}
	if cfg.Attrs == "" {
		cfg.Attrs = "xattr"
	}
	if cfg.MaxBulkPayload == 0 {
		cfg.MaxBulkPayload = 16 * bytesize.MiB
	}
	if cfg.BulkGCInterval == 0 {
		cfg.BulkGCInterval = 5 * time.Second
	}
	if cfg.BulkGCIdle == 0 {
		cfg.BulkGCIdle = 30 * time.Second
	}

	applyAdminDefaults(&cfg.Admin)
}

func defaultServerName(index int) string {
	if index == 0 {
		return "default"
	}
	return "server" + strconv.Itoa(index)
}

// applyAdminDefaults sets admin API defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Enabled == nil {
		enabled := true
		cfg.Enabled = &enabled
	}
	if cfg.Port == 0 {
		cfg.Port = 8081
	}
}

// GetDefaultConfig returns a Config struct with all default values applied,
// describing a single server instance rooted at /var/lib/efsd.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Metrics: MetricsConfig{},
		Servers: []ServerInstanceConfig{
			{
				Name:       "default",
				ListenAddr: ":32768",
				ServerRoot: "/var/lib/efsd",
				Attrs:      "xattr",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
