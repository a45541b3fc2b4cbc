package server

import (
	"time"

	"github.com/econet-fs/efsd/pkg/adminapi"
)

// AttrsBackend selects the sidecar-attribute storage backend.
type AttrsBackend string

const (
	// AttrsXattr is a byte-compatible port of the original per-file xattr
	// sidecar scheme.
	AttrsXattr AttrsBackend = "xattr"
	// AttrsBadger journals attributes per-disc, keyed by disc-relative
	// path, surviving external copies that silently drop xattrs.
	AttrsBadger AttrsBackend = "badger"
)

// Config configures one efsd server instance.
type Config struct {
	// ServerRoot is the directory containing the "<n><discname>" disc
	// trees and the Passwords user-store file.
	ServerRoot string `mapstructure:"server_root" validate:"required" yaml:"server_root"`

	// DefaultDisc names the disc used when a path resolves with no anchor
	// handle and no explicit disc specifier. Empty selects disc 0.
	DefaultDisc string `mapstructure:"default_disc" yaml:"default_disc"`

	// Attrs selects the sidecar-attribute backend. Default: xattr.
	Attrs AttrsBackend `mapstructure:"attrs" yaml:"attrs"`

	// BadgerDir is the base directory for per-disc Badger journals when
	// Attrs is AttrsBadger; each disc gets a "<BadgerDir>/<discname>"
	// subdirectory.
	BadgerDir string `mapstructure:"badger_dir" yaml:"badger_dir"`

	// SevenBitDates selects the extended "seven-bit bodge" date encoding
	// server-wide instead of the standard packing.
	SevenBitDates bool `mapstructure:"seven_bit_dates" yaml:"seven_bit_dates"`

	// BulkGCInterval is how often the bulk-transfer garbage-collection
	// sweep runs. Default: 5s.
	BulkGCInterval time.Duration `mapstructure:"bulk_gc_interval" yaml:"bulk_gc_interval"`

	// BulkGCIdle is how long a bulk context may sit without activity
	// before the sweep reclaims it. Default: 30s.
	BulkGCIdle time.Duration `mapstructure:"bulk_gc_idle" yaml:"bulk_gc_idle"`

	// Metrics enables Prometheus metrics collection for the dispatcher.
	Metrics bool `mapstructure:"metrics" yaml:"metrics"`

	// Admin configures the read-only HTTP introspection server.
	Admin adminapi.Config `mapstructure:"admin" yaml:"admin"`

	// Bootstrap lists users to create on first start if the Passwords
	// store is empty, so a fresh deployment comes up with a working
	// account without a manual NEWUSER session.
	Bootstrap []BootstrapUser `mapstructure:"bootstrap" yaml:"bootstrap,omitempty"`
}

// BootstrapUser describes one user account to create at first start.
type BootstrapUser struct {
	Username string
	Password string
	System   bool
	Home     string
	Library  string
	HomeDisc byte
}

func (c *Config) applyDefaults() {
	if c.Attrs == "" {
		c.Attrs = AttrsXattr
	}
	if c.BulkGCInterval <= 0 {
		c.BulkGCInterval = 5 * time.Second
	}
	if c.BulkGCIdle <= 0 {
		c.BulkGCIdle = 30 * time.Second
	}
}
