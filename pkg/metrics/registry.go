// Package metrics defines the observability interfaces the dispatcher and
// its supporting components report through. Each interface is optional:
// passing nil disables collection with zero overhead.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registryMu sync.Mutex
	registry   *prometheus.Registry
	enabled    bool
)

// InitRegistry creates the global Prometheus registry and enables metrics
// collection. Safe to call once at startup; a second call replaces the
// registry (used by tests that want an isolated one per case).
func InitRegistry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	return enabled
}

// GetRegistry returns the global registry, creating one if InitRegistry was
// never called.
func GetRegistry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}
