package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet/handlers"
)

// Config configures the admin HTTP server.
type Config struct {
	// Enabled controls whether the admin server is started. Default: true.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the introspection endpoints. Default: 8081.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// IsEnabled returns whether the admin server is enabled, defaulting to true.
func (c *Config) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8081
	}
}

// Server is the admin introspection HTTP server: created stopped, started
// explicitly, shut down exactly once.
type Server struct {
	http         *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer constructs a Server serving econet's read-only introspection
// endpoints for dispatchServer.
func NewServer(cfg Config, dispatchServer *handlers.Server) *Server {
	cfg.applyDefaults()
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(dispatchServer),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		port: cfg.Port,
	}
}

// Start listens and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "port", s.port)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin API failed: %w", err)
	}
}

// Stop gracefully shuts down the server. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.http.Shutdown(ctx)
	})
	return err
}
