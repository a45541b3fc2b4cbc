package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/pkg/adminapi"
	"github.com/econet-fs/efsd/pkg/config"
	"github.com/econet-fs/efsd/pkg/server"
	"github.com/econet-fs/efsd/pkg/transport/udp"
	"github.com/spf13/cobra"

	// Prometheus metrics implementation (it has no init() functions;
	// pkg/server imports it directly)
	_ "github.com/econet-fs/efsd/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the efsd server",
	Long: `Start the efsd server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/efsd/config.yaml.

Examples:
  # Start in background (default)
  efsd start

  # Start in foreground
  efsd start --foreground

  # Start with custom config file
  efsd start --config /etc/efsd/config.yaml

  # Start with environment variable overrides
  EFSD_LOGGING_LEVEL=DEBUG efsd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/efsd/efsd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/efsd/efsd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("efsd - Acorn Econet fileserver")
	logger.Info("log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	instances, err := buildInstances(cfg)
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- runInstances(ctx, instances)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// instance pairs a running dispatcher with the transport serving it, one
// per configured Econet server instance.
type instance struct {
	name      string
	srv       *server.Server
	transport *udp.Listener
}

// buildInstances constructs one pkg/server.Server and
// pkg/transport/udp.Listener pair per cfg.Servers entry.
func buildInstances(cfg *config.Config) ([]*instance, error) {
	instances := make([]*instance, 0, len(cfg.Servers))

	for _, s := range cfg.Servers {
		bootstrap := make([]server.BootstrapUser, 0, len(s.Bootstrap))
		for _, b := range s.Bootstrap {
			bootstrap = append(bootstrap, server.BootstrapUser{
				Username: b.Username,
				Password: b.Password,
				System:   b.System,
				Home:     b.Home,
				Library:  b.Library,
				HomeDisc: b.HomeDisc,
			})
		}

		srv, err := server.New(server.Config{
			ServerRoot:     s.ServerRoot,
			DefaultDisc:    s.DefaultDisc,
			Attrs:          server.AttrsBackend(s.Attrs),
			BadgerDir:      s.BadgerDir,
			SevenBitDates:  s.SevenBitDates,
			BulkGCInterval: s.BulkGCInterval,
			BulkGCIdle:     s.BulkGCIdle,
			Metrics:        cfg.Metrics.Enabled,
			Admin:          adminapi.Config{Enabled: s.Admin.Enabled, Port: s.Admin.Port},
			Bootstrap:      bootstrap,
		})
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", s.Name, err)
		}

		transport := udp.New(udp.Config{ListenAddr: s.ListenAddr}, srv)

		instances = append(instances, &instance{name: s.Name, srv: srv, transport: transport})
		logger.Info("server instance configured", "name", s.Name, "listen", s.ListenAddr, "root", s.ServerRoot)
	}

	return instances, nil
}

// runInstances starts every instance's server lifecycle and transport
// concurrently, returning once ctx is cancelled and every goroutine has
// exited, or as soon as one of them errors.
func runInstances(ctx context.Context, instances []*instance) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(instances)*2)

	for _, inst := range instances {
		inst := inst
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := inst.srv.Start(ctx); err != nil {
				errCh <- fmt.Errorf("server %q: %w", inst.name, err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := inst.transport.Start(ctx); err != nil {
				errCh <- fmt.Errorf("transport %q: %w", inst.name, err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case err := <-errCh:
		return err
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
