package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/econet-fs/efsd/internal/cli/output"
	"github.com/econet-fs/efsd/internal/cli/timeutil"
	"github.com/econet-fs/efsd/pkg/adminapi"
	"github.com/econet-fs/efsd/pkg/config"
	"github.com/spf13/cobra"
)

var (
	statusOutput  string
	statusPidFile string
	statusServer  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the efsd server.

Checks the PID file and, if an admin API is configured, its /healthz
endpoint.

Examples:
  # Check status (uses default settings)
  efsd status

  # Check a named server instance's admin API
  efsd status --server default

  # Output as JSON
  efsd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/efsd/efsd.pid)")
	statusCmd.Flags().StringVar(&statusServer, "server", "", "Named server instance to check (default: first configured)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running bool   `json:"running" yaml:"running"`
	PID     int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message string `json:"message" yaml:"message"`
	Healthy bool   `json:"healthy" yaml:"healthy"`
	Checked string `json:"checked,omitempty" yaml:"checked,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{
		Running: false,
		Healthy: false,
		Message: "Server is not running",
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if pidData, err := os.ReadFile(pidPath); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(pidData))); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	if port := adminPortForStatus(); port > 0 {
		healthURL := fmt.Sprintf("http://localhost:%d/healthz", port)
		client := &http.Client{Timeout: 2 * time.Second}

		if resp, err := client.Get(healthURL); err == nil {
			defer func() { _ = resp.Body.Close() }()

			var envelope adminapi.Response
			if json.NewDecoder(resp.Body).Decode(&envelope) == nil {
				status.Running = true
				status.Healthy = envelope.Status == "ok"
				status.Checked = timeutil.FormatTime(envelope.Timestamp.Format(time.RFC3339))
				if status.Healthy {
					status.Message = "Server is running and healthy"
				} else {
					status.Message = fmt.Sprintf("Server is running but unhealthy: %s", envelope.Error)
				}
			}
		} else if status.Running {
			status.Message = "Server process exists but health check failed"
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

// adminPortForStatus resolves the admin API port to probe from config,
// returning 0 if no server instance (or a named one) could be found.
func adminPortForStatus() int {
	cfg, err := config.Load(GetConfigFile())
	if err != nil || len(cfg.Servers) == 0 {
		return 0
	}
	for _, s := range cfg.Servers {
		if statusServer == "" || s.Name == statusServer {
			if s.Admin.Enabled != nil && !*s.Admin.Enabled {
				return 0
			}
			return s.Admin.Port
		}
	}
	return 0
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("efsd Server Status")
	fmt.Println("===================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	if status.Checked != "" {
		fmt.Printf("  Checked:    %s\n", status.Checked)
	}
	fmt.Println()
}
