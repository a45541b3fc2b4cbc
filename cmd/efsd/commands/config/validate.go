package config

import (
	"fmt"

	"github.com/econet-fs/efsd/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the efsd configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  efsd config validate

  # Validate specific config file
  efsd config validate --config /etc/efsd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	for _, s := range cfg.Servers {
		if s.ServerRoot == "" {
			warnings = append(warnings, fmt.Sprintf("server %q: no server_root configured", s.Name))
		}
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)
	fmt.Printf("  Metrics:         %t\n", cfg.Metrics.Enabled)
	fmt.Printf("  Servers:\n")
	for _, s := range cfg.Servers {
		fmt.Printf("    - %s: %s (root %s)\n", s.Name, s.ListenAddr, s.ServerRoot)
	}

	return nil
}
