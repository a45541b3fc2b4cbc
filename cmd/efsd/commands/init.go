package commands

import (
	"fmt"

	"github.com/econet-fs/efsd/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample efsd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/efsd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  efsd init

  # Initialize with custom path
  efsd init --config /etc/efsd/config.yaml

  # Force overwrite existing config
  efsd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to set your server root and disc table")
	fmt.Println("  2. Start the server with: efsd start")
	fmt.Printf("  3. Or specify custom config: efsd start --config %s\n", configPath)

	return nil
}
