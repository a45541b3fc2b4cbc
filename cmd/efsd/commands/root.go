package commands

import (
	"os"

	"github.com/econet-fs/efsd/cmd/efsd/commands/config"
	"github.com/econet-fs/efsd/cmd/efsd/commands/user"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "efsd",
	Short: "efsd - Acorn Econet-compatible network fileserver",
	Long: `efsd serves the Acorn Econet fileserver protocol (fsop requests,
OSCLI commands, and SAVE/LOAD/GETBYTES/PUTBYTES bulk transfers) over a
configurable datagram transport.

Use 'efsd init' to create a starting configuration, then 'efsd start' to
run the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root cobra command, for completion generation and
// tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/efsd/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(user.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag value, shared by every
// subcommand that loads configuration.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr writes a formatted error to the root command's error stream.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints a formatted error and terminates the process.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
