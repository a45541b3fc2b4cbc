// Package user implements administrative subcommands for the Passwords
// user store: NEWUSER, PASS, PRIV, SETHOME and SETLIB
// equivalents, for deployments that would otherwise need a live Econet
// client session to provision accounts.
package user

import (
	"fmt"
	"path/filepath"

	"github.com/econet-fs/efsd/internal/session"
	"github.com/econet-fs/efsd/pkg/config"
	"github.com/spf13/cobra"
)

var serverName string

// openStore loads configuration from cmd's --config flag, picks the named
// (or sole) server instance, and opens its Passwords file.
func openStore(cmd *cobra.Command) (*session.UserStore, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}

	inst, err := resolveInstance(cfg)
	if err != nil {
		return nil, err
	}

	return session.OpenUserStore(filepath.Join(inst.ServerRoot, "Passwords"))
}

func resolveInstance(cfg *config.Config) (*config.ServerInstanceConfig, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("no server instances configured")
	}
	if serverName == "" {
		return &cfg.Servers[0], nil
	}
	for i := range cfg.Servers {
		if cfg.Servers[i].Name == serverName {
			return &cfg.Servers[i], nil
		}
	}
	return nil, fmt.Errorf("no server instance named %q", serverName)
}

// Cmd is the user management subcommand group.
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "Manage fileserver user accounts",
	Long: `Manage the Passwords user store directly, without a live Econet
client session.

Subcommands:
  list      List user accounts
  newuser   Create a new user account
  passwd    Set a user's password
  priv      Grant or revoke system privilege, or lock/unlock an account
  sethome   Set a user's home directory
  setlib    Set a user's library directory`,
}

func init() {
	Cmd.PersistentFlags().StringVar(&serverName, "server", "", "Named server instance (default: first configured)")
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(newUserCmd)
	Cmd.AddCommand(passwdCmd)
	Cmd.AddCommand(privCmd)
	Cmd.AddCommand(setHomeCmd)
	Cmd.AddCommand(setLibCmd)
}
