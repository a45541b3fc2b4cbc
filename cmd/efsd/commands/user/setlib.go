package user

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setLibCmd = &cobra.Command{
	Use:   "setlib <username> <path>",
	Short: "Set a user's library directory",
	Long: `Set a user's library directory, the administrative equivalent of
the Econet SETLIB command.

Examples:
  efsd user setlib GUEST $.Library`,
	Args: cobra.ExactArgs(2),
	RunE: runSetLib,
}

func runSetLib(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	username, path := args[0], args[1]
	u, found, err := store.FindByUsername(username)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}

	u.Library = path
	if err := store.Put(u); err != nil {
		return err
	}

	fmt.Printf("Library directory for %q set to %q\n", username, path)
	return nil
}
