package user

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setHomeCmd = &cobra.Command{
	Use:   "sethome <username> <path>",
	Short: "Set a user's home directory",
	Long: `Set a user's home directory, the administrative equivalent of
the Econet SETHOME command.

Examples:
  efsd user sethome GUEST $.Guests.GUEST`,
	Args: cobra.ExactArgs(2),
	RunE: runSetHome,
}

func runSetHome(cmd *cobra.Command, args []string) error {
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

	u.Home = path
	if err := store.Put(u); err != nil {
		return err
	}

	fmt.Printf("Home directory for %q set to %q\n", username, path)
	return nil
}
