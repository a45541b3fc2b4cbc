package user

import (
	"fmt"

	"github.com/spf13/cobra"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd <username> <password>",
	Short: "Set a user's password",
	Long: `Set a user's password, the administrative equivalent of the
Econet PASS command.

Examples:
  efsd user passwd SYST newpassword`,
	Args: cobra.ExactArgs(2),
	RunE: runPasswd,
}

func runPasswd(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	username, password := args[0], args[1]
	u, found, err := store.FindByUsername(username)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}

	u.Password = password
	if err := store.Put(u); err != nil {
		return err
	}

	fmt.Printf("Password updated for %q\n", username)
	return nil
}
