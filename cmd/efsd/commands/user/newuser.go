package user

import (
	"fmt"

	"github.com/econet-fs/efsd/internal/session"
	"github.com/spf13/cobra"
)

var newUserSystem bool

var newUserCmd = &cobra.Command{
	Use:   "newuser <username> [password]",
	Short: "Create a new user account",
	Long: `Create a new user account in the Passwords store, the
administrative equivalent of the Econet NEWUSER command.

Examples:
  efsd user newuser SYST mypassword --system
  efsd user newuser GUEST`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNewUser,
}

func init() {
	newUserCmd.Flags().BoolVar(&newUserSystem, "system", false, "Grant system privilege")
}

func runNewUser(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	username := args[0]
	if _, found, err := store.FindByUsername(username); err != nil {
		return err
	} else if found {
		return fmt.Errorf("user %q already exists", username)
	}

	password := ""
	if len(args) > 1 {
		password = args[1]
	}

	id, err := store.AllocateSlot()
	if err != nil {
		return err
	}

	priv := session.PrivUser
	if newUserSystem {
		priv |= session.PrivSystem
	}

	if err := store.Put(session.User{ID: id, Username: username, Password: password, Privilege: priv}); err != nil {
		return err
	}

	fmt.Printf("User %q created (slot %d)\n", username, id)
	return nil
}
