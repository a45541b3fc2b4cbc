package user

import (
	"fmt"

	"github.com/econet-fs/efsd/internal/session"
	"github.com/spf13/cobra"
)

var (
	privSystem   bool
	privUnsystem bool
	privLock     bool
	privUnlock   bool
)

var privCmd = &cobra.Command{
	Use:   "priv <username>",
	Short: "Grant or revoke system privilege, or lock/unlock an account",
	Long: `Change a user's privilege bits, the administrative equivalent of
the Econet PRIV command.

Examples:
  efsd user priv GUEST --system
  efsd user priv GUEST --unsystem
  efsd user priv GUEST --lock`,
	Args: cobra.ExactArgs(1),
	RunE: runPriv,
}

func init() {
	privCmd.Flags().BoolVar(&privSystem, "system", false, "Grant system privilege")
	privCmd.Flags().BoolVar(&privUnsystem, "unsystem", false, "Revoke system privilege")
	privCmd.Flags().BoolVar(&privLock, "lock", false, "Lock the account")
	privCmd.Flags().BoolVar(&privUnlock, "unlock", false, "Unlock the account")
}

func runPriv(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	username := args[0]
	u, found, err := store.FindByUsername(username)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}

	if privSystem {
		u.Privilege |= session.PrivSystem
	}
	if privUnsystem {
		u.Privilege &^= session.PrivSystem
	}
	if privLock {
		u.Privilege |= session.PrivLocked
	}
	if privUnlock {
		u.Privilege &^= session.PrivLocked
	}

	if err := store.Put(u); err != nil {
		return err
	}

	fmt.Printf("Privilege updated for %q\n", username)
	return nil
}
