package user

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/econet-fs/efsd/internal/cli/output"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	Long: `List user accounts in the Passwords store, the administrative
equivalent of the Econet READ-USERS command.

Examples:
  efsd user list
  efsd user list --output json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

type userRow struct {
	Username string `json:"username" yaml:"username"`
	System   bool   `json:"system" yaml:"system"`
	Locked   bool   `json:"locked" yaml:"locked"`
	Home     string `json:"home" yaml:"home"`
	Library  string `json:"library" yaml:"library"`
}

type userTable []userRow

func (t userTable) Headers() []string {
	return []string{"USERNAME", "SYSTEM", "LOCKED", "HOME", "LIBRARY"}
}

func (t userTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, u := range t {
		rows[i] = []string{u.Username, boolMark(u.System), boolMark(u.Locked), u.Home, u.Library}
	}
	return rows
}

func boolMark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	users, err := store.All()
	if err != nil {
		return err
	}

	rows := make(userTable, len(users))
	for i, u := range users {
		rows[i] = userRow{
			Username: u.Username,
			System:   u.Privilege.IsSystem(),
			Locked:   u.Privilege.IsLocked(),
			Home:     u.Home,
			Library:  u.Library,
		}
	}

	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, rows)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, rows)
	default:
		if len(rows) == 0 {
			fmt.Println("No users found.")
			return nil
		}
		return output.PrintTable(os.Stdout, rows)
	}
}
