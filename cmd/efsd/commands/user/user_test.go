package user

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/econet-fs/efsd/internal/session"
	"github.com/econet-fs/efsd/pkg/config"
)

func testRoot(t *testing.T, configPath string) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "efsd"}
	root.PersistentFlags().String("config", configPath, "")
	root.AddCommand(Cmd)
	return root
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Servers[0].Name = "default"
	cfg.Servers[0].ServerRoot = dir
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func TestNewUserCreatesAccount(t *testing.T) {
	configPath := writeTestConfig(t)
	root := testRoot(t, configPath)
	root.SetArgs([]string{"user", "newuser", "FRED", "secret"})
	require.NoError(t, root.Execute())

	store, err := session.OpenUserStore(filepath.Join(filepath.Dir(configPath), "Passwords"))
	require.NoError(t, err)
	defer store.Close()

	u, ok, err := store.FindByUsername("FRED")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "secret", u.Password)
	require.False(t, u.Privilege&session.PrivSystem != 0)
}

func TestNewUserRejectsDuplicate(t *testing.T) {
	configPath := writeTestConfig(t)
	root := testRoot(t, configPath)
	root.SetArgs([]string{"user", "newuser", "FRED"})
	require.NoError(t, root.Execute())

	root2 := testRoot(t, configPath)
	root2.SetArgs([]string{"user", "newuser", "FRED"})
	require.Error(t, root2.Execute())
}

func TestPasswdUpdatesPassword(t *testing.T) {
	configPath := writeTestConfig(t)
	root := testRoot(t, configPath)
	root.SetArgs([]string{"user", "newuser", "FRED", "old"})
	require.NoError(t, root.Execute())

	root2 := testRoot(t, configPath)
	root2.SetArgs([]string{"user", "passwd", "FRED", "new"})
	require.NoError(t, root2.Execute())

	store, err := session.OpenUserStore(filepath.Join(filepath.Dir(configPath), "Passwords"))
	require.NoError(t, err)
	defer store.Close()

	u, ok, err := store.FindByUsername("FRED")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", u.Password)
}

func TestPrivGrantsAndRevokesSystem(t *testing.T) {
	configPath := writeTestConfig(t)
	root := testRoot(t, configPath)
	root.SetArgs([]string{"user", "newuser", "FRED"})
	require.NoError(t, root.Execute())

	root2 := testRoot(t, configPath)
	root2.SetArgs([]string{"user", "priv", "FRED", "--system"})
	require.NoError(t, root2.Execute())

	store, err := session.OpenUserStore(filepath.Join(filepath.Dir(configPath), "Passwords"))
	require.NoError(t, err)
	u, ok, err := store.FindByUsername("FRED")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, u.Privilege&session.PrivSystem != 0)
	store.Close()

	root3 := testRoot(t, configPath)
	root3.SetArgs([]string{"user", "priv", "FRED", "--unsystem"})
	require.NoError(t, root3.Execute())

	store2, err := session.OpenUserStore(filepath.Join(filepath.Dir(configPath), "Passwords"))
	require.NoError(t, err)
	defer store2.Close()
	u2, ok, err := store2.FindByUsername("FRED")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, u2.Privilege&session.PrivSystem != 0)
}

func TestSetHomeAndSetLib(t *testing.T) {
	configPath := writeTestConfig(t)
	root := testRoot(t, configPath)
	root.SetArgs([]string{"user", "newuser", "FRED"})
	require.NoError(t, root.Execute())

	root2 := testRoot(t, configPath)
	root2.SetArgs([]string{"user", "sethome", "FRED", "$.FRED"})
	require.NoError(t, root2.Execute())

	root3 := testRoot(t, configPath)
	root3.SetArgs([]string{"user", "setlib", "FRED", "$.Library"})
	require.NoError(t, root3.Execute())

	store, err := session.OpenUserStore(filepath.Join(filepath.Dir(configPath), "Passwords"))
	require.NoError(t, err)
	defer store.Close()
	u, ok, err := store.FindByUsername("FRED")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "$.FRED", u.Home)
	require.Equal(t, "$.Library", u.Library)
}

func TestListReportsCreatedUsers(t *testing.T) {
	configPath := writeTestConfig(t)
	root := testRoot(t, configPath)
	root.SetArgs([]string{"user", "newuser", "FRED"})
	require.NoError(t, root.Execute())

	root2 := testRoot(t, configPath)
	root2.SetArgs([]string{"user", "priv", "FRED", "--system"})
	require.NoError(t, root2.Execute())

	store, err := session.OpenUserStore(filepath.Join(filepath.Dir(configPath), "Passwords"))
	require.NoError(t, err)
	users, err := store.All()
	require.NoError(t, err)
	store.Close()

	require.Len(t, users, 1)
	require.Equal(t, "FRED", users[0].Username)
	require.True(t, users[0].Privilege.IsSystem())

	root3 := testRoot(t, configPath)
	root3.SetArgs([]string{"user", "list", "--output", "json"})
	require.NoError(t, root3.Execute())
}

func TestUnknownUserCommandsFail(t *testing.T) {
	configPath := writeTestConfig(t)

	for _, args := range [][]string{
		{"user", "passwd", "NOBODY", "x"},
		{"user", "priv", "NOBODY", "--system"},
		{"user", "sethome", "NOBODY", "$.X"},
		{"user", "setlib", "NOBODY", "$.X"},
	} {
		root := testRoot(t, configPath)
		root.SetArgs(args)
		require.Error(t, root.Execute())
	}
}
