package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/econet-fs/efsd/internal/protocol/econet"
)

func TestUserEncodeDecodeRoundTrip(t *testing.T) {
	u := User{
		ID:        3,
		Username:  "SYST",
		Password:  "PASS",
		Fullname:  "System Manager",
		Privilege: PrivSystem | PrivUser,
		BootOpt:   econet.BootRun,
		Home:      "$.SYST",
		Library:   "$.LIBRARY",
		HomeDisc:  0,
		LastLogin: time.Date(2026, 7, 30, 14, 5, 9, 0, time.UTC),
	}
	buf := u.encode()
	got := decodeUser(3, buf[:])

	require.Equal(t, u.Username, got.Username)
	require.Equal(t, u.Password, got.Password)
	require.Equal(t, u.Fullname, got.Fullname)
	require.Equal(t, u.Privilege, got.Privilege)
	require.Equal(t, u.BootOpt, got.BootOpt)
	require.Equal(t, u.Home, got.Home)
	require.Equal(t, u.Library, got.Library)
	require.Equal(t, u.HomeDisc, got.HomeDisc)
	require.True(t, u.LastLogin.Equal(got.LastLogin))
}

func TestUsernameEqualsIgnoresCaseAndPadding(t *testing.T) {
	require.True(t, UsernameEquals("syst", "SYST"))
	require.True(t, UsernameEquals("Fred", "fred      "))
	require.False(t, UsernameEquals("Fred", "Freddy"))
}

func TestUserStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenUserStore(filepath.Join(dir, "Passwords"))
	require.NoError(t, err)
	defer s.Close()

	id, err := s.AllocateSlot()
	require.NoError(t, err)
	require.Equal(t, 0, id)

	u := User{ID: id, Username: "FRED", Password: "SECRET", Privilege: PrivUser, HomeDisc: 0}
	require.NoError(t, s.Put(u))

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, "FRED", got.Username)
	require.True(t, got.Privilege.IsValid())
}

func TestUserStoreFindByUsername(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenUserStore(filepath.Join(dir, "Passwords"))
	require.NoError(t, err)
	defer s.Close()

	for i, name := range []string{"FRED", "JANE", "SYST"} {
		id, err := s.AllocateSlot()
		require.NoError(t, err)
		require.Equal(t, i, id)
		require.NoError(t, s.Put(User{ID: id, Username: name, Privilege: PrivUser}))
	}

	got, ok, err := s.FindByUsername("jane")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "JANE", got.Username)

	_, ok, err = s.FindByUsername("nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUserStoreAllocateSlotReusesDeleted(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenUserStore(filepath.Join(dir, "Passwords"))
	require.NoError(t, err)
	defer s.Close()

	id0, _ := s.AllocateSlot()
	require.NoError(t, s.Put(User{ID: id0, Username: "FRED", Privilege: PrivUser}))
	id1, _ := s.AllocateSlot()
	require.NoError(t, s.Put(User{ID: id1, Username: "JANE", Privilege: PrivUser}))

	require.NoError(t, s.Delete(id0))

	reused, err := s.AllocateSlot()
	require.NoError(t, err)
	require.Equal(t, id0, reused)
}

func TestUserStoreAllReportsOnlyValidUsers(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenUserStore(filepath.Join(dir, "Passwords"))
	require.NoError(t, err)
	defer s.Close()

	id0, _ := s.AllocateSlot()
	require.NoError(t, s.Put(User{ID: id0, Username: "FRED", Privilege: PrivUser}))
	id1, _ := s.AllocateSlot()
	require.NoError(t, s.Put(User{ID: id1, Username: "JANE", Privilege: PrivUser}))
	require.NoError(t, s.Delete(id1))

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "FRED", all[0].Username)
}
