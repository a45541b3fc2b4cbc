package badgerstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
)

func TestStoreReadDefaultWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "journal"), "/disc")
	require.NoError(t, err)
	defer s.Close()

	got := s.Read("/disc/$/APPLE")
	require.Equal(t, attrs.Default, got)
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "journal"), "/disc")
	require.NoError(t, err)
	defer s.Close()

	want := attrs.Attrs{Owner: 7, Load: 0x1900, Exec: 0x8023, Perm: codec.PermOwnerRead | codec.PermOwnerWrite}
	require.NoError(t, s.Write("/disc/$/TEST", want))

	got := s.Read("/disc/$/TEST")
	require.Equal(t, want, got)
}

func TestStoreRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "journal"), "/disc")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write("/disc/$/TEST", attrs.Attrs{Owner: 1}))
	require.NoError(t, s.Remove("/disc/$/TEST"))
	require.Equal(t, attrs.Default, s.Read("/disc/$/TEST"))

	// Removing an absent key is not an error.
	require.NoError(t, s.Remove("/disc/$/NEVER-EXISTED"))
}
