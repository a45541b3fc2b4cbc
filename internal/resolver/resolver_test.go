package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
)

// memAttrs is a minimal in-memory attrs.Store for resolver tests, avoiding
// a dependency on real xattr support in the test sandbox.
type memAttrs struct{ m map[string]attrs.Attrs }

func newMemAttrs() *memAttrs { return &memAttrs{m: make(map[string]attrs.Attrs)} }

func (s *memAttrs) Read(path string) attrs.Attrs {
	if a, ok := s.m[path]; ok {
		return a
	}
	return attrs.Default
}
func (s *memAttrs) Write(path string, a attrs.Attrs) error { s.m[path] = a; return nil }
func (s *memAttrs) Remove(path string) error               { delete(s.m, path); return nil }
func (s *memAttrs) Close() error                            { return nil }

func setupDisc(t *testing.T) (*Resolver, Disc) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "D"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "APPLE"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "D", "F"), []byte("y"), 0o644))

	disc := Disc{Index: 0, Name: "DISC0", Root: root}
	discs := NewDiscs()
	require.NoError(t, discs.Add(disc))
	return New(discs, newMemAttrs()), disc
}

func TestResolveAbsoluteExistingFile(t *testing.T) {
	r, disc := setupDisc(t)
	res, err := r.Resolve(true, 0, "$.APPLE", nil, &disc, false)
	require.NoError(t, err)
	require.Equal(t, File, res.Type)
	require.Equal(t, ":DISC0.$.APPLE", res.DottedPath)
}

func TestResolveTerminalNotFoundStillSucceeds(t *testing.T) {
	r, disc := setupDisc(t)
	res, err := r.Resolve(true, 0, "$.NEWFILE", nil, &disc, false)
	require.NoError(t, err)
	require.Equal(t, NotFound, res.Type)
	require.Equal(t, filepath.Join(disc.Root, "NEWFILE"), res.NativePath)
}

func TestResolveNonTerminalMissingIsNoDir(t *testing.T) {
	r, disc := setupDisc(t)
	_, err := r.Resolve(true, 0, "$.MISSING.FILE", nil, &disc, false)
	require.Error(t, err)
}

func TestResolveRelativeWithParentReference(t *testing.T) {
	r, disc := setupDisc(t)
	anchor := &Anchor{Disc: disc, DottedPath: ":DISC0.$.D"}
	res, err := r.Resolve(true, 0, "^.APPLE", anchor, nil, false)
	require.NoError(t, err)
	require.Equal(t, File, res.Type)
	require.Equal(t, ":DISC0.$.APPLE", res.DottedPath)
}

func TestResolveDiscSpecifier(t *testing.T) {
	r, disc := setupDisc(t)
	res, err := r.Resolve(true, 0, ":DISC0.$.D.F", nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, File, res.Type)
	require.Equal(t, disc.Index, res.Disc.Index)
}

func TestResolveUnknownDiscSpecifier(t *testing.T) {
	r, _ := setupDisc(t)
	_, err := r.Resolve(true, 0, ":NOPE.$.X", nil, nil, false)
	require.Error(t, err)
}

func TestResolveTerminalWildcardCollectsAllMatches(t *testing.T) {
	r, disc := setupDisc(t)
	require.NoError(t, os.WriteFile(filepath.Join(disc.Root, "APRICOT"), []byte("z"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(disc.Root, "BANANA"), []byte("z"), 0o644))

	res, err := r.Resolve(true, 0, "$.A*", nil, &disc, true)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	require.Equal(t, "APPLE", res.Matches[0].Name)
	require.Equal(t, "APRICOT", res.Matches[1].Name)
}

func TestResolveNonTerminalWildcardUsesFirstMatch(t *testing.T) {
	r, disc := setupDisc(t)
	require.NoError(t, os.Mkdir(filepath.Join(disc.Root, "DITTO"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(disc.Root, "DITTO", "X"), []byte("z"), 0o644))

	res, err := r.Resolve(true, 0, "$.DI*.X", nil, &disc, true)
	require.NoError(t, err)
	require.Equal(t, File, res.Type)
}

func TestResolveEffectivePermissionOwnerVsOther(t *testing.T) {
	r, disc := setupDisc(t)
	res, err := r.Resolve(true, 0, "$.APPLE", nil, &disc, false)
	require.NoError(t, err)
	require.NoError(t, r.Attrs.Write(res.NativePath, attrs.Attrs{Owner: 7, Perm: codec.PermOwnerRead | codec.PermOwnerWrite}))

	asOwner, err := r.Resolve(false, 7, "$.APPLE", nil, &disc, false)
	require.NoError(t, err)
	require.Equal(t, codec.PermOwnerRead|codec.PermOwnerWrite, asOwner.Effective)

	asOther, err := r.Resolve(false, 99, "$.APPLE", nil, &disc, false)
	require.NoError(t, err)
	require.Equal(t, codec.Perm(0), asOther.Effective)
}

func TestResolveCaseInsensitiveLookup(t *testing.T) {
	r, disc := setupDisc(t)
	res, err := r.Resolve(true, 0, "$.apple", nil, &disc, false)
	require.NoError(t, err)
	require.Equal(t, File, res.Type)
	require.Equal(t, "APPLE", res.Components[0])
}

func TestResolveAttrsReadAfterNativePathSet(t *testing.T) {
	// Attribute reads must happen only once the native path is known,
	// never before. Exercised indirectly: a freshly-created wildcard
	// match's attrs must reflect the path actually stat'd, not some
	// stale/zero path.
	r, disc := setupDisc(t)
	require.NoError(t, r.Attrs.Write(filepath.Join(disc.Root, "APPLE"), attrs.Attrs{Owner: 42}))

	res, err := r.Resolve(true, 0, "$.A*", nil, &disc, true)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	require.Equal(t, uint16(42), res.Matches[0].Attrs.Owner)
}
