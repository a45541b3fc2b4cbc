// Package attrs implements the sidecar attribute store: the
// four named metadata fields — owner, load address, exec address, and
// permission bits — that accompany each host file or directory outside the
// host filesystem's own metadata.
//
// A plain per-file xattr sidecar desynchronises easily (an external `cp`
// silently drops it). Two backends are provided: Xattr
// (internal/attrs/xattr), a direct xattr-based scheme for byte-for-byte
// compatibility with existing discs, and Badger (internal/attrs/badgerstore),
// a per-disc metadata journal that survives external copies because it is
// keyed by the disc-relative path rather than living beside the file.
package attrs

import "github.com/econet-fs/efsd/internal/protocol/econet/codec"

// Attrs is the sidecar metadata for one host path.
type Attrs struct {
	Owner uint16 // user id, 0 = system
	Load  uint32
	Exec  uint32
	Perm  codec.Perm
}

// Default is what Read returns for a path with no recorded attributes.
var Default = Attrs{Owner: 0, Load: 0, Exec: 0, Perm: codec.DefaultFilePerm}

// Store reads and writes sidecar attributes keyed by a native host path.
// Implementations never return an error from Read: on any backend failure
// they log and fall back to Default. Write failures are reported so
// callers can log them, but are otherwise non-fatal.
type Store interface {
	// Read returns the attributes recorded for path, or Default if none
	// are recorded or the backend is unavailable.
	Read(path string) Attrs

	// Write records a, replacing any previous attributes for path. All
	// four fields are written even if only one logically changed.
	Write(path string, a Attrs) error

	// Remove discards any attributes recorded for path. Safe to call for
	// a path with no recorded attributes.
	Remove(path string) error

	// Close releases backend resources (file handles, database handles).
	Close() error
}
