package session

import (
	"os"

	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet"
)

// HandleKind distinguishes a file handle from a directory handle; both
// share the same numeric handle space.
type HandleKind int

const (
	HandleFile HandleKind = iota
	HandleDir
)

// Handle is one entry in a session's handle table: an open file or
// directory, the interlock entry that guards it, and (for directories) the
// cursor used by OSGBPB-style sequential reads.
type Handle struct {
	Kind   HandleKind
	Path   string // native host path
	Mode   econet.OpenMode

	// Disc and DottedPath record the fully-qualified dotted-namespace
	// identity of this handle's object (":<disc>.$[.comp…]"), so that a
	// later resolve() call relative to this handle can recover its
	// position.
	Disc       int
	DottedPath string

	// Interlock is not set by the handlers: interlock entries are keyed by
	// host path, and a file handle's entry is released by passing its Path
	// and Mode to interlock.Table.Close.
	Interlock int

	File *os.File // nil for directory handles

	// Cursor is the current byte offset for sequential GETBYTE/PUTBYTE and
	// the base offset for GETBYTES/PUTBYTES.
	Cursor int64

	// SequenceBit is the low control bit of the last accepted PUTBYTE,
	// used to silently acknowledge retransmitted duplicates without
	// re-writing.
	SequenceBit byte

	// PastEOF records that a GETBYTE already reported the at-EOF marker
	// once; a second attempt past end-of-file is an error.
	PastEOF bool

	// DirEntries/DirPos hold a directory read position; no handler
	// populates or reads them, and GETBYTES accepts only file handles.
	DirEntries []string
	DirPos     int
}

// HandleTable is the fixed per-session array of open handles. Slot 0 is reserved — the
// protocol uses handle 0 to mean "no handle"/the current directory — so
// only slots 1..31 are ever allocated.
type HandleTable struct {
	slots [econet.MaxHandlesPerSess]*Handle
}

// Allocate reserves the first free slot (1..31) and stores h there,
// returning the handle number. Returns ecerr.ChannelExhausted if the table
// is full.
func (t *HandleTable) Allocate(h *Handle) (int, error) {
	for n := 1; n < len(t.slots); n++ {
		if t.slots[n] == nil {
			t.slots[n] = h
			return n, nil
		}
	}
	return 0, ecerr.New(ecerr.ChannelExhausted, "no free handles")
}

// Get returns the handle at slot n, or nil if n is out of range or unused.
func (t *HandleTable) Get(n int) *Handle {
	if n <= 0 || n >= len(t.slots) {
		return nil
	}
	return t.slots[n]
}

// Free releases slot n. Freeing an already-free or out-of-range slot is a
// no-op; callers are expected to have already closed the underlying file
// and released the interlock entry.
func (t *HandleTable) Free(n int) {
	if n <= 0 || n >= len(t.slots) {
		return
	}
	t.slots[n] = nil
}

// All returns every currently-allocated (slot, handle) pair, used by BYE
// and forced-logoff handling to close everything a session still holds
// open.
func (t *HandleTable) All() map[int]*Handle {
	out := make(map[int]*Handle)
	for n := 1; n < len(t.slots); n++ {
		if t.slots[n] != nil {
			out[n] = t.slots[n]
		}
	}
	return out
}
