// Package interlock implements the file-access interlock engine: a bounded table that enforces multi-reader/single-writer access
// across every session's open handles on a given host path.
package interlock

import (
	"sync"

	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet"
)

// entry tracks the open-mode refcounts for one path. A path with zero
// readers and zero writers is removed from the table rather than kept
// around with zero counts.
type entry struct {
	path    string
	readers int
	writers int
}

// Table is the server-wide interlock table. All operations are synchronous and safe to call
// from the single-threaded dispatch loop without external locking; the
// internal mutex exists only so the admin introspection surface can read a
// snapshot concurrently.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty interlock table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Open registers an open of path under mode; the same path and mode are
// later passed to Close to release it. It enforces the invariant that writers <= 1,
// and writers == 1 implies readers == 0. ModeRead may stack
// with any number of other readers (but not with a writer); ModeUpdate and
// ModeWriteTrunc are writer opens and conflict with any existing reader or
// writer.
func (t *Table) Open(path string, mode econet.OpenMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		e = &entry{path: path}
	}

	if !ok && len(t.entries) >= econet.MaxInterlockEntries {
		return ecerr.New(ecerr.TooManyFiles, "interlock table full")
	}

	isWrite := mode != econet.ModeRead
	if isWrite {
		if e.readers > 0 || e.writers > 0 {
			return ecerr.New(ecerr.InterlockBusy, "file is open elsewhere")
		}
		e.writers = 1
	} else {
		if e.writers > 0 {
			return ecerr.New(ecerr.InterlockBusy, "file is open for writing elsewhere")
		}
		e.readers++
	}

	if !ok {
		t.entries[path] = e
	}
	return nil
}

// Close releases one reference to path under mode. Once both refcounts
// reach zero the entry is removed, freeing its table slot.
func (t *Table) Close(path string, mode econet.OpenMode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		return
	}
	if mode == econet.ModeRead {
		if e.readers > 0 {
			e.readers--
		}
	} else {
		if e.writers > 0 {
			e.writers--
		}
	}
	if e.readers == 0 && e.writers == 0 {
		delete(t.entries, path)
	}
}

// Stat reports the current reader/writer counts for path (0, 0 if not
// open), for the admin introspection surface.
func (t *Table) Stat(path string) (readers, writers int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[path]
	if !ok {
		return 0, 0
	}
	return e.readers, e.writers
}

// Len reports how many distinct paths currently hold interlock entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Paths returns every path currently tracked, for admin introspection.
func (t *Table) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.entries))
	for p := range t.entries {
		out = append(out, p)
	}
	return out
}
