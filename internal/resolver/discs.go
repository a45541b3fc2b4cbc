package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet"
)

// Disc is one configured disc tree.
type Disc struct {
	Index int
	Name  string
	Root  string // absolute host path to the disc's root directory
}

// Discs is the small, server-scoped registry of configured disc trees.
type Discs struct {
	mu   sync.RWMutex
	list []Disc
}

// NewDiscs constructs an empty registry.
func NewDiscs() *Discs { return &Discs{} }

// Scan populates the registry by listing serverRoot for entries matching
// "<hex digit><name>", the on-disk disc naming convention.
func Scan(serverRoot string) (*Discs, error) {
	entries, err := os.ReadDir(serverRoot)
	if err != nil {
		return nil, fmt.Errorf("scan discs in %s: %w", serverRoot, err)
	}
	d := NewDiscs()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < 2 {
			continue
		}
		idx, err := strconv.ParseInt(name[:1], 16, 16)
		if err != nil {
			continue
		}
		if err := d.Add(Disc{Index: int(idx), Name: name[1:], Root: filepath.Join(serverRoot, name)}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add registers a disc, failing if the registry is already at capacity.
func (d *Discs) Add(disc Disc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.list) >= econet.MaxDiscsPerServer {
		return ecerr.New(ecerr.FsError, "disc table full")
	}
	d.list = append(d.list, disc)
	return nil
}

// ByName looks up a disc case-insensitively, for resolving a leading
// ":disc" specifier in a pathname.
func (d *Discs) ByName(name string) (Disc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, disc := range d.list {
		if strings.EqualFold(disc.Name, name) {
			return disc, true
		}
	}
	return Disc{}, false
}

// ByIndex looks up a disc by its numeric index.
func (d *Discs) ByIndex(index int) (Disc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, disc := range d.list {
		if disc.Index == index {
			return disc, true
		}
	}
	return Disc{}, false
}

// All returns every registered disc, in registration order, for
// READ-DISCS.
func (d *Discs) All() []Disc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Disc, len(d.list))
	copy(out, d.list)
	return out
}
