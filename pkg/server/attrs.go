package server

import (
	"strings"

	"github.com/econet-fs/efsd/internal/attrs"
)

// multiAttrs composes one attrs.Store per disc root, selecting the backend
// whose root prefixes the path. It lets badgerstore.Store — scoped to a
// single disc tree by design — serve every configured disc behind the one
// shared attrs.Store the resolver expects, instead of limiting the Badger
// backend to single-disc deployments.
type multiAttrs struct {
	byRoot  map[string]attrs.Store
	roots   []string // longest-prefix-first, for correct matching of nested roots
	fallback attrs.Store
}

func newMultiAttrs(fallback attrs.Store) *multiAttrs {
	return &multiAttrs{byRoot: make(map[string]attrs.Store), fallback: fallback}
}

func (m *multiAttrs) add(root string, store attrs.Store) {
	m.byRoot[root] = store
	m.roots = append(m.roots, root)
	// Longest root first so a nested disc root (unlikely, but not
	// disallowed by resolver.Disc) is matched before its parent.
	for i := len(m.roots) - 1; i > 0 && len(m.roots[i]) > len(m.roots[i-1]); i-- {
		m.roots[i], m.roots[i-1] = m.roots[i-1], m.roots[i]
	}
}

func (m *multiAttrs) storeFor(path string) attrs.Store {
	for _, root := range m.roots {
		if strings.HasPrefix(path, root) {
			return m.byRoot[root]
		}
	}
	return m.fallback
}

func (m *multiAttrs) Read(path string) attrs.Attrs {
	return m.storeFor(path).Read(path)
}

func (m *multiAttrs) Write(path string, a attrs.Attrs) error {
	return m.storeFor(path).Write(path, a)
}

func (m *multiAttrs) Remove(path string) error {
	return m.storeFor(path).Remove(path)
}

func (m *multiAttrs) Close() error {
	var firstErr error
	for _, s := range m.byRoot {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.fallback.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
