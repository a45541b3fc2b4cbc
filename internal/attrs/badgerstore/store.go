// Package badgerstore implements attrs.Store as a single per-disc metadata
// journal backed by Badger, in place of per-file sidecar xattrs: because
// entries are keyed by the disc-relative path rather than attached to the
// inode, the journal survives external copies of the disc tree (which
// silently drop xattrs) at the cost of requiring an explicit Remove on
// delete/rename.
package badgerstore

import (
	"encoding/binary"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
)

// Store is a attrs.Store backed by an embedded Badger database, one per
// disc root.
type Store struct {
	db     *badger.DB
	discRoot string
}

// Open opens (creating if absent) the Badger journal rooted at dbDir for
// the disc tree rooted at discRoot. Keys are stored relative to discRoot so
// the journal remains valid if the disc is moved.
func Open(dbDir, discRoot string) (*Store, error) {
	opts := badger.DefaultOptions(dbDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, discRoot: discRoot}, nil
}

func (s *Store) key(path string) []byte {
	rel := strings.TrimPrefix(path, s.discRoot)
	return []byte(strings.TrimPrefix(rel, "/"))
}

// encode packs Attrs into a fixed 11-byte record:
// owner(2) | load(4) | exec(4) | perm(1).
func encode(a attrs.Attrs) []byte {
	buf := make([]byte, 11)
	binary.BigEndian.PutUint16(buf[0:2], a.Owner)
	binary.BigEndian.PutUint32(buf[2:6], a.Load)
	binary.BigEndian.PutUint32(buf[6:10], a.Exec)
	buf[10] = byte(a.Perm)
	return buf
}

func decode(buf []byte) (attrs.Attrs, bool) {
	if len(buf) != 11 {
		return attrs.Attrs{}, false
	}
	return attrs.Attrs{
		Owner: binary.BigEndian.Uint16(buf[0:2]),
		Load:  binary.BigEndian.Uint32(buf[2:6]),
		Exec:  binary.BigEndian.Uint32(buf[6:10]),
		Perm:  codec.Perm(buf[10]),
	}, true
}

func (s *Store) Read(path string) attrs.Attrs {
	var result = attrs.Default
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if a, ok := decode(val); ok {
				result = a
			}
			return nil
		})
	})
	if err != nil && err != badger.ErrKeyNotFound {
		logger.Warn("badgerstore: read failed, using defaults", logger.NativePath(path), logger.Err(err))
	}
	return result
}

func (s *Store) Write(path string, a attrs.Attrs) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(path), encode(a))
	})
}

func (s *Store) Remove(path string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(s.key(path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
