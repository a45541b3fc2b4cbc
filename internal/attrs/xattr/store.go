// Package xattr implements attrs.Store using Linux extended filesystem
// attributes, matching the original fileserver's sidecar scheme byte for
// byte: owner as 4 hex digits, permission as 2 hex digits, load/exec
// address as 8 hex digits each, stored under the "user.econet_*" namespace.
package xattr

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
)

const (
	nsOwner = "user.econet_owner"
	nsLoad  = "user.econet_load"
	nsExec  = "user.econet_exec"
	nsPerm  = "user.econet_perm"
)

// Store is a attrs.Store backed by Linux xattrs on the host filesystem.
type Store struct{}

// New constructs an xattr-backed attribute store.
func New() *Store { return &Store{} }

func (s *Store) Read(path string) attrs.Attrs {
	a := attrs.Default
	if v, ok := readHex(path, nsOwner, 4); ok {
		a.Owner = uint16(v)
	}
	if v, ok := readHex(path, nsLoad, 8); ok {
		a.Load = uint32(v)
	}
	if v, ok := readHex(path, nsExec, 8); ok {
		a.Exec = uint32(v)
	}
	if v, ok := readHex(path, nsPerm, 2); ok {
		a.Perm = codec.Perm(v)
	}
	return a
}

func (s *Store) Write(path string, a attrs.Attrs) error {
	var firstErr error
	if err := writeHex(path, nsPerm, uint64(a.Perm), 2); err != nil {
		logger.Warn("xattr: failed to set permission", logger.NativePath(path), logger.Err(err))
		firstErr = err
	}
	if err := writeHex(path, nsOwner, uint64(a.Owner), 4); err != nil {
		logger.Warn("xattr: failed to set owner", logger.NativePath(path), logger.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := writeHex(path, nsLoad, uint64(a.Load), 8); err != nil {
		logger.Warn("xattr: failed to set load address", logger.NativePath(path), logger.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := writeHex(path, nsExec, uint64(a.Exec), 8); err != nil {
		logger.Warn("xattr: failed to set exec address", logger.NativePath(path), logger.Err(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) Remove(path string) error {
	for _, ns := range []string{nsOwner, nsLoad, nsExec, nsPerm} {
		_ = unix.Removexattr(path, ns)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func readHex(path, name string, digits int) (uint64, bool) {
	buf := make([]byte, digits)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil || n != digits {
		return 0, false
	}
	v, err := strconv.ParseUint(string(buf[:n]), 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func writeHex(path, name string, v uint64, digits int) error {
	s := fmt.Sprintf("%0*x", digits, v)
	return unix.Setxattr(path, name, []byte(s), 0)
}
