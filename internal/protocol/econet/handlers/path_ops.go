package handlers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// renameNoReplace renames oldpath to newpath with no-replace semantics: it
// fails rather than silently clobbering an existing newpath. Falls back to
// a link+unlink dance (itself no-replace, since Link already refuses an
// existing destination) on kernels too old for renameat2's
// RENAME_NOREPLACE flag.
func renameNoReplace(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	if err == nil || !errors.Is(err, unix.ENOSYS) {
		return err
	}
	if linkErr := unix.Link(oldpath, newpath); linkErr != nil {
		return linkErr
	}
	return unix.Unlink(oldpath)
}

// oscliCDir implements "*CDIR": require a not-found terminal
// and write access on the parent, then create the directory and write
// default attributes.
func (s *Server) oscliCDir(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	res, err := s.resolvePath(sess, args, byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type != resolver.NotFound {
		return econet.Error(econet.ErrBadDir, "already exists")
	}
	if res.ParentAttrs.Perm&codec.PermOwnerWrite == 0 && !sess.Privilege.IsSystem() {
		return econet.Error(econet.ErrInsufficientAccess, "no write access")
	}
	if err := os.Mkdir(res.NativePath, 0o755); err != nil {
		return econet.Error(econet.ErrGeneric, fmt.Sprintf("mkdir failed: %v", err))
	}
	_ = s.Resolver.Attrs.Write(res.NativePath, attrs.Attrs{Owner: uint16(sess.UserID), Perm: codec.DefaultFilePerm})
	return econet.Success(0x00)
}

func (s *Server) handleCDir(sess *session.Session, req *econet.Request) []byte {
	path := strings.TrimRight(string(req.Args[1:]), "\x00\r ")
	return s.oscliCDir(sess.Station, sess, req, path)
}

// oscliDelete implements "*DELETE": refuses non-empty directories and
// locked objects, and requires ownership of the object or write on the
// parent.
func (s *Server) oscliDelete(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	res, err := s.resolvePath(sess, args, byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type == resolver.NotFound {
		return econet.ErrorReply(ecerr.New(ecerr.NotFound, "not found"))
	}
	if res.Attrs.Perm&codec.PermLocked != 0 {
		return econet.Error(econet.ErrLocked, "locked")
	}
	if !sess.Privilege.IsSystem() && res.Attrs.Owner != uint16(sess.UserID) && res.ParentAttrs.Perm&codec.PermOwnerWrite == 0 {
		return econet.Error(econet.ErrInsufficientAccess, "no write access")
	}
	if r, w := s.Interlock.Stat(res.NativePath); r+w > 0 {
		return econet.Error(econet.ErrAlreadyOpen, "in use")
	}
	if res.Type == resolver.Directory {
		entries, err := os.ReadDir(res.NativePath)
		if err != nil {
			return econet.Error(econet.ErrGeneric, "cannot read directory")
		}
		if len(entries) > 0 {
			return econet.Error(econet.ErrGeneric, "dir not empty")
		}
	}
	if err := os.Remove(res.NativePath); err != nil {
		return econet.Error(econet.ErrGeneric, fmt.Sprintf("delete failed: %v", err))
	}
	_ = s.Resolver.Attrs.Remove(res.NativePath)
	return econet.Success(0x00)
}

func (s *Server) handleDelete(sess *session.Session, req *econet.Request) []byte {
	path := strings.TrimRight(string(req.Args[1:]), "\x00\r ")
	return s.oscliDelete(sess.Station, sess, req, path)
}

// oscliRename implements "*RENAME"/"*REN.": parses two whitespace-separated
// paths, refusing a locked source, an existing destination (unless both
// sides are directories — not implemented as a move-into, kept strict per
// "no-replace" semantics), and a cross-user move without system privilege.
func (s *Server) oscliRename(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return econet.Error(econet.ErrBadCommand, "expected two paths")
	}
	from, err := s.resolvePath(sess, fields[0], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if from.Type == resolver.NotFound {
		return econet.ErrorReply(ecerr.New(ecerr.NotFound, "source not found"))
	}
	if from.Attrs.Perm&codec.PermLocked != 0 {
		return econet.Error(econet.ErrLocked, "source locked")
	}
	if !sess.Privilege.IsSystem() && from.Attrs.Owner != uint16(sess.UserID) {
		return econet.Error(econet.ErrInsufficientAccess, "not owner")
	}
	to, err := s.resolvePath(sess, fields[1], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if to.Type != resolver.NotFound {
		return econet.Error(econet.ErrBadDir, "destination exists")
	}
	if err := renameNoReplace(from.NativePath, to.NativePath); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return econet.Error(econet.ErrAlreadyOpen, "destination exists")
		}
		return econet.Error(econet.ErrGeneric, fmt.Sprintf("rename failed: %v", err))
	}
	a := s.Resolver.Attrs.Read(from.NativePath)
	_ = s.Resolver.Attrs.Remove(from.NativePath)
	_ = s.Resolver.Attrs.Write(to.NativePath, a)
	return econet.Success(0x00)
}

// oscliAccess implements "*ACCESS": parse "owner/other" and apply, subject
// to ownership or system privilege.
func (s *Server) oscliAccess(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return econet.Error(econet.ErrBadCommand, "expected path and access string")
	}
	res, err := s.resolvePath(sess, fields[0], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type == resolver.NotFound {
		return econet.ErrorReply(ecerr.New(ecerr.NotFound, "not found"))
	}
	if !sess.Privilege.IsSystem() && res.Attrs.Owner != uint16(sess.UserID) {
		return econet.Error(econet.ErrInsufficientAccess, "not owner")
	}
	owner, other, hasOther := codec.ParseAccessString(fields[1])
	a := res.Attrs
	a.Perm = owner
	if hasOther {
		a.Perm |= other
	} else {
		a.Perm |= res.Attrs.Perm & (codec.PermOtherRead | codec.PermOtherWrite)
	}
	if err := s.Resolver.Attrs.Write(res.NativePath, a); err != nil {
		return econet.Error(econet.ErrGeneric, "write attrs failed")
	}
	return econet.Success(0x00)
}

// oscliChown implements "*CHOWN"/"*OWNER": system-only except for self-own.
func (s *Server) oscliChown(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return econet.Error(econet.ErrBadCommand, "expected path and owner")
	}
	res, err := s.resolvePath(sess, fields[0], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	var newOwner int
	if _, scanErr := fmt.Sscanf(fields[1], "%d", &newOwner); scanErr != nil {
		return econet.Error(econet.ErrBadCommand, "bad owner id")
	}
	if !sess.Privilege.IsSystem() && newOwner != sess.UserID {
		return econet.Error(econet.ErrInsufficientPriv, "system privilege required")
	}
	a := res.Attrs
	a.Owner = uint16(newOwner)
	if err := s.Resolver.Attrs.Write(res.NativePath, a); err != nil {
		return econet.Error(econet.ErrGeneric, "write attrs failed")
	}
	return econet.Success(0x00)
}

// oscliInfo implements "*INFO"/"*I.": a one-line human-readable metadata
// summary.
func (s *Server) oscliInfo(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	res, err := s.resolvePath(sess, strings.TrimSpace(args), byte(sess.CurrentHandle), true)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type == resolver.NotFound {
		return econet.ErrorReply(ecerr.New(ecerr.NotFound, "not found"))
	}
	line := fmt.Sprintf("%-10s %08X %08X %06X %02X", lastComponent(res), res.Attrs.Load, res.Attrs.Exec, res.Length, codec.PermToWire(res.Attrs.Perm, res.Type == resolver.Directory))
	return econet.Success(0x00, []byte(line)...)
}

func lastComponent(res *resolver.Resolution) string {
	if len(res.Components) == 0 {
		return "$"
	}
	return res.Components[len(res.Components)-1]
}

// oscliSDisc implements "*SDISC": re-resolve root/home/library on the new
// disc, allocate new handles, free the old three.
func (s *Server) oscliSDisc(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	name := strings.TrimSpace(args)
	disc, ok := s.Discs.ByName(name)
	if !ok {
		return econet.Error(econet.ErrBadDir, "no such disc")
	}
	isSystem := sess.Privilege.IsSystem()
	owner := uint16(sess.UserID)

	rootRes, err := s.Resolver.Resolve(isSystem, owner, "$", nil, &disc, false)
	if err != nil {
		return econet.Error(econet.ErrBadDir, "bad root")
	}
	curRes, libRes := rootRes, rootRes
	if u, userErr := s.Users.Get(sess.UserID); userErr == nil {
		if homeRes, homeErr := s.Resolver.Resolve(isSystem, owner, u.Home, nil, &disc, false); homeErr == nil && homeRes.Type == resolver.Directory {
			curRes = homeRes
		}
		if lRes, libErr := s.Resolver.Resolve(isSystem, owner, u.Library, nil, &disc, false); libErr == nil && lRes.Type == resolver.Directory {
			libRes = lRes
		}
	}

	old := []int{sess.RootHandle, sess.CurrentHandle, sess.LibraryHandle}
	newRoot, err := sess.Handles.Allocate(resolutionToDirHandle(rootRes))
	if err != nil {
		return econet.ErrorReply(err)
	}
	newCur, err := sess.Handles.Allocate(resolutionToDirHandle(curRes))
	if err != nil {
		return econet.ErrorReply(err)
	}
	newLib, err := sess.Handles.Allocate(resolutionToDirHandle(libRes))
	if err != nil {
		return econet.ErrorReply(err)
	}
	for _, n := range old {
		s.closeHandle(sess, n)
	}
	sess.RootHandle, sess.CurrentHandle, sess.LibraryHandle = newRoot, newCur, newLib
	sess.DiscName = disc.Name
	return econet.Success(0x00, byte(newRoot), byte(newCur), byte(newLib))
}

// oscliCopy implements "*COPY": wildcard source, a single destination
// directory, interlocked open-read + open-write-trunc per match.
func (s *Server) oscliCopy(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return econet.Error(econet.ErrBadCommand, "expected source and destination")
	}
	src, err := s.resolvePath(sess, fields[0], byte(sess.CurrentHandle), true)
	if err != nil {
		return econet.ErrorReply(err)
	}
	destDir, err := s.resolvePath(sess, fields[1], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}

	matches := src.Matches
	if len(matches) == 0 && src.Type == resolver.File {
		matches = []resolver.WildcardMatch{{Name: lastComponent(src), NativePath: src.NativePath, Type: src.Type, Attrs: src.Attrs}}
	}
	for _, m := range matches {
		if m.Type != resolver.File {
			continue
		}
		if err := s.Interlock.Open(m.NativePath, econet.ModeRead); err != nil {
			return econet.ErrorReply(err)
		}
		destPath := destDir.NativePath + string(os.PathSeparator) + codec.DottedToNative(m.Name)
		if destDir.Type == resolver.NotFound {
			destPath = destDir.NativePath
		}
		if err := s.Interlock.Open(destPath, econet.ModeWriteTrunc); err != nil {
			s.Interlock.Close(m.NativePath, econet.ModeRead)
			return econet.ErrorReply(err)
		}
		data, readErr := os.ReadFile(m.NativePath)
		if readErr == nil {
			_ = os.WriteFile(destPath, data, 0o644)
			_ = s.Resolver.Attrs.Write(destPath, m.Attrs)
		}
		s.Interlock.Close(m.NativePath, econet.ModeRead)
		s.Interlock.Close(destPath, econet.ModeWriteTrunc)
	}
	return econet.Success(0x00)
}

// oscliLib implements "*LIB": change the session's library anchor.
func (s *Server) oscliLib(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	res, err := s.resolvePath(sess, args, byte(sess.CurrentHandle), false)
	if err != nil || res.Type != resolver.Directory {
		return econet.Error(econet.ErrBadDir, "bad library directory")
	}
	n, err := s.reanchor(sess, sess.LibraryHandle, res)
	if err != nil {
		return econet.ErrorReply(err)
	}
	sess.LibraryHandle = n
	return econet.Success(0x00)
}

// oscliDir implements "*DIR": change the session's current-directory
// anchor.
func (s *Server) oscliDir(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	res, err := s.resolvePath(sess, args, byte(sess.CurrentHandle), false)
	if err != nil || res.Type != resolver.Directory {
		return econet.Error(econet.ErrBadDir, "bad directory")
	}
	n, err := s.reanchor(sess, sess.CurrentHandle, res)
	if err != nil {
		return econet.ErrorReply(err)
	}
	sess.CurrentHandle = n
	return econet.Success(0x00)
}

// oscliLink implements "*LINK": system-only; create a host symlink from
// destination to source and lock the source to prevent dangling-link
// crashes.
func (s *Server) oscliLink(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return econet.Error(econet.ErrBadCommand, "expected source and destination")
	}
	src, err := s.resolvePath(sess, fields[0], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	dst, err := s.resolvePath(sess, fields[1], byte(sess.CurrentHandle), false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if err := unix.Symlink(src.NativePath, dst.NativePath); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return econet.Error(econet.ErrAlreadyOpen, "destination exists")
		}
		return econet.Error(econet.ErrGeneric, fmt.Sprintf("link failed: %v", err))
	}
	a := src.Attrs
	a.Perm |= codec.PermLocked
	_ = s.Resolver.Attrs.Write(src.NativePath, a)
	return econet.Success(0x00)
}

func (s *Server) handleGetObjectInfo(sess *session.Session, req *econet.Request) []byte {
	return s.getObjectInfo(sess, req)
}

func (s *Server) handleSetObjectInfo(sess *session.Session, req *econet.Request) []byte {
	return s.setObjectInfo(sess, req)
}
