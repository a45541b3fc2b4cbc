package handlers

import (
	"os"

	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// handleOpen implements fsop OPEN: args are
// must_exist(1) | readonly(1) | path…
func (s *Server) handleOpen(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 2 {
		return econet.Error(econet.ErrBadCommand, "missing open flags")
	}
	mustExist := req.Args[0] != 0
	readonly := req.Args[1] != 0
	path := string(req.Args[2:])

	res, err := s.resolvePath(sess, path, req.CurrentHandle, false)
	if err != nil {
		return econet.ErrorReply(err)
	}

	var mode econet.OpenMode
	switch {
	case readonly:
		mode = econet.ModeRead
	case mustExist:
		mode = econet.ModeUpdate
	default:
		mode = econet.ModeWriteTrunc
	}

	if res.Type == resolver.NotFound {
		if mustExist || readonly {
			return econet.Error(econet.ErrNotFound, "not found")
		}
	} else if res.Type != resolver.File {
		return econet.Error(econet.ErrTypesDontMatch, "not a file")
	}

	if err := s.Interlock.Open(res.NativePath, mode); err != nil {
		return econet.ErrorReply(err)
	}

	flags := os.O_RDWR
	if mode == econet.ModeRead {
		flags = os.O_RDONLY
	}
	if mode == econet.ModeWriteTrunc {
		flags |= os.O_CREATE | os.O_TRUNC
	}
	f, openErr := os.OpenFile(res.NativePath, flags, 0o644)
	if openErr != nil {
		s.Interlock.Close(res.NativePath, mode)
		return econet.Error(econet.ErrGeneric, "open failed")
	}
	if mode == econet.ModeWriteTrunc {
		a := res.Attrs
		a.Owner = uint16(sess.UserID)
		_ = s.Resolver.Attrs.Write(res.NativePath, a)
	}

	h := &session.Handle{
		Kind:       session.HandleFile,
		Path:       res.NativePath,
		Mode:       mode,
		Disc:       res.Disc.Index,
		DottedPath: res.DottedPath,
		File:       f,
	}
	n, allocErr := sess.Handles.Allocate(h)
	if allocErr != nil {
		_ = f.Close()
		s.Interlock.Close(res.NativePath, mode)
		return econet.ErrorReply(allocErr)
	}
	return econet.Success(0x00, byte(n))
}

// oscliSetLib, oscliSetHome share a small helper that reallocates an anchor
// handle against a freshly-resolved directory (see user_admin.go).
func (s *Server) reanchor(sess *session.Session, oldHandle int, res *resolver.Resolution) (int, error) {
	s.closeHandle(sess, oldHandle)
	return sess.Handles.Allocate(resolutionToDirHandle(res))
}
