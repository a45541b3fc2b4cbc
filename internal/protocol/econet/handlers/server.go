// Package handlers implements the request dispatcher and the
// opcode handlers. The two are implemented together because
// the dispatcher has no useful behaviour independent of the handler table
// it routes to, and splitting them into separate packages would otherwise
// force an import cycle back down into the session/resolver/interlock/bulk
// packages those handlers depend on.
package handlers

import (
	"time"

	"github.com/econet-fs/efsd/internal/bulk"
	"github.com/econet-fs/efsd/internal/interlock"
	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// Server ties every core component together and is the single type that
// implements the request dispatcher.
type Server struct {
	Sessions  *session.Manager
	Users     *session.UserStore
	Discs     *resolver.Discs
	Resolver  *resolver.Resolver
	Interlock *interlock.Table
	Bulk      *bulk.Engine

	// SevenBitDates selects the extended date encoding server-wide.
	SevenBitDates bool

	// DefaultDiscIndex is used when a path resolves with no anchor handle
	// and no explicit disc specifier (the initial "$" at login time, on
	// whichever disc a user's home is configured against).
	DefaultDiscIndex int
}

// New constructs a Server from its component collaborators.
func New(sessions *session.Manager, users *session.UserStore, discs *resolver.Discs, resolve *resolver.Resolver, locks *interlock.Table, bulkEngine *bulk.Engine, sevenBitDates bool) *Server {
	return &Server{
		Sessions:      sessions,
		Users:         users,
		Discs:         discs,
		Resolver:      resolve,
		Interlock:     locks,
		Bulk:          bulkEngine,
		SevenBitDates: sevenBitDates,
	}
}

// Dispatch decodes an inbound payload from station and returns the reply
// payload to send back. It never panics: every handler path
// recovers into a generic error reply.
func (s *Server) Dispatch(station econet.Station, payload []byte) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handlers: recovered from panic",
				logger.Station(int(station.Net), int(station.Stn)), "panic", r)
			reply = econet.Error(econet.ErrGeneric, "internal error")
		}
	}()

	req, err := econet.ParseRequest(station, payload)
	if err != nil {
		return econet.Error(econet.ErrBadCommand, "malformed request")
	}

	logger.Debug("handlers: dispatching request",
		logger.Station(int(station.Net), int(station.Stn)),
		logger.Opcode(int(req.Fsop)))

	sess, hasSession := s.Sessions.Get(station)

	if req.Fsop != econet.OpOSCLI && !hasSession {
		return econet.Error(econet.ErrWhoAreYou, "who are you?")
	}

	switch req.Fsop {
	case econet.OpOSCLI:
		return s.dispatchOSCLI(station, sess, req)
	case econet.OpSave:
		return s.handleSave(sess, req)
	case econet.OpLoad:
		return s.handleLoad(sess, req, false)
	case econet.OpExamine:
		return s.handleExamine(sess, req)
	case econet.OpCatHeader:
		return s.handleCatHeader(sess, req)
	case econet.OpLoadAsCommand:
		return s.handleLoad(sess, req, true)
	case econet.OpOpen:
		return s.handleOpen(sess, req)
	case econet.OpClose:
		return s.handleClose(sess, req)
	case econet.OpGetByte:
		return s.handleGetByte(sess, req)
	case econet.OpPutByte:
		return s.handlePutByte(sess, req)
	case econet.OpGetBytes:
		return s.handleGetBytes(sess, req)
	case econet.OpPutBytes:
		return s.handlePutBytes(sess, req)
	case econet.OpGetRandomAccess:
		return s.handleGetRandomAccess(sess, req)
	case econet.OpSetRandomAccess:
		return s.handleSetRandomAccess(sess, req)
	case econet.OpReadDiscs:
		return s.handleReadDiscs(sess, req)
	case econet.OpReadUsersLoggedOn:
		return s.handleReadUsersLoggedOn(sess, req)
	case econet.OpReadTime:
		return s.handleReadTime(sess, req)
	case econet.OpEOF:
		return s.handleEOF(sess, req)
	case econet.OpGetObjectInfo:
		return s.handleGetObjectInfo(sess, req)
	case econet.OpSetObjectInfo:
		return s.handleSetObjectInfo(sess, req)
	case econet.OpDelete:
		return s.handleDelete(sess, req)
	case econet.OpReadUserEnv:
		return s.handleReadUserEnv(sess, req)
	case econet.OpSetBootOpt:
		return s.handleSetBootOpt(sess, req)
	case econet.OpBye:
		return s.handleBye(sess, req)
	case econet.OpReadUserInfo:
		return s.handleReadUserInfo(sess, req)
	case econet.OpReadVersion:
		return s.handleReadVersion(sess, req)
	case econet.OpReadFree:
		return s.handleReadFree(sess, req)
	case econet.OpCDir:
		return s.handleCDir(sess, req)
	case econet.OpReadUserFree, econet.OpSetUserFree:
		// Quota enforcement is a stub.
		return econet.Success(0x00, 0xFF, 0xFF, 0xFF, 0xFF)
	default:
		return econet.Error(econet.ErrBadCommand, "unsupported opcode")
	}
}

// anchorFor resolves handle number h on sess into a resolver.Anchor, or nil
// if the handle is unused (meaning "resolve against the default disc").
func (s *Server) anchorFor(sess *session.Session, h byte) *resolver.Anchor {
	handle := sess.Handles.Get(int(h))
	if handle == nil {
		return nil
	}
	disc, ok := s.Discs.ByIndex(handle.Disc)
	if !ok {
		return nil
	}
	return &resolver.Anchor{Disc: disc, DottedPath: handle.DottedPath}
}

// defaultDisc returns the disc used when no anchor and no disc specifier
// apply.
func (s *Server) defaultDisc() *resolver.Disc {
	d, ok := s.Discs.ByIndex(s.DefaultDiscIndex)
	if !ok {
		return nil
	}
	return &d
}

// resolvePath is the session-aware convenience wrapper around
// resolver.Resolver.Resolve used by every handler.
func (s *Server) resolvePath(sess *session.Session, path string, relativeTo byte, allowWildcards bool) (*resolver.Resolution, error) {
	anchor := s.anchorFor(sess, relativeTo)
	var def *resolver.Disc
	if anchor == nil {
		def = s.defaultDisc()
	}
	isSystem := sess.Privilege.IsSystem()
	return s.Resolver.Resolve(isSystem, uint16(sess.UserID), path, anchor, def, allowWildcards)
}

// closeSession releases every handle sess still holds: file handles close
// their host descriptor and release the interlock entry; directory handles
// (which hold no interlock in this design, see DESIGN.md) are simply
// dropped.
func (s *Server) closeSession(sess *session.Session) {
	for _, h := range sess.Handles.All() {
		if h.Kind == session.HandleFile {
			if h.File != nil {
				_ = h.File.Close()
			}
			s.Interlock.Close(h.Path, h.Mode)
		}
	}
}

// closeHandle releases a single handle by number, the shared logic behind
// CLOSE and "close handle 0 closes everything".
func (s *Server) closeHandle(sess *session.Session, n int) {
	h := sess.Handles.Get(n)
	if h == nil {
		return
	}
	if h.Kind == session.HandleFile && h.File != nil {
		_ = h.File.Close()
	}
	if h.Kind == session.HandleFile {
		s.Interlock.Close(h.Path, h.Mode)
	}
	sess.Handles.Free(n)
}

// handleClose implements fsop CLOSE: handle 0 is the protocol wildcard
// meaning "close all this session's handles".
func (s *Server) handleClose(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing handle")
	}
	n := int(req.Args[0])
	if n == 0 {
		for slot := range sess.Handles.All() {
			s.closeHandle(sess, slot)
		}
	} else {
		s.closeHandle(sess, n)
	}
	return econet.Success(0x00)
}

// handleBye implements fsop BYE and the "BYE" OSCLI verb: destroy the
// session, releasing every handle.
func (s *Server) handleBye(sess *session.Session, _ *econet.Request) []byte {
	s.closeSession(sess)
	s.Sessions.Remove(sess.Station)
	return econet.Success(0x00)
}

func nowUTC() time.Time { return time.Now().UTC() }
