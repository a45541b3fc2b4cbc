package handlers

import (
	"strings"

	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// oscliPass implements "*PASS": change the logged-in user's own password.
func (s *Server) oscliPass(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing new password")
	}
	if len(fields) >= 2 {
		u, err := s.Users.Get(sess.UserID)
		if err != nil {
			return econet.Error(econet.ErrGeneric, "user lookup failed")
		}
		if !session.PasswordEquals(u.Password, fields[0]) {
			return econet.Error(econet.ErrNoSuchUser, "wrong password")
		}
		u.Password = fields[1]
		if err := s.Users.Put(u); err != nil {
			return econet.Error(econet.ErrGeneric, "persist failed")
		}
		return econet.Success(0x00)
	}
	u, err := s.Users.Get(sess.UserID)
	if err != nil {
		return econet.Error(econet.ErrGeneric, "user lookup failed")
	}
	u.Password = fields[0]
	if err := s.Users.Put(u); err != nil {
		return econet.Error(econet.ErrGeneric, "persist failed")
	}
	return econet.Success(0x00)
}

// oscliSetHome implements "*SETHOME": system-only; reassign a user's home
// path.
func (s *Server) oscliSetHome(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return econet.Error(econet.ErrBadCommand, "expected username and path")
	}
	u, found, err := s.Users.FindByUsername(fields[0])
	if err != nil || !found {
		return econet.Error(econet.ErrNoSuchUser, "no such user")
	}
	u.Home = fields[1]
	if err := s.Users.Put(u); err != nil {
		return econet.Error(econet.ErrGeneric, "persist failed")
	}
	return econet.Success(0x00)
}

// oscliSetLib implements "*SETLIB": reassign the calling user's own
// persisted library path (distinct from "*LIB", which only changes the
// session's current library anchor).
func (s *Server) oscliSetLib(_ econet.Station, sess *session.Session, _ *econet.Request, args string) []byte {
	path := strings.TrimSpace(args)
	if path == "" {
		return econet.Error(econet.ErrBadCommand, "missing path")
	}
	res, err := s.resolvePath(sess, path, byte(sess.CurrentHandle), false)
	if err != nil || res.Type != resolver.Directory {
		return econet.Error(econet.ErrBadDir, "bad library directory")
	}
	u, err := s.Users.Get(sess.UserID)
	if err != nil {
		return econet.Error(econet.ErrGeneric, "user lookup failed")
	}
	u.Library = path
	if err := s.Users.Put(u); err != nil {
		return econet.Error(econet.ErrGeneric, "persist failed")
	}
	n, reanchorErr := s.reanchor(sess, sess.LibraryHandle, res)
	if reanchorErr != nil {
		return econet.ErrorReply(reanchorErr)
	}
	sess.LibraryHandle = n
	return econet.Success(0x00)
}

// oscliFlog implements "*FLOG": system-only forced log-off of another
// station's session.
func (s *Server) oscliFlog(_ econet.Station, _ *session.Session, _ *econet.Request, args string) []byte {
	username := strings.TrimSpace(args)
	if username == "" {
		return econet.Error(econet.ErrBadCommand, "missing username")
	}
	target, ok := s.Sessions.FindByUsername(username)
	if !ok {
		return econet.Error(econet.ErrNoSuchUser, "not logged on")
	}
	s.closeSession(target)
	s.Sessions.Remove(target.Station)
	return econet.Success(0x00)
}

// oscliNewUser implements "*NEWUSER": system-only; creates a user record
// in the first invalid slot.
func (s *Server) oscliNewUser(_ econet.Station, _ *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing username")
	}
	if _, found, _ := s.Users.FindByUsername(fields[0]); found {
		return econet.Error(econet.ErrBadCommand, "user already exists")
	}
	id, err := s.Users.AllocateSlot()
	if err != nil {
		return econet.ErrorReply(err)
	}
	password := ""
	if len(fields) > 1 {
		password = fields[1]
	}
	u := session.User{
		ID:        id,
		Username:  fields[0],
		Password:  password,
		Privilege: session.PrivUser,
		Home:      "$",
		Library:   "$",
	}
	if err := s.Users.Put(u); err != nil {
		return econet.Error(econet.ErrGeneric, "persist failed")
	}
	return econet.Success(0x00, byte(id))
}

// oscliPriv implements "*PRIV": system-only; sets a user's privilege byte.
func (s *Server) oscliPriv(_ econet.Station, _ *session.Session, _ *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return econet.Error(econet.ErrBadCommand, "expected username and privilege")
	}
	u, found, err := s.Users.FindByUsername(fields[0])
	if err != nil || !found {
		return econet.Error(econet.ErrNoSuchUser, "no such user")
	}
	var priv session.Privilege
	switch strings.ToUpper(fields[1]) {
	case "S", "SYSTEM":
		priv = session.PrivSystem | session.PrivUser
	case "U", "USER":
		priv = session.PrivUser
	case "L", "LOCKED":
		priv = u.Privilege | session.PrivLocked
	default:
		return econet.Error(econet.ErrBadCommand, "bad privilege")
	}
	u.Privilege = priv
	if err := s.Users.Put(u); err != nil {
		return econet.Error(econet.ErrGeneric, "persist failed")
	}
	return econet.Success(0x00)
}
