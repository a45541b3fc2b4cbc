package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// examineFormat selects one of the four EXAMINE reply shapes.
type examineFormat byte

const (
	examinePacked      examineFormat = 0
	examineHumanLine   examineFormat = 1
	examineShortName   examineFormat = 2
	examineShortPerms  examineFormat = 3
)

// handleExamine implements fsop EXAMINE:
// args are format(1) | start(1) | count(1) | path…. It resolves path with
// wildcards enabled and formats up to count matches starting at start,
// honouring the hidden bit unless the requester owns the entry.
func (s *Server) handleExamine(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 3 {
		return econet.Error(econet.ErrBadCommand, "missing args")
	}
	format := examineFormat(req.Args[0])
	start := int(req.Args[1])
	count := int(req.Args[2])
	path := strings.TrimSpace(string(req.Args[3:]))
	if path == "" {
		path = "*"
	}

	res, err := s.resolvePath(sess, path, req.CurrentHandle, true)
	if err != nil {
		return econet.ErrorReply(err)
	}

	matches := res.Matches
	if len(matches) == 0 && res.Type == resolver.Directory {
		matches = listDirAsMatches(s, res)
	}

	isSystem := sess.Privilege.IsSystem()
	owner := uint16(sess.UserID)
	var visible []resolver.WildcardMatch
	for _, m := range matches {
		if m.Attrs.Perm&codec.PermHidden != 0 && !isSystem && m.Attrs.Owner != owner {
			continue
		}
		visible = append(visible, m)
	}

	end := start + count
	if end > len(visible) {
		end = len(visible)
	}
	if start > len(visible) {
		start = len(visible)
	}
	page := visible[start:end]

	// The entry count is encoded as 16 bits, low byte first.
	var out []byte
	out = append(out, byte(len(page)), byte(len(page)>>8))
	for _, m := range page {
		out = append(out, formatExamineEntry(format, m)...)
	}
	return econet.Success(0x00, out...)
}

// listDirAsMatches enumerates a directory's immediate children as
// WildcardMatch entries, for an EXAMINE of an exact (non-wildcarded)
// directory name where the resolver's own Matches list is empty.
func listDirAsMatches(s *Server, res *resolver.Resolution) []resolver.WildcardMatch {
	entries, err := os.ReadDir(res.NativePath)
	if err != nil {
		return nil
	}
	out := make([]resolver.WildcardMatch, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == "lost+found" || len(name) > 10 {
			continue
		}
		childNative := filepath.Join(res.NativePath, name)
		info, statErr := e.Info()
		if statErr != nil {
			continue
		}
		a := s.Resolver.Attrs.Read(childNative)
		objType := resolver.File
		if info.IsDir() {
			objType = resolver.Directory
		}
		out = append(out, resolver.WildcardMatch{
			Name:       name,
			NativePath: childNative,
			Type:       objType,
			Attrs:      a,
			Length:     info.Size(),
			ModTime:    info.ModTime(),
		})
	}
	return out
}

func formatExamineEntry(format examineFormat, m resolver.WildcardMatch) []byte {
	name := padName(m.Name, 10)
	switch format {
	case examineShortName:
		return []byte(name)
	case examineShortPerms:
		out := []byte(name)
		out = append(out, codec.PermToWire(m.Attrs.Perm, m.Type == resolver.Directory))
		return out
	case examineHumanLine:
		line := name + " "
		return append([]byte(line), 0x0D)
	default: // examinePacked
		out := []byte(name)
		out = append(out,
			byte(m.Attrs.Load), byte(m.Attrs.Load>>8), byte(m.Attrs.Load>>16), byte(m.Attrs.Load>>24),
			byte(m.Attrs.Exec), byte(m.Attrs.Exec>>8), byte(m.Attrs.Exec>>16), byte(m.Attrs.Exec>>24),
			byte(m.Length), byte(m.Length>>8), byte(m.Length>>16),
			codec.PermToWire(m.Attrs.Perm, m.Type == resolver.Directory),
		)
		return out
	}
}

func padName(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// getObjectInfo implements fsop GET-OBJECT-INFO: args are
// select(1) | path…; select chooses which of a small set of fields to
// return.
func (s *Server) getObjectInfo(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing select code")
	}
	sel := req.Args[0]
	path := strings.TrimSpace(string(req.Args[1:]))
	res, err := s.resolvePath(sess, path, req.CurrentHandle, false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type == resolver.NotFound {
		return econet.Error(econet.ErrNotFound, "not found")
	}
	monthYear, day := codec.PackDate(codec.Date{Day: res.ModTime.Day(), Month: int(res.ModTime.Month()), Year: res.ModTime.Year()}, s.SevenBitDates)
	objType := byte(1)
	if res.Type == resolver.Directory {
		objType = 2
	}
	switch sel {
	case 0: // all
		return econet.Success(0x00,
			objType,
			byte(res.Attrs.Load), byte(res.Attrs.Load>>8), byte(res.Attrs.Load>>16), byte(res.Attrs.Load>>24),
			byte(res.Attrs.Exec), byte(res.Attrs.Exec>>8), byte(res.Attrs.Exec>>16), byte(res.Attrs.Exec>>24),
			byte(res.Length), byte(res.Length>>8), byte(res.Length>>16),
			codec.PermToWire(res.Effective, res.Type == resolver.Directory),
			day, monthYear,
		)
	case 1: // load/exec only
		return econet.Success(0x00,
			byte(res.Attrs.Load), byte(res.Attrs.Load>>8), byte(res.Attrs.Load>>16), byte(res.Attrs.Load>>24),
			byte(res.Attrs.Exec), byte(res.Attrs.Exec>>8), byte(res.Attrs.Exec>>16), byte(res.Attrs.Exec>>24),
		)
	case 2: // permission only
		return econet.Success(0x00, codec.PermToWire(res.Effective, res.Type == resolver.Directory))
	case 3: // type only
		return econet.Success(0x00, objType)
	default:
		return econet.Error(econet.ErrBadCommand, "bad select code")
	}
}

// setObjectInfo implements fsop SET-OBJECT-INFO: writes load/exec/perm
// depending on the select code, subject to ownership or system privilege.
func (s *Server) setObjectInfo(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing select code")
	}
	sel := req.Args[0]
	rest := req.Args[1:]

	var load, exec uint32
	var perm byte
	var path string
	switch sel {
	case 1: // load/exec
		if len(rest) < 8 {
			return econet.Error(econet.ErrBadCommand, "missing load/exec")
		}
		load = uint32(rest[0]) | uint32(rest[1])<<8 | uint32(rest[2])<<16 | uint32(rest[3])<<24
		exec = uint32(rest[4]) | uint32(rest[5])<<8 | uint32(rest[6])<<16 | uint32(rest[7])<<24
		path = strings.TrimSpace(string(rest[8:]))
	case 2: // perm
		if len(rest) < 1 {
			return econet.Error(econet.ErrBadCommand, "missing perm")
		}
		perm = rest[0]
		path = strings.TrimSpace(string(rest[1:]))
	default:
		return econet.Error(econet.ErrBadCommand, "bad select code")
	}

	res, err := s.resolvePath(sess, path, req.CurrentHandle, false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type == resolver.NotFound {
		return econet.Error(econet.ErrNotFound, "not found")
	}
	if !sess.Privilege.IsSystem() && res.Attrs.Owner != uint16(sess.UserID) {
		return econet.Error(econet.ErrInsufficientAccess, "not owner")
	}

	a := res.Attrs
	switch sel {
	case 1:
		a.Load, a.Exec = load, exec
	case 2:
		a.Perm = codec.WireToPerm(perm, res.Type == resolver.Directory)
	}
	if err := s.Resolver.Attrs.Write(res.NativePath, a); err != nil {
		return econet.Error(econet.ErrGeneric, "write attrs failed")
	}
	return econet.Success(0x00)
}
