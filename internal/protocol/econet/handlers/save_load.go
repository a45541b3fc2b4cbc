package handlers

import (
	"os"
	"strconv"
	"strings"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/bulk"
	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// parseHexField parses the first n characters of s as hex, returning the
// value and the rest of s. handleSave applies it to the SAVE argument
// block: load(8 hex) | exec(8 hex) | length(8 hex) | space | filename. The original
// wire format encodes these as ASCII hex, matching the textual OSCLI
// argument convention the rest of the opcode surface shares.
func parseHexField(s string, n int) (uint32, string, bool) {
	if len(s) < n {
		return 0, s, false
	}
	v, err := strconv.ParseUint(s[:n], 16, 32)
	if err != nil {
		return 0, s, false
	}
	return uint32(v), s[n:], true
}

// handleSave implements fsop SAVE: parse load/exec/
// length/filename, open the target with write-truncate semantics, write
// attrs, and register an inbound bulk transfer.
func (s *Server) handleSave(sess *session.Session, req *econet.Request) []byte {
	args := strings.TrimLeft(string(req.Args), " ")
	load, rest, ok := parseHexField(args, 8)
	if !ok {
		return econet.Error(econet.ErrBadCommand, "bad load address")
	}
	exec, rest, ok := parseHexField(rest, 8)
	if !ok {
		return econet.Error(econet.ErrBadCommand, "bad exec address")
	}
	length, rest, ok := parseHexField(rest, 8)
	if !ok {
		return econet.Error(econet.ErrBadCommand, "bad length")
	}
	path := strings.TrimSpace(rest)
	if path == "" {
		return econet.Error(econet.ErrBadCommand, "missing filename")
	}

	res, err := s.resolvePath(sess, path, req.CurrentHandle, false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type == resolver.Directory {
		return econet.Error(econet.ErrTypesDontMatch, "is a directory")
	}

	if err := s.Interlock.Open(res.NativePath, econet.ModeWriteTrunc); err != nil {
		return econet.ErrorReply(err)
	}
	f, openErr := os.OpenFile(res.NativePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if openErr != nil {
		s.Interlock.Close(res.NativePath, econet.ModeWriteTrunc)
		return econet.Error(econet.ErrGeneric, "create failed")
	}

	a := attrs.Attrs{Owner: uint16(sess.UserID), Load: load, Exec: exec, Perm: codec.PermOwnerRead | codec.PermOwnerWrite}
	_ = s.Resolver.Attrs.Write(res.NativePath, a)

	h := &session.Handle{
		Kind:       session.HandleFile,
		Path:       res.NativePath,
		Mode:       econet.ModeWriteTrunc,
		Disc:       res.Disc.Index,
		DottedPath: res.DottedPath,
		File:       f,
	}
	n, allocErr := sess.Handles.Allocate(h)
	if allocErr != nil {
		_ = f.Close()
		s.Interlock.Close(res.NativePath, econet.ModeWriteTrunc)
		return econet.ErrorReply(allocErr)
	}

	monthYear, day := codec.PackDate(codec.Date{Day: nowUTC().Day(), Month: int(nowUTC().Month()), Year: nowUTC().Year()}, s.SevenBitDates)
	ctx := &bulk.Context{
		Direction:  bulk.Inbound,
		Dest:       sess.Station,
		Total:      int64(length),
		ReplyPort:  req.ReplyPort,
		Mode:       econet.ModeWriteTrunc,
		Path:       res.NativePath,
		Perm:       codec.PermToWire(a.Perm, false),
		Day:        day,
		MonthYear:  monthYear,
		OnExpire: func() {
			s.closeHandle(sess, n)
		},
	}
	port, regErr := s.Bulk.Register(ctx, nowUTC())
	if regErr != nil {
		s.closeHandle(sess, n)
		return econet.ErrorReply(regErr)
	}
	return econet.Success(0x00, port, byte(econet.BulkChunkSize), byte(econet.BulkChunkSize>>8))
}

// handleLoad implements fsop LOAD and LOAD-AS-COMMAND:
// resolve (falling back to the library anchor if searchLibrary and not
// found against the current anchor), read the whole file, and register an
// outbound bulk transfer carrying the prologue attributes.
func (s *Server) handleLoad(sess *session.Session, req *econet.Request, searchLibrary bool) []byte {
	path := strings.TrimSpace(string(req.Args))
	res, err := s.resolvePath(sess, path, req.CurrentHandle, false)
	if (err != nil || res.Type != resolver.File) && searchLibrary {
		if libRes, libErr := s.resolvePath(sess, path, req.LibraryHandle, false); libErr == nil && libRes.Type == resolver.File {
			res, err = libRes, nil
		}
	}
	if err != nil {
		return econet.ErrorReply(err)
	}
	if res.Type != resolver.File {
		return econet.ErrorReply(ecerr.New(ecerr.NotFound, "not found"))
	}

	if err := s.Interlock.Open(res.NativePath, econet.ModeRead); err != nil {
		return econet.ErrorReply(err)
	}
	data, readErr := os.ReadFile(res.NativePath)
	s.Interlock.Close(res.NativePath, econet.ModeRead)
	if readErr != nil {
		return econet.Error(econet.ErrGeneric, "read failed")
	}

	ctx := &bulk.Context{
		Direction: bulk.Outbound,
		Dest:      sess.Station,
		Total:     int64(len(data)),
		Data:      data,
		ReplyPort: req.ReplyPort,
	}
	port, regErr := s.Bulk.Register(ctx, nowUTC())
	if regErr != nil {
		return econet.ErrorReply(regErr)
	}
	monthYear, day := codec.PackDate(codec.Date{Day: res.ModTime.Day(), Month: int(res.ModTime.Month()), Year: res.ModTime.Year()}, s.SevenBitDates)
	prologue := []byte{
		byte(res.Attrs.Load), byte(res.Attrs.Load >> 8), byte(res.Attrs.Load >> 16), byte(res.Attrs.Load >> 24),
		byte(res.Attrs.Exec), byte(res.Attrs.Exec >> 8), byte(res.Attrs.Exec >> 16), byte(res.Attrs.Exec >> 24),
		byte(res.Length), byte(res.Length >> 8), byte(res.Length >> 16),
		codec.PermToWire(res.Effective, false), day, monthYear, port,
	}
	return econet.Success(0x00, prologue...)
}

// handleCatHeader implements fsop CAT-HEADER: a short textual directory
// title, used by clients to label a catalogue listing.
func (s *Server) handleCatHeader(sess *session.Session, req *econet.Request) []byte {
	path := strings.TrimSpace(string(req.Args))
	res, err := s.resolvePath(sess, path, req.CurrentHandle, false)
	if err != nil {
		return econet.ErrorReply(err)
	}
	title := lastComponent(res)
	if title == "$" {
		title = res.Disc.Name
	}
	return econet.Success(0x00, []byte(title)...)
}

// DispatchBulk routes an inbound chunk of ancillary-port traffic to its
// bulk context: append the bytes, ack, and — once
// Received == Total — run the SAVE/PUTBYTES completion rule. It is the
// entry point an external datagram transport calls for every datagram
// received on a negotiated data port; it is not reachable from Dispatch
// itself since the envelope's destination port (not its fsop) selects it.
func (s *Server) DispatchBulk(port byte, data []byte) (ack []byte, complete bool) {
	ctx, ok := s.Bulk.Get(port)
	if !ok {
		return nil, false
	}
	done, ok := s.Bulk.Append(port, data, nowUTC())
	if !ok {
		return nil, false
	}
	ackReply := []byte{ctx.Control}
	if !done {
		return ackReply, false
	}

	s.Bulk.Release(port)
	if ctx.UserHandle == 0 {
		// SAVE completion: the target was opened write-truncate, so the
		// whole body is the file's new content.
		if err := os.WriteFile(ctx.Path, ctx.Data, 0o644); err != nil {
			return ackReply, true
		}
		s.Interlock.Close(ctx.Path, econet.ModeWriteTrunc)
		return []byte{ctx.Perm, ctx.Day, ctx.MonthYear}, true
	}
	// PUTBYTES completion: write the transferred bytes at the open
	// handle's cursor and advance it, rather than replacing the file —
	// PUTBYTES extends or overwrites a span of an already-open file, it
	// never truncates the rest of it.
	recv := ctx.Received
	if sess, ok := s.Sessions.Get(ctx.Dest); ok {
		if h := sess.Handles.Get(ctx.UserHandle); h != nil && h.File != nil {
			if _, err := h.File.WriteAt(ctx.Data, h.Cursor); err != nil {
				return ackReply, true
			}
			h.Cursor += int64(len(ctx.Data))
		}
	}
	return []byte{port, byte(recv), byte(recv >> 8), byte(recv >> 16)}, true
}
