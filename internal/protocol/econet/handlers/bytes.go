package handlers

import (
	"io"

	"github.com/econet-fs/efsd/internal/bulk"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/session"
)

func fileHandle(sess *session.Session, n byte) (*session.Handle, []byte) {
	h := sess.Handles.Get(int(n))
	if h == nil || h.Kind != session.HandleFile {
		return nil, econet.Error(econet.ErrChannel, "bad handle")
	}
	return h, nil
}

// handleGetByte implements fsop GETBYTE: a single-byte read
// at the handle's cursor, reporting EOF state in the status byte and
// erroring on a second past-EOF attempt.
func (s *Server) handleGetByte(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing handle")
	}
	h, errReply := fileHandle(sess, req.Args[0])
	if errReply != nil {
		return errReply
	}
	if h.PastEOF {
		return econet.Error(econet.ErrEOF, "past end of file")
	}

	buf := make([]byte, 1)
	n, err := h.File.ReadAt(buf, h.Cursor)
	if n == 1 {
		h.Cursor++
		info, statErr := h.File.Stat()
		atEOF := statErr == nil && h.Cursor >= info.Size()
		status := byte(0x00)
		if atEOF {
			status = 0x80
		}
		return econet.Success(0x00, buf[0], status)
	}
	if err == io.EOF || n == 0 {
		h.PastEOF = true
		return econet.Success(0x00, 0xFE, 0xC0)
	}
	return econet.Error(econet.ErrGeneric, "read failed")
}

// handlePutByte implements fsop PUTBYTE: a single-byte write at the
// handle's cursor. Duplicate requests (low control bit equal to the
// handle's stored sequence bit) are silently acknowledged without
// re-writing, implementing the retransmission-detection rule.
func (s *Server) handlePutByte(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 2 {
		return econet.Error(econet.ErrBadCommand, "missing args")
	}
	h, errReply := fileHandle(sess, req.Args[0])
	if errReply != nil {
		return errReply
	}
	control := req.Args[1]
	bit := control & 0x01
	data := byte(0)
	if len(req.Args) > 2 {
		data = req.Args[2]
	}
	if bit == h.SequenceBit {
		return econet.Success(0x00)
	}
	if _, err := h.File.WriteAt([]byte{data}, h.Cursor); err != nil {
		return econet.Error(econet.ErrGeneric, "write failed")
	}
	h.Cursor++
	h.SequenceBit = bit
	return econet.Success(0x00)
}

// handleGetBytes implements fsop GETBYTES: args are
// handle(1) | reply_port(1) | ack_port(1) | count(3, LE) |
// offset_from_current(1) | offset(2, LE). It reads the requested span
// immediately and registers an outbound bulk context holding it; the
// transport sends that data over the ancillary port.
func (s *Server) handleGetBytes(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 9 {
		return econet.Error(econet.ErrBadCommand, "missing args")
	}
	n := req.Args[0]
	replyPort := req.Args[1]
	ackPort := req.Args[2]
	count := int64(req.Args[3]) | int64(req.Args[4])<<8 | int64(req.Args[5])<<16
	fromCurrent := req.Args[6] != 0
	offset := int64(req.Args[7]) | int64(req.Args[8])<<8

	h, errReply := fileHandle(sess, n)
	if errReply != nil {
		return errReply
	}
	start := offset
	if fromCurrent {
		start = h.Cursor
	}
	buf := make([]byte, count)
	read, _ := h.File.ReadAt(buf, start)
	padded, _ := bulk.PadShortRead(buf[:read], int(count))
	h.Cursor = start + int64(read)

	ctx := &bulk.Context{
		Direction:  bulk.Outbound,
		Dest:       sess.Station,
		Total:      int64(len(padded)),
		Data:       padded,
		ReplyPort:  replyPort,
		AckPort:    ackPort,
		Mode:       h.Mode,
		UserHandle: int(n),
		Path:       h.Path,
	}
	port, err := s.Bulk.Register(ctx, nowUTC())
	if err != nil {
		return econet.ErrorReply(err)
	}
	return econet.Success(0x00, port, byte(econet.BulkChunkSize), byte(econet.BulkChunkSize>>8))
}

// handlePutBytes implements fsop PUTBYTES: the inbound counterpart of
// GETBYTES. It registers a bulk context for the ancillary-port transport to
// feed via Engine.Append; on completion (driven by the transport calling
// DispatchBulk in save_load.go) the received bytes are written at the
// handle's cursor.
func (s *Server) handlePutBytes(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 9 {
		return econet.Error(econet.ErrBadCommand, "missing args")
	}
	n := req.Args[0]
	replyPort := req.Args[1]
	ackPort := req.Args[2]
	count := int64(req.Args[3]) | int64(req.Args[4])<<8 | int64(req.Args[5])<<16

	h, errReply := fileHandle(sess, n)
	if errReply != nil {
		return errReply
	}

	ctx := &bulk.Context{
		Direction:  bulk.Inbound,
		Dest:       sess.Station,
		Total:      count,
		ReplyPort:  replyPort,
		AckPort:    ackPort,
		Mode:       h.Mode,
		UserHandle: int(n),
		Path:       h.Path,
	}
	port, err := s.Bulk.Register(ctx, nowUTC())
	if err != nil {
		return econet.ErrorReply(err)
	}
	return econet.Success(0x00, port, byte(econet.BulkChunkSize), byte(econet.BulkChunkSize>>8))
}

// handleGetRandomAccess implements fsop GET-RAI: function 0 returns the
// cursor, 1 the file extent (length), 2 the allocation size (treated as the
// extent on a plain filesystem).
func (s *Server) handleGetRandomAccess(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 2 {
		return econet.Error(econet.ErrBadCommand, "missing args")
	}
	h, errReply := fileHandle(sess, req.Args[0])
	if errReply != nil {
		return errReply
	}
	fn := req.Args[1]
	var v int64
	switch fn {
	case 0:
		v = h.Cursor
	case 1, 2:
		info, err := h.File.Stat()
		if err != nil {
			return econet.Error(econet.ErrGeneric, "stat failed")
		}
		v = info.Size()
	default:
		return econet.Error(econet.ErrBadCommand, "bad function")
	}
	return econet.Success(0x00, byte(v), byte(v>>8), byte(v>>16))
}

// handleSetRandomAccess implements fsop SET-RAI: function 0 sets the
// cursor; function 1 extends (zero-padding) or truncates the file to the
// given extent.
func (s *Server) handleSetRandomAccess(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 5 {
		return econet.Error(econet.ErrBadCommand, "missing args")
	}
	h, errReply := fileHandle(sess, req.Args[0])
	if errReply != nil {
		return errReply
	}
	fn := req.Args[1]
	v := int64(req.Args[2]) | int64(req.Args[3])<<8 | int64(req.Args[4])<<16
	switch fn {
	case 0:
		h.Cursor = v
	case 1:
		if err := h.File.Truncate(v); err != nil {
			return econet.Error(econet.ErrGeneric, "truncate failed")
		}
	default:
		return econet.Error(econet.ErrBadCommand, "bad function")
	}
	return econet.Success(0x00)
}

// handleEOF implements fsop EOF: reports whether handle n's cursor is at or
// past the file's length.
func (s *Server) handleEOF(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing handle")
	}
	h, errReply := fileHandle(sess, req.Args[0])
	if errReply != nil {
		return errReply
	}
	info, err := h.File.Stat()
	if err != nil {
		return econet.Error(econet.ErrGeneric, "stat failed")
	}
	atEOF := byte(0)
	if h.Cursor >= info.Size() {
		atEOF = 0xFF
	}
	return econet.Success(0x00, atEOF)
}
