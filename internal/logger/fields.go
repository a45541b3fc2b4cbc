package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the fileserver.
// Use these keys consistently across all log statements so that log
// aggregation and querying stays stable regardless of which package
// emits the line.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlation ID for a single request's log lines
	KeySpanID  = "span_id"  // sub-operation ID within a request

	// ========================================================================
	// Protocol & Request
	// ========================================================================
	KeyOpcode    = "opcode"     // fsop byte (econet.Opcode)
	KeyOSCLI     = "oscli"      // OSCLI command verb, when Fsop is OpOSCLI
	KeyStation   = "station"    // network.station pair the request came from
	KeyHandle    = "handle"     // open-file/directory handle number
	KeyErrCode   = "err_code"   // wire error code (econet.ErrCode) returned
	KeyErrMsg    = "err_msg"    // wire error message text returned

	// ========================================================================
	// Filesystem Operations
	// ========================================================================
	KeyPath       = "path"        // full dotted econet pathname
	KeyNativePath = "native_path" // resolved host filesystem path
	KeyFilename   = "filename"    // leaf name (basename)
	KeyOldPath    = "old_path"    // source path for RENAME
	KeyNewPath    = "new_path"    // destination path for RENAME/LINK
	KeySize       = "size"        // file size in bytes
	KeyPerm       = "perm"        // access byte (owner/public read/write/locked)

	// ========================================================================
	// I/O & Bulk Transfer
	// ========================================================================
	KeyOffset  = "offset"   // cursor offset for random access or PUTBYTES
	KeyCount   = "count"    // byte count requested
	KeySent    = "sent"     // bytes sent so far in a bulk transfer
	KeyTotal   = "total"    // total bytes expected in a bulk transfer
	KeyPort    = "port"     // ancillary bulk-transfer port number

	// ========================================================================
	// Session, User & Disc
	// ========================================================================
	KeyUsername  = "username"   // logged-in user name
	KeyDisc      = "disc"       // disc name a path or handle resolves against
	KeyDiscIndex = "disc_index" // disc index (0-based) within Discs
	KeySessionID = "session_id" // internal session identifier

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // Go error string
	KeySource     = "source"      // attrs backend: xattr, badger

	// ========================================================================
	// Interlock
	// ========================================================================
	KeyLockMode = "lock_mode" // requested open mode: read, write, write-trunc
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for a request correlation ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for a sub-operation ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Opcode returns a slog.Attr for the fsop byte of a request.
func Opcode(op int) slog.Attr {
	return slog.Int(KeyOpcode, op)
}

// OSCLIVerb returns a slog.Attr for an OSCLI command verb.
func OSCLIVerb(verb string) slog.Attr {
	return slog.String(KeyOSCLI, verb)
}

// Station returns a slog.Attr for a network.station pair, formatted
// "net.stn".
func Station(net, stn int) slog.Attr {
	return slog.String(KeyStation, fmt.Sprintf("%d.%d", net, stn))
}

// Handle returns a slog.Attr for an open handle number.
func Handle(h int) slog.Attr {
	return slog.Int(KeyHandle, h)
}

// ErrCode returns a slog.Attr for the wire error code in a reply.
func ErrCode(code int) slog.Attr {
	return slog.Int(KeyErrCode, code)
}

// ErrMsg returns a slog.Attr for the wire error message text.
func ErrMsg(msg string) slog.Attr {
	return slog.String(KeyErrMsg, msg)
}

// Path returns a slog.Attr for a dotted econet pathname.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// NativePath returns a slog.Attr for a resolved host filesystem path.
func NativePath(p string) slog.Attr {
	return slog.String(KeyNativePath, p)
}

// Filename returns a slog.Attr for a leaf name.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// OldPath returns a slog.Attr for a RENAME source path.
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for a RENAME/LINK destination path.
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// Size returns a slog.Attr for a file size in bytes.
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Perm returns a slog.Attr for an access byte.
func Perm(p int) slog.Attr {
	return slog.Int(KeyPerm, p)
}

// Offset returns a slog.Attr for a cursor offset.
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// Count returns a slog.Attr for a requested byte count.
func Count(c int) slog.Attr {
	return slog.Int(KeyCount, c)
}

// Sent returns a slog.Attr for bytes sent so far in a bulk transfer.
func Sent(n int) slog.Attr {
	return slog.Int(KeySent, n)
}

// Total returns a slog.Attr for the total bytes expected in a bulk transfer.
func Total(n int) slog.Attr {
	return slog.Int(KeyTotal, n)
}

// Port returns a slog.Attr for an ancillary bulk-transfer port.
func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}

// Username returns a slog.Attr for a logged-in user name.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Disc returns a slog.Attr for a disc name.
func Disc(name string) slog.Attr {
	return slog.String(KeyDisc, name)
}

// DiscIndex returns a slog.Attr for a disc's index within Discs.
func DiscIndex(i int) slog.Attr {
	return slog.Int(KeyDiscIndex, i)
}

// SessionID returns a slog.Attr for an internal session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for a Go error, or a no-op attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Source returns a slog.Attr for the attrs backend serving a request.
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// LockMode returns a slog.Attr for a requested interlock open mode.
func LockMode(mode string) slog.Attr {
	return slog.String(KeyLockMode, mode)
}
