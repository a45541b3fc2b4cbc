// Package bulk implements the bulk-transfer engine: the
// ancillary-port table backing SAVE/LOAD/GETBYTES/PUTBYTES, and the
// split-phase state a handler registers before returning control to the
// dispatcher.
package bulk

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet"
)

// Direction distinguishes an inbound transfer (SAVE/PUTBYTES, client ->
// server) from an outbound one (LOAD/GETBYTES, server -> client).
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// Context is one in-flight bulk transfer, keyed by its ancillary port.
type Context struct {
	Port      byte
	Direction Direction
	Dest      econet.Station

	// Total is the expected byte count (inbound) or the requested read
	// count (outbound).
	Total    int64
	Received int64

	ReplyPort byte
	AckPort   byte
	Control   byte

	Mode econet.OpenMode

	// UserHandle is the session handle number the client addressed; zero
	// for a SAVE (no pre-existing handle), nonzero for PUTBYTES.
	UserHandle int

	// Path is the native host path, recorded so OnExpire can identify
	// what to release without the bulk package depending on the resolver
	// or interlock packages.
	Path string

	LastReceipt time.Time

	// CorrelationID ties log lines for this transfer together.
	CorrelationID string

	// Data buffers the transfer payload: accumulated inbound bytes for
	// SAVE/PUTBYTES, or the full outbound body queued for LOAD/GETBYTES
	// (Sent tracks how much of it has already gone out).
	Data []byte
	Sent int64

	// Perm/Day/MonthYear are the completion-reply fields for an inbound
	// SAVE transfer: "{perm, day, month-year}" echoed back
	// on the reply port once Received == Total.
	Perm      byte
	Day       byte
	MonthYear byte

	// OnExpire is invoked by the garbage-collection sweep when this
	// context has been idle past the timeout; it is the handler's
	// opportunity to close the host file, release the interlock entry,
	// and (for a SAVE context) free the user handle slot. OnExpire is never
	// called on normal completion — only Release is, by the handler
	// itself, once it has already done its own cleanup.
	OnExpire func()
}

// reservedPorts are ancillary ports the fileserver never hands out because
// they double as well-known command/reply ports on the wire.
var reservedPorts = map[byte]bool{0x00: true, 0xD1: true, 0xD2: true}

// Engine is the server-wide ancillary-port table.
type Engine struct {
	mu    sync.Mutex
	ports map[byte]*Context
	next  byte

	outboundCh chan *Context
}

// New constructs an empty bulk engine.
func New() *Engine {
	return &Engine{ports: make(map[byte]*Context), next: 1}
}

// NotifyOutbound returns a channel that receives every outbound context
// (LOAD/GETBYTES) as it is registered. A transport uses this to learn when
// to start pumping chunks, since nothing in the dispatcher itself drives an
// outbound transfer once the announce reply has gone out. The channel is
// created lazily and is buffered; a registration is dropped rather than
// blocking Register if the transport isn't keeping up.
func (e *Engine) NotifyOutbound() <-chan *Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outboundCh == nil {
		e.outboundCh = make(chan *Context, 64)
	}
	return e.outboundCh
}

// Register allocates a free ancillary port for ctx and stores it, stamping
// CorrelationID and LastReceipt. Returns ecerr.ChannelExhausted if every
// port (1-255, excluding the reserved set) is in use.
func (e *Engine) Register(ctx *Context, now time.Time) (byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.next
	for i := 0; i < 256; i++ {
		port := start + byte(i)
		if reservedPorts[port] {
			continue
		}
		if _, taken := e.ports[port]; !taken {
			ctx.Port = port
			ctx.CorrelationID = uuid.NewString()
			ctx.LastReceipt = now
			e.ports[port] = ctx
			e.next = port + 1
			if ctx.Direction == Outbound && e.outboundCh != nil {
				select {
				case e.outboundCh <- ctx:
				default:
				}
			}
			return port, nil
		}
	}
	return 0, ecerr.New(ecerr.ChannelExhausted, "no free ancillary ports")
}

// Get returns the context registered at port, if any.
func (e *Engine) Get(port byte) (*Context, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.ports[port]
	return c, ok
}

// Release frees port, whether the transfer completed normally or was
// aborted by its handler.
func (e *Engine) Release(port byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.ports, port)
}

// Touch refreshes a context's last-receipt timestamp and received count,
// returning true once Received reaches Total.
func (e *Engine) Touch(port byte, n int, now time.Time) (done bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, exists := e.ports[port]
	if !exists {
		return false, false
	}
	c.Received += int64(n)
	c.LastReceipt = now
	return c.Received >= c.Total, true
}

// Append accumulates n inbound bytes into the context at port and touches
// its last-receipt timestamp, returning true once Received reaches Total.
func (e *Engine) Append(port byte, data []byte, now time.Time) (done bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, exists := e.ports[port]
	if !exists {
		return false, false
	}
	c.Data = append(c.Data, data...)
	c.Received += int64(len(data))
	c.LastReceipt = now
	return c.Received >= c.Total, true
}

// PopChunk returns the next outbound chunk (at most econet.BulkChunkSize
// bytes) for the context at port, advancing Sent, and reports whether the
// whole payload has now been sent.
func (e *Engine) PopChunk(port byte) (chunk []byte, done bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, exists := e.ports[port]
	if !exists {
		return nil, false, false
	}
	remaining := c.Data[c.Sent:]
	chunk, rest := NextChunk(remaining)
	c.Sent += int64(len(chunk))
	return chunk, len(rest) == 0, true
}

// Sweep removes every context whose last-receipt timestamp is older than
// idle, invoking each one's OnExpire before dropping it. Returns the expired contexts for logging.
func (e *Engine) Sweep(now time.Time, idle time.Duration) []*Context {
	e.mu.Lock()
	var expired []*Context
	for port, c := range e.ports {
		if now.Sub(c.LastReceipt) > idle {
			expired = append(expired, c)
			delete(e.ports, port)
		}
	}
	e.mu.Unlock()

	for _, c := range expired {
		if c.OnExpire != nil {
			c.OnExpire()
		}
	}
	return expired
}

// Len reports how many transfers are currently in flight, for admin
// introspection.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ports)
}

// NextChunk splits data into the next outbound packet (at most
// econet.BulkChunkSize bytes) and the remainder, the streaming rule for
// LOAD/GETBYTES.
func NextChunk(data []byte) (chunk, rest []byte) {
	if len(data) <= econet.BulkChunkSize {
		return data, nil
	}
	return data[:econet.BulkChunkSize], data[econet.BulkChunkSize:]
}

// PadShortRead pads a short final read to want bytes with zero bytes,
// reporting the true count read — the GETBYTES short-read rule.
func PadShortRead(data []byte, want int) (padded []byte, trueCount int) {
	trueCount = len(data)
	if len(data) >= want {
		return data[:want], trueCount
	}
	padded = make([]byte, want)
	copy(padded, data)
	return padded, trueCount
}
