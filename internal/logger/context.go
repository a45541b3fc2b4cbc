package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context: the station, opcode,
// and logged-in user a Dispatch call is acting on.
type LogContext struct {
	TraceID   string    // correlation ID for this request's log lines
	SpanID    string    // sub-operation ID within the request
	Opcode    string    // fsop name (SAVE, LOAD, OSCLI verb, etc.)
	Disc      string    // disc a path or handle resolves against
	Station   string    // "net.stn" the request came from
	Username  string    // logged-in user, once authenticated
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a request from the given station.
func NewLogContext(station string) *LogContext {
	return &LogContext{
		Station:   station,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Opcode:    lc.Opcode,
		Disc:      lc.Disc,
		Station:   lc.Station,
		Username:  lc.Username,
		StartTime: lc.StartTime,
	}
}

// WithOpcode returns a copy with the opcode name set
func (lc *LogContext) WithOpcode(opcode string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Opcode = opcode
	}
	return clone
}

// WithDisc returns a copy with the disc set
func (lc *LogContext) WithDisc(disc string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Disc = disc
	}
	return clone
}

// WithUsername returns a copy with the logged-in user set
func (lc *LogContext) WithUsername(username string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Username = username
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
