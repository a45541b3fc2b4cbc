package metrics

import "time"

// DispatchMetrics provides observability for the request dispatcher and
// the components it drives. Implementations may collect opcode counters,
// interlock contention, and bulk-transfer throughput. Pass nil to disable
// collection with zero overhead.
type DispatchMetrics interface {
	// RecordRequest records one completed Dispatch call.
	//
	// Parameters:
	//   - fsop: the request's fsop byte as "0x%02X", or "unknown" if the
	//     request did not parse
	//   - duration: time taken to produce the reply
	//   - errorCode: when the reply's first byte is 0x00, its second byte as
	//     "0x%02X" (the wire error code, or "0x00" for a success reply);
	//     "none" otherwise
	RecordRequest(fsop string, duration time.Duration, errorCode string)

	// SetActiveSessions updates the current logged-on station count.
	SetActiveSessions(count int)

	// RecordInterlockContention records an Open call rejected because the
	// path was already locked against the requested mode.
	RecordInterlockContention(mode string)

	// RecordBulkBytes records bytes moved through the ancillary-port
	// engine for SAVE/LOAD/GETBYTES/PUTBYTES.
	//
	// Parameters:
	//   - direction: "inbound" or "outbound"
	//   - bytes: bytes transferred in this call
	RecordBulkBytes(direction string, bytes int64)

	// RecordBulkReclaim records a bulk context the garbage-collection
	// sweep expired for inactivity.
	RecordBulkReclaim()
}
