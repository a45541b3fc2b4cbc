package econet

import "fmt"

// Request is a decoded inbound fileserver datagram payload:
// reply_port(1) | fsop(1) | root_handle(1) | current_handle(1) |
// library_handle(1) | arg-bytes….
type Request struct {
	Station Station
	ReplyPort     byte
	Fsop          Opcode
	RootHandle    byte
	CurrentHandle byte
	LibraryHandle byte
	Args          []byte
}

// ParseRequest decodes payload received from station. The envelope
// (type/port/control/sequence) is assumed already stripped by the
// transport; payload is the fileserver-level body only.
func ParseRequest(station Station, payload []byte) (*Request, error) {
	if len(payload) < 5 {
		return nil, fmt.Errorf("request too short: %d bytes", len(payload))
	}
	return &Request{
		Station:       station,
		ReplyPort:     payload[0],
		Fsop:          Opcode(payload[1]),
		RootHandle:    payload[2],
		CurrentHandle: payload[3],
		LibraryHandle: payload[4],
		Args:          payload[5:],
	}, nil
}
