// Package udp implements the Econet-over-UDP ("AUN") datagram transport:
// the send/receive of framed packets to (net, station) endpoints. Grounded
// on the real AUN wire framing used by sai2791/PiEconetBridge's
// utilities/fs.c (the ECONET_AUN_DATA packet type, its
// port/control/sequence header, and its reply_port/net/stn call
// convention).
package udp

import "fmt"

// packetType is AUN's wire packet-type byte.
type packetType byte

const (
	ptypeBroadcast packetType = 1
	ptypeData      packetType = 2
	ptypeImmediate packetType = 3
	ptypeAck       packetType = 4
	ptypeNak       packetType = 5
)

// aunHeaderLen is the fixed 8-byte AUN header: type, port, control, pad,
// and a 4-byte sequence number.
const aunHeaderLen = 8

// commandPort is the well-known Econet fileserver command port (0x99) that
// every station's initial request — login, fsop, OSCLI — is addressed to.
// Bulk-transfer traffic instead targets the ancillary port the server
// negotiated via bulk.Engine.Register.
const commandPort byte = 0x99

// aunPacket is one decoded AUN datagram: header fields plus the
// fileserver-level payload that follows it.
type aunPacket struct {
	Type    packetType
	Port    byte
	Control byte
	Seq     uint32
	Data    []byte
}

// decodeAUN parses an AUN datagram, the inverse of encodeAUN.
func decodeAUN(raw []byte) (aunPacket, error) {
	if len(raw) < aunHeaderLen {
		return aunPacket{}, fmt.Errorf("udp: packet too short for AUN header: %d bytes", len(raw))
	}
	return aunPacket{
		Type:    packetType(raw[0]),
		Port:    raw[1],
		Control: raw[2],
		// raw[3] is pad, unused.
		Seq:  uint32(raw[4]) | uint32(raw[5])<<8 | uint32(raw[6])<<16 | uint32(raw[7])<<24,
		Data: raw[aunHeaderLen:],
	}, nil
}

// encodeAUN frames payload as an AUN data packet addressed to port, echoing
// control and stamping seq.
func encodeAUN(port, control byte, seq uint32, payload []byte) []byte {
	out := make([]byte, aunHeaderLen+len(payload))
	out[0] = byte(ptypeData)
	out[1] = port
	out[2] = control
	out[3] = 0x00
	out[4] = byte(seq)
	out[5] = byte(seq >> 8)
	out[6] = byte(seq >> 16)
	out[7] = byte(seq >> 24)
	copy(out[aunHeaderLen:], payload)
	return out
}
