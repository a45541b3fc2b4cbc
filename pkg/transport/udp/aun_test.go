package udp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAUNRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	raw := encodeAUN(0x99, 0x80, 42, payload)

	pkt, err := decodeAUN(raw)
	require.NoError(t, err)
	require.Equal(t, ptypeData, pkt.Type)
	require.Equal(t, byte(0x99), pkt.Port)
	require.Equal(t, byte(0x80), pkt.Control)
	require.Equal(t, uint32(42), pkt.Seq)
	require.Equal(t, payload, pkt.Data)
}

func TestDecodeAUNRejectsShortPacket(t *testing.T) {
	_, err := decodeAUN([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestEncodeAUNEmptyPayload(t *testing.T) {
	raw := encodeAUN(0x99, 0x00, 0, nil)
	require.Len(t, raw, aunHeaderLen)

	pkt, err := decodeAUN(raw)
	require.NoError(t, err)
	require.Empty(t, pkt.Data)
}
