package udp

import (
	"net"
	"sync"

	"github.com/econet-fs/efsd/internal/protocol/econet"
)

// stationTable maps UDP source addresses to Econet (net, station) pairs and
// back. Real AUN bridges keep a configured IP<->station mapping; absent one
// here, a station is assigned the configured Net and a Stn equal to the
// source address's last IPv4 octet the first time it is seen, then reused
// for the lifetime of the process.
type stationTable struct {
	net byte

	mu      sync.Mutex
	byAddr  map[string]econet.Station
	byStn   map[byte]*net.UDPAddr
}

func newStationTable(netID byte) *stationTable {
	return &stationTable{
		net:    netID,
		byAddr: make(map[string]econet.Station),
		byStn:  make(map[byte]*net.UDPAddr),
	}
}

// stationFor resolves addr to a Station, assigning one on first contact.
func (t *stationTable) stationFor(addr *net.UDPAddr) econet.Station {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := addr.String()
	if st, ok := t.byAddr[key]; ok {
		return st
	}

	ip4 := addr.IP.To4()
	var stn byte
	if ip4 != nil {
		stn = ip4[3]
	}
	st := econet.Station{Net: t.net, Stn: stn}
	t.byAddr[key] = st
	t.byStn[stn] = addr
	return st
}

// addrFor returns the last-seen UDP address for station, if any.
func (t *stationTable) addrFor(st econet.Station) (*net.UDPAddr, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.byStn[st.Stn]
	return addr, ok
}
