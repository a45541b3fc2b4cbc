package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/econet-fs/efsd/internal/bulk"
	"github.com/econet-fs/efsd/internal/logger"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/pkg/server"
)

// chunkPacing is the delay between successive outbound chunks of a
// LOAD/GETBYTES transfer. Real Econet paces bulk transfers on per-block
// acknowledgement; absent a wire-level ack loop here, a short fixed delay
// keeps a fast server from flooding a slow client's UDP receive buffer.
const chunkPacing = 2 * time.Millisecond

// Config configures a Listener.
type Config struct {
	// ListenAddr is the UDP address to bind, e.g. ":32768" (the well-known
	// Econet fileserver port).
	ListenAddr string

	// NetID is this server's Econet net number, stamped onto every Station
	// resolved from an inbound UDP source address.
	NetID byte
}

// Listener is the AUN (Econet-over-UDP) datagram transport: it binds a UDP
// socket, decodes inbound AUN packets, and feeds their fileserver-level
// payload to a pkg/server.Server, routing replies (including bulk-transfer
// chunks and acks) back to the originating station.
type Listener struct {
	cfg Config
	srv *server.Server

	conn     *net.UDPConn
	stations *stationTable
	seq      uint32

	wg   sync.WaitGroup
	stop chan struct{}
}

// New constructs a Listener bound to cfg, dispatching through srv.
func New(cfg Config, srv *server.Server) *Listener {
	return &Listener{
		cfg:      cfg,
		srv:      srv,
		stations: newStationTable(cfg.NetID),
		stop:     make(chan struct{}),
	}
}

// Start binds the UDP socket and runs the read and outbound-pump loops
// until ctx is cancelled, then closes the socket and waits for both loops
// to exit.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("udp: resolve listen address %q: %w", l.cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("udp: listen on %q: %w", l.cfg.ListenAddr, err)
	}
	l.conn = conn

	logger.Info("udp transport listening", "addr", conn.LocalAddr())

	l.wg.Add(2)
	go l.readLoop()
	go l.pumpOutbound()

	<-ctx.Done()
	return l.Stop()
}

// Stop closes the socket and waits for the read and outbound-pump loops to
// exit. Safe to call once; a second call is a no-op beyond the channel
// close panic guard below.
func (l *Listener) Stop() error {
	select {
	case <-l.stop:
		return nil
	default:
		close(l.stop)
	}
	var err error
	if l.conn != nil {
		err = l.conn.Close()
	}
	l.wg.Wait()
	return err
}

func (l *Listener) readLoop() {
	defer l.wg.Done()
	buf := make([]byte, 65507)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
				logger.Error("udp: read failed", "error", err)
				return
			}
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		go l.handlePacket(raw, addr)
	}
}

func (l *Listener) handlePacket(raw []byte, addr *net.UDPAddr) {
	pkt, err := decodeAUN(raw)
	if err != nil {
		logger.Debug("udp: dropping malformed packet", "addr", addr, "error", err)
		return
	}
	station := l.stations.stationFor(addr)

	if pkt.Port == commandPort {
		l.handleCommand(station, pkt)
		return
	}
	l.handleBulk(station, pkt)
}

// handleCommand feeds a command-port datagram to the dispatcher and sends
// the reply back to the request's declared reply port.
func (l *Listener) handleCommand(station econet.Station, pkt aunPacket) {
	reply := l.srv.DispatchTimed(station, pkt.Data)
	if len(reply) == 0 {
		return
	}
	req, err := econet.ParseRequest(station, pkt.Data)
	if err != nil {
		return
	}
	l.send(station, req.ReplyPort, pkt.Control, reply)
}

// handleBulk feeds an ancillary-port datagram to an inbound (SAVE/PUTBYTES)
// bulk transfer. The ack goes to the context's ack port while the transfer
// is still in progress, and to its reply port once DispatchBulk reports
// completion.
func (l *Listener) handleBulk(station econet.Station, pkt aunPacket) {
	ctx, ok := l.srv.Dispatch.Bulk.Get(pkt.Port)
	if !ok {
		logger.Debug("udp: bulk datagram for unknown port", logger.Port(int(pkt.Port)))
		return
	}
	ack, complete := l.srv.Dispatch.DispatchBulk(pkt.Port, pkt.Data)
	if len(ack) == 0 {
		return
	}
	if complete {
		l.send(station, ctx.ReplyPort, pkt.Control, ack)
		return
	}
	l.send(station, ctx.AckPort, pkt.Control, ack)
}

// pumpOutbound drives every outbound (LOAD/GETBYTES) bulk context to
// completion. The dispatcher registers the context and replies with its
// ancillary port and chunk size but never calls bulk.Engine.PopChunk
// itself — only the transport can put the chunks on the wire, so it
// subscribes to new outbound registrations and pumps each one.
func (l *Listener) pumpOutbound() {
	defer l.wg.Done()
	ch := l.srv.Dispatch.Bulk.NotifyOutbound()
	for {
		select {
		case <-l.stop:
			return
		case ctx := <-ch:
			go l.pump(ctx)
		}
	}
}

func (l *Listener) pump(ctx *bulk.Context) {
	for {
		chunk, done, ok := l.srv.Dispatch.Bulk.PopChunk(ctx.Port)
		if !ok {
			return
		}
		l.send(ctx.Dest, ctx.Port, ctx.Control, chunk)
		if done {
			l.srv.Dispatch.Bulk.Release(ctx.Port)
			l.send(ctx.Dest, ctx.ReplyPort, ctx.Control, []byte{ctx.Port})
			return
		}
		select {
		case <-l.stop:
			return
		case <-time.After(chunkPacing):
		}
	}
}

func (l *Listener) send(station econet.Station, port, control byte, payload []byte) {
	addr, ok := l.stations.addrFor(station)
	if !ok {
		logger.Debug("udp: no known address for station", "station", station)
		return
	}
	seq := atomic.AddUint32(&l.seq, 1)
	if _, err := l.conn.WriteToUDP(encodeAUN(port, control, seq, payload), addr); err != nil {
		logger.Error("udp: write failed", "addr", addr, "error", err)
	}
}
