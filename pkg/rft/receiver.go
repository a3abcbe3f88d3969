package rft

import (
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Receiver is the receiver core of spec.md §4.3, grounded on
// cn_lab2/server/server.cpp: a single UDP socket serving exactly one
// connection at a time, an expected-sequence-number cursor, and a
// selective receive buffer holding only sequence numbers greater than
// expectedSeq (the receive-buffer invariant of spec.md §3). Unlike Sender,
// Receiver has no concurrent ACK task: the ingest loop reads, delivers, and
// ACKs synchronously, one datagram at a time, exactly like the reference's
// single-threaded server main loop.
type Receiver struct {
	cfg   Config
	sock  *socket
	log   *slog.Logger
	stats *Stats

	peer        *net.UDPAddr
	expectedSeq uint32
	buffer      map[uint32]*Packet
}

// NewReceiver binds listenAddr and returns a Receiver ready to Accept a
// connection.
func NewReceiver(listenAddr string, cfg Config, log *slog.Logger) (*Receiver, error) {
	sock, err := listenSocket(listenAddr)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		cfg:         cfg,
		sock:        sock,
		log:         logger(log),
		expectedSeq: 1,
		buffer:      make(map[uint32]*Packet),
	}, nil
}

// Close releases the underlying socket.
func (r *Receiver) Close() error { return r.sock.close() }

// LocalAddr returns the bound address, useful when listenAddr used an
// ephemeral port.
func (r *Receiver) LocalAddr() net.Addr { return r.sock.localAddr() }

// Accept performs the receiver's half of the three-way handshake (spec.md
// §4.2): wait for SYN, reply with SYN|ACK under bounded retry, and accept
// the client's closing ACK. It blocks until a SYN arrives.
func (r *Receiver) Accept() error {
	synPkt, addr, err := r.waitForSYN()
	if err != nil {
		return errors.Wrap(err, "wait for syn")
	}
	r.peer = addr
	r.expectedSeq = 1
	r.buffer = make(map[uint32]*Packet)

	_, _, err = retrySendUntil(
		r.sock,
		func(p *Packet) error { return r.sock.writePacketTo(p, r.peer) },
		func() *Packet { return buildSYNACK(synPkt.SeqNum) },
		r.cfg.PacketTimeout,
		r.cfg.ControlRetries,
		func(p *Packet) bool { return p.Flags.Has(FlagACK) && !p.Flags.Has(FlagSYN) && !p.Flags.Has(FlagFIN) },
	)
	if err != nil {
		return errors.Wrap(err, "syn-ack handshake")
	}
	r.log.Info("connection established", "role", "receiver", "peer", r.peer.String())
	return nil
}

// waitForSYN blocks on the listening socket until a bare SYN arrives from
// some client, ignoring anything malformed, checksum-invalid, or not a SYN.
func (r *Receiver) waitForSYN() (*Packet, *net.UDPAddr, error) {
	r.sock.conn.SetReadDeadline(time.Time{})
	buf := make([]byte, MaxBufferSize)
	for {
		n, addr, err := r.sock.readRaw(buf)
		if err != nil {
			return nil, nil, err
		}
		raw := buf[:n]
		if !Verify(raw) {
			continue
		}
		pkt, err := Decode(raw)
		if err != nil {
			continue
		}
		if pkt.Flags.Has(FlagSYN) && !pkt.Flags.Has(FlagACK) {
			return pkt, addr, nil
		}
	}
}

// Receive runs the ingest loop of spec.md §4.3 until the connection's FIN
// arrives, writing delivered bytes to sink in order. It returns transfer
// statistics once the four-way teardown completes.
func (r *Receiver) Receive(sink io.Writer) (*Stats, error) {
	r.stats = NewStats()
	r.sock.conn.SetReadDeadline(time.Time{})
	buf := make([]byte, MaxBufferSize)

	for {
		n, addr, err := r.sock.readRaw(buf)
		if err != nil {
			return r.stats, errors.Wrap(err, "read datagram")
		}
		if r.peer != nil && (!addr.IP.Equal(r.peer.IP) || addr.Port != r.peer.Port) {
			continue // stray traffic, not our connected peer
		}

		raw := buf[:n]
		if !Verify(raw) {
			r.log.Debug("dropped corrupt packet")
			continue
		}
		pkt, err := Decode(raw)
		if err != nil {
			continue
		}

		if pkt.Flags.Has(FlagFIN) {
			r.stats.MarkDone()
			return r.stats, r.handleTeardown(pkt)
		}

		r.deliver(pkt, sink)
	}
}

// deliver implements spec.md §4.3's delivery rule: an in-order packet is
// written through immediately and drains any now-contiguous buffered
// packets behind it; a packet ahead of expectedSeq is buffered once
// (out-of-order); a packet behind it is a duplicate and only re-ACKed.
// Every branch ends by sending a cumulative ACK for expectedSeq-1.
func (r *Receiver) deliver(pkt *Packet, sink io.Writer) {
	switch {
	case pkt.SeqNum == r.expectedSeq:
		r.writeThrough(pkt, sink)
		r.expectedSeq++
		for {
			buffered, ok := r.buffer[r.expectedSeq]
			if !ok {
				break
			}
			delete(r.buffer, r.expectedSeq)
			r.writeThrough(buffered, sink)
			r.expectedSeq++
		}
	case pkt.SeqNum > r.expectedSeq:
		if _, exists := r.buffer[pkt.SeqNum]; !exists {
			r.buffer[pkt.SeqNum] = pkt
			r.stats.OutOfOrderPackets.Add(1)
			r.log.Debug("buffered out-of-order packet", "seq", pkt.SeqNum, "expected", r.expectedSeq)
		}
	default:
		r.log.Debug("dropped duplicate packet", "seq", pkt.SeqNum, "expected", r.expectedSeq)
	}

	ack := buildDataACK(r.expectedSeq - 1)
	r.sock.writePacketTo(ack, r.peer)
	r.stats.TotalAcksReceived.Add(1)
}

func (r *Receiver) writeThrough(pkt *Packet, sink io.Writer) {
	sink.Write(pkt.Data)
	r.stats.BytesTransferred.Add(uint64(len(pkt.Data)))
}

// handleTeardown implements the receiver's half of the four-way teardown
// (spec.md §4.2): reply FIN|ACK, then wait briefly in case the sender never
// saw it and retransmitted its FIN, resending FIN|ACK each time up to
// ControlRetries — the same bounded-retry deviation the sender applies to
// its own FIN.
func (r *Receiver) handleTeardown(finPkt *Packet) error {
	for attempt := 0; attempt < r.cfg.ControlRetries; attempt++ {
		if err := r.sock.writePacketTo(buildFINACK(finPkt.SeqNum), r.peer); err != nil {
			return errors.Wrap(err, "send fin-ack")
		}
		next, _, err := controlWait(r.sock, r.cfg.PacketTimeout, func(p *Packet) bool { return p.Flags.Has(FlagFIN) })
		if err != nil {
			r.log.Info("connection closed", "role", "receiver")
			return nil
		}
		finPkt = next
	}
	r.log.Info("connection closed", "role", "receiver", "note", "retries exhausted")
	return nil
}
