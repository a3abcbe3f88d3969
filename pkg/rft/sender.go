package rft

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// sendWindowEntry is a SendWindowEntry (spec.md §3): the packet pending
// acknowledgement (encoded afresh on each send) and its last send timestamp. Absence from the
// window map stands in for the "acked" flag.
type sendWindowEntry struct {
	packet *Packet
	sentAt time.Time
}

// Sender is the sender core of spec.md §4.4, coupled with the
// RenoController it drives (spec.md §9's "single mutex-protected
// aggregate"). Two goroutines touch its shared state: the caller's
// goroutine running the main step in Send, and the AckReceiverTask
// goroutine started by Send. mu guards window, sendBase, nextSeq, and the
// RenoController in reno; wake stands in for the condition variable
// spec.md §9 asks for, signaled whenever the ACK task changes shared state
// the main loop might act on.
type Sender struct {
	cfg  Config
	sock *socket
	log  *slog.Logger
	reno *RenoController

	mu       sync.Mutex
	window   map[uint32]*sendWindowEntry
	sendBase uint32
	nextSeq  uint32

	wake                 chan struct{}
	transmissionComplete atomic.Bool

	stopAckTask  chan struct{}
	ackTaskDone  chan struct{}
	finAcked     chan struct{}
	finAckedOnce sync.Once

	stats *Stats
}

// NewSender dials remoteAddr (the receiver's address, or a router address
// standing in front of it per spec.md §6) and returns a Sender ready to
// Connect and Send.
func NewSender(remoteAddr string, cfg Config, log *slog.Logger) (*Sender, error) {
	sock, err := dialSocket(remoteAddr)
	if err != nil {
		return nil, err
	}
	return &Sender{
		cfg:         cfg,
		sock:        sock,
		log:         logger(log),
		reno:        NewRenoController(cfg),
		window:      make(map[uint32]*sendWindowEntry),
		sendBase:    1,
		nextSeq:     1,
		wake:        make(chan struct{}, 1),
		stopAckTask: make(chan struct{}),
		ackTaskDone: make(chan struct{}),
		finAcked:    make(chan struct{}),
	}, nil
}

// Close releases the underlying socket.
func (s *Sender) Close() error { return s.sock.close() }

// Connect performs the sender's half of the three-way handshake (spec.md
// §4.2): send SYN, wait for SYN|ACK (with bounded retry, spec.md §9's
// recommended deviation), then send the closing ACK.
func (s *Sender) Connect() error {
	synAck, _, err := retrySendUntil(
		s.sock,
		s.sock.writePacket,
		buildSYN,
		s.cfg.PacketTimeout,
		s.cfg.ControlRetries,
		func(p *Packet) bool { return p.Flags.Has(FlagSYN) && p.Flags.Has(FlagACK) },
	)
	if err != nil {
		return errors.Wrap(err, "syn handshake")
	}

	ack := buildHandshakeACK(synAck.SeqNum)
	if err := s.sock.writePacket(ack); err != nil {
		return errors.Wrap(err, "send handshake ack")
	}
	s.log.Info("connection established", "role", "sender")
	return nil
}

// Send partitions source (totalLen bytes) into MaxDataSize packets, drives
// the sliding-window main step of spec.md §4.4 until the input is exhausted
// and the window drains, then tears the connection down and returns
// transfer statistics.
func (s *Sender) Send(source io.Reader, totalLen int64) (*Stats, error) {
	s.stats = NewStats()
	go s.ackReceiverLoop()

	var sent int64
	buf := make([]byte, s.cfg.MaxDataSize)

	for sent < totalLen || s.windowLen() > 0 {
		s.mu.Lock()
		s.stepLocked(source, buf, &sent, totalLen)
		s.mu.Unlock()
		s.waitBriefly()
	}

	s.transmissionComplete.Store(true)
	err := s.teardown()

	close(s.stopAckTask)
	<-s.ackTaskDone
	s.stats.MarkDone()
	return s.stats, err
}

// stepLocked executes one main-step iteration (spec.md §4.4) with mu held:
// drain the fast-retransmit signal, else scan for timeouts, then admit new
// data up to the effective window.
func (s *Sender) stepLocked(source io.Reader, buf []byte, sent *int64, totalLen int64) {
	fastRetransmitted := false
	if target, ok := s.reno.TakeFastRetransmitTarget(); ok {
		if entry, exists := s.window[target]; exists {
			s.log.Debug("fast retransmit", "seq", target)
			s.retransmitLocked(entry)
			fastRetransmitted = true
		}
	}
	if !fastRetransmitted {
		now := time.Now()
		timedOut := false
		for _, entry := range s.window {
			if now.Sub(entry.sentAt) > s.cfg.PacketTimeout {
				s.log.Debug("timeout retransmit", "seq", entry.packet.SeqNum)
				s.retransmitLocked(entry)
				timedOut = true
			}
		}
		if timedOut {
			s.reno.OnTimeout()
		}
	}

	for len(s.window) < s.reno.EffectiveWindow() && *sent < totalLen {
		chunkSize := int64(len(buf))
		if remaining := totalLen - *sent; remaining < chunkSize {
			chunkSize = remaining
		}
		n, err := io.ReadFull(source, buf[:chunkSize])
		if n == 0 {
			break
		}
		data := append([]byte(nil), buf[:n]...)

		pkt := &Packet{SeqNum: s.nextSeq, WindowSize: uint16(s.cfg.FlowControlWindowSize), Data: data}
		if werr := s.sock.writePacket(pkt); werr == nil {
			s.stats.TotalPacketsSent.Add(1)
			s.stats.BytesTransferred.Add(uint64(n))
		}
		s.log.Debug("sent data packet", "seq", s.nextSeq, "cwnd", s.reno.Cwnd(), "ssthresh", s.reno.SSThresh())

		s.window[s.nextSeq] = &sendWindowEntry{packet: pkt, sentAt: time.Now()}
		s.nextSeq++
		*sent += int64(n)

		if err != nil && err != io.ErrUnexpectedEOF {
			break
		}
	}
}

func (s *Sender) retransmitLocked(e *sendWindowEntry) {
	s.sock.writePacket(e.packet)
	e.sentAt = time.Now()
	s.stats.TotalRetransmissions.Add(1)
}

func (s *Sender) windowLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.window)
}

func (s *Sender) nextSeqSnapshot() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// waitBriefly sleeps ~10ms or until the ACK task signals an event,
// whichever comes first (spec.md §4.4 step 4).
func (s *Sender) waitBriefly() {
	select {
	case <-s.wake:
	case <-time.After(10 * time.Millisecond):
	}
}

func (s *Sender) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// teardown sends FIN (spec.md §4.2, §4.4) and waits for the ACK task to
// observe a FIN-ACK, retrying up to ControlRetries times on
// PacketTimeout — the bounded-retry deviation spec.md §9 recommends in
// place of the reference's fire-and-forget FIN.
func (s *Sender) teardown() error {
	finSeq := s.nextSeqSnapshot()
	for attempt := 0; attempt < s.cfg.ControlRetries; attempt++ {
		if err := s.sock.writePacket(buildFIN(finSeq)); err != nil {
			return errors.Wrap(err, "send fin")
		}
		select {
		case <-s.finAcked:
			s.log.Info("connection closed", "role", "sender")
			return nil
		case <-time.After(s.cfg.PacketTimeout):
		}
	}
	return ErrTeardownTimedOut
}

// ackReceiverLoop is the AckReceiverTask of spec.md §4.6: it reads
// datagrams on the sender's socket, verifies each as an ACK, and feeds
// ack_num to the RenoController and send window under mu. It keeps running
// until Send closes stopAckTask (after teardown finishes), so it is also
// the one to observe the FIN-ACK teardown waits on.
func (s *Sender) ackReceiverLoop() {
	defer close(s.ackTaskDone)

	buf := make([]byte, MaxBufferSize)
	for {
		select {
		case <-s.stopAckTask:
			return
		default:
		}

		s.sock.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := s.sock.conn.Read(buf)
		if err != nil {
			continue // timeout or transient error; loop back to recheck stop signal
		}

		raw := buf[:n]
		if !Verify(raw) {
			continue
		}
		pkt, err := Decode(raw)
		if err != nil || !pkt.Flags.Has(FlagACK) || pkt.Flags.Has(FlagSYN) {
			continue
		}
		s.stats.TotalAcksReceived.Add(1)

		if pkt.Flags.Has(FlagFIN) {
			s.finAckedOnce.Do(func() { close(s.finAcked) })
			continue
		}

		s.mu.Lock()
		if pkt.AckNum >= s.sendBase {
			s.sendBase = pkt.AckNum + 1
			for seq := range s.window {
				if seq <= pkt.AckNum {
					delete(s.window, seq)
				}
			}
			s.reno.OnNewAck()
		} else {
			s.reno.OnDupAck(s.sendBase)
		}
		s.mu.Unlock()
		s.signalWake()
	}
}
