package rft

import (
	"net"
	"testing"
	"time"
)

func newTestSenderPair(t *testing.T) (*Sender, *net.UDPConn) {
	t.Helper()
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { serverConn.Close() })

	s, err := NewSender(serverConn.LocalAddr().String(), testConfig(), nil)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, serverConn
}

func TestSenderConnectHandshake(t *testing.T) {
	s, serverConn := newTestSenderPair(t)

	connectErr := make(chan error, 1)
	go func() { connectErr <- s.Connect() }()

	buf := make([]byte, MaxBufferSize)
	serverConn.SetReadDeadline(time.Now().Add(time.Second))
	n, clientAddr, err := serverConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read syn: %v", err)
	}
	syn, err := Decode(buf[:n])
	if err != nil || !syn.Flags.Has(FlagSYN) {
		t.Fatalf("expected SYN, got %+v err=%v", syn, err)
	}

	synAck := buildSYNACK(syn.SeqNum)
	if _, err := serverConn.WriteToUDP(synAck.Encode(), clientAddr); err != nil {
		t.Fatalf("write syn-ack: %v", err)
	}

	select {
	case err := <-connectErr:
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return")
	}

	n, _, err = serverConn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read closing ack: %v", err)
	}
	ack, err := Decode(buf[:n])
	if err != nil || !ack.Flags.Has(FlagACK) || ack.Flags.Has(FlagSYN) {
		t.Fatalf("expected closing ACK, got %+v err=%v", ack, err)
	}
}

func TestSenderWindowAdmissionRespectsEffectiveWindow(t *testing.T) {
	cfg := testConfig()
	s := &Sender{
		cfg:    cfg,
		log:    logger(nil),
		reno:   NewRenoController(cfg),
		window: make(map[uint32]*sendWindowEntry),
		wake:   make(chan struct{}, 1),
	}
	s.sendBase = 1
	s.nextSeq = 1
	s.stats = NewStats()
	s.reno.cwnd = 3.0 // slow start, effective window caps admission at 3

	sock, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer sock.Close()
	s.sock = &socket{conn: sock}

	data := make([]byte, 4000) // enough for many packets
	src := &staticReader{data: data}

	buf := make([]byte, s.cfg.MaxDataSize)
	var sent int64
	s.mu.Lock()
	s.stepLocked(src, buf, &sent, int64(len(data)))
	s.mu.Unlock()

	if len(s.window) != 3 {
		t.Fatalf("admitted %d packets, want 3 (effective window cap)", len(s.window))
	}
}

type staticReader struct {
	data []byte
	off  int
}

func (r *staticReader) Read(p []byte) (int, error) {
	n := copy(p, r.data[r.off:])
	r.off += n
	if n == 0 {
		return 0, nil
	}
	return n, nil
}

func TestSenderFastRetransmitTakesPrecedenceOverTimeoutScan(t *testing.T) {
	cfg := testConfig()
	cfg.PacketTimeout = time.Millisecond // force every window entry to look timed out
	s := &Sender{
		cfg:    cfg,
		log:    logger(nil),
		reno:   NewRenoController(cfg),
		window: make(map[uint32]*sendWindowEntry),
		wake:   make(chan struct{}, 1),
	}
	s.stats = NewStats()
	s.reno.fastRetransmitTarget = 1
	s.window[1] = &sendWindowEntry{packet: &Packet{SeqNum: 1}, sentAt: time.Now().Add(-time.Hour)}
	s.window[2] = &sendWindowEntry{packet: &Packet{SeqNum: 2}, sentAt: time.Now().Add(-time.Hour)}

	sock, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer sock.Close()
	s.sock = &socket{conn: sock}

	buf := make([]byte, s.cfg.MaxDataSize)
	var sent int64
	s.mu.Lock()
	s.stepLocked(&staticReader{}, buf, &sent, 0)
	s.mu.Unlock()

	// Only the fast-retransmit target should have been retransmitted; the
	// timeout scan for the rest of the window happens on a later step.
	if got := s.stats.TotalRetransmissions.Load(); got != 1 {
		t.Fatalf("TotalRetransmissions = %d, want 1", got)
	}
	if s.reno.State() != SlowStart {
		t.Fatalf("state = %v, want unchanged (OnTimeout must not fire when draining a fast retransmit)", s.reno.State())
	}
}
