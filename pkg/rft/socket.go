package rft

import "net"

// socket is the thin UDP transport both Sender and Receiver ride on,
// grounded on kasader-rudp/rudp/rudp.go's Socket: a single *net.UDPConn plus
// helpers for reading and writing whole packets. Session/connection
// demultiplexing lives one level up, since spec.md's Sender and Receiver
// each own exactly one peer connection rather than a socket-wide session
// table.
type socket struct {
	conn *net.UDPConn

	// testPacketSendHook, when non-nil, is consulted before every outgoing
	// packet; returning false drops it instead of writing to the wire. It
	// exists only for deterministic loss injection in tests, grounded on
	// kasader-rudp/rudp/frag_test.go's identically-named seam.
	testPacketSendHook func(*Packet) bool
}

// listenSocket binds a UDP socket to addr (host:port, or ":0" for an
// ephemeral port) for the receiver side.
func listenSocket(addr string) (*socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, wrapSetup(err, "resolve listen address")
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, wrapSetup(err, "bind udp socket")
	}
	return &socket{conn: conn}, nil
}

// dialSocket connects a UDP socket to the given remote address for the
// sender side. UDP dial does not perform a handshake itself; it just fixes
// the peer for subsequent reads/writes.
func dialSocket(addr string) (*socket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, wrapSetup(err, "resolve remote address")
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, wrapSetup(err, "dial udp socket")
	}
	return &socket{conn: conn}, nil
}

func (s *socket) writePacket(p *Packet) error {
	if s.testPacketSendHook != nil && !s.testPacketSendHook(p) {
		return nil
	}
	_, err := s.conn.Write(p.Encode())
	return err
}

func (s *socket) writePacketTo(p *Packet, addr *net.UDPAddr) error {
	if s.testPacketSendHook != nil && !s.testPacketSendHook(p) {
		return nil
	}
	_, err := s.conn.WriteToUDP(p.Encode(), addr)
	return err
}

// readRaw blocks for the next datagram and returns its raw bytes along with
// the sender's address (useful on the receiver, which has not dialed a
// single fixed peer).
func (s *socket) readRaw(buf []byte) (int, *net.UDPAddr, error) {
	n, addr, err := s.conn.ReadFromUDP(buf)
	return n, addr, err
}

func (s *socket) close() error {
	return s.conn.Close()
}

func (s *socket) localAddr() net.Addr {
	return s.conn.LocalAddr()
}
