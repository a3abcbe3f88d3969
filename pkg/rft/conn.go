package rft

import (
	"net"
	"time"
)

// ConnectionFSM helpers: packet builders for the three-way handshake and
// four-way teardown (spec.md §4.2), plus a bounded send-and-wait retry
// loop for control packets. The reference (cn_lab2) never retries a lost
// SYN or FIN; spec.md §9 explicitly recommends bounded retry with the same
// fixed timeout as a documented deviation, which is what retrySendUntil
// implements.

func buildSYN() *Packet {
	return &Packet{SeqNum: 0, Flags: FlagSYN}
}

func buildSYNACK(clientSeq uint32) *Packet {
	return &Packet{AckNum: clientSeq + 1, Flags: FlagSYN | FlagACK}
}

func buildHandshakeACK(serverSeq uint32) *Packet {
	return &Packet{AckNum: serverSeq + 1, Flags: FlagACK}
}

func buildFIN(seq uint32) *Packet {
	return &Packet{SeqNum: seq, Flags: FlagFIN}
}

func buildFINACK(finSeq uint32) *Packet {
	return &Packet{AckNum: finSeq + 1, Flags: FlagACK | FlagFIN}
}

func buildDataACK(ackNum uint32) *Packet {
	return &Packet{AckNum: ackNum, Flags: FlagACK}
}

// controlWait reads and decodes datagrams from sock until accept returns
// true for one, ignoring anything malformed or checksum-invalid, or until
// timeout elapses.
func controlWait(sock *socket, timeout time.Duration, accept func(*Packet) bool) (*Packet, *net.UDPAddr, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, MaxBufferSize)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil, ErrHandshakeTimedOut
		}
		sock.conn.SetReadDeadline(time.Now().Add(remaining))
		n, addr, err := sock.readRaw(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, nil, ErrHandshakeTimedOut
			}
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
		if accept(pkt) {
			return pkt, addr, nil
		}
	}
}

// retrySendUntil sends build() up to attempts times, waiting timeout
// between attempts for a packet satisfying accept, per the bounded-retry
// deviation from spec.md §9. send performs the actual write (to a fixed
// peer on the sender side, or to a specific client address on the receiver
// side).
func retrySendUntil(
	sock *socket,
	send func(*Packet) error,
	build func() *Packet,
	timeout time.Duration,
	attempts int,
	accept func(*Packet) bool,
) (*Packet, *net.UDPAddr, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		pkt := build()
		if err := send(pkt); err != nil {
			return nil, nil, err
		}
		got, addr, err := controlWait(sock, timeout, accept)
		if err == nil {
			return got, addr, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrHandshakeTimedOut
	}
	return nil, nil, lastErr
}
