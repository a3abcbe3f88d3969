package rft

import "time"

// Config groups the wire-visible and behavior-visible constants of
// spec.md §6. The teacher exposes these as loose package-level vars
// (RUDP_WINDOW, RUDP_TIMEOUT, RUDP_MAX_RETRANS); here they are grouped into
// a struct so concurrent tests can each hold their own Config instead of
// racing on shared globals.
type Config struct {
	// ServerPort is the receiver's well-known listening port.
	ServerPort int
	// RouterPort is targeted instead of ServerPort when a packet-impairment
	// simulator sits in front of the receiver (spec.md §6); it does not
	// change the protocol.
	RouterPort int

	MaxBufferSize         int
	HeaderSize            int
	MaxDataSize           int
	FlowControlWindowSize int

	PacketTimeout time.Duration

	InitialSSThresh uint32
	InitialCwnd     float64

	// ControlRetries bounds the recommended (spec.md §9) retry-with-timeout
	// mitigation for SYN and FIN on the sender and SYN|ACK and FIN|ACK on the
	// receiver. The sender's handshake-closing ACK is sent once and is not
	// retried. The reference implementation has no retry at all for control
	// packets; this is an explicitly permitted deviation.
	ControlRetries int
}

// DefaultConfig returns the constants named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		ServerPort:            8888,
		RouterPort:            12345,
		MaxBufferSize:         MaxBufferSize,
		HeaderSize:            HeaderSize,
		MaxDataSize:           MaxDataSize,
		FlowControlWindowSize: 64,
		PacketTimeout:         1000 * time.Millisecond,
		InitialSSThresh:       16,
		InitialCwnd:           1.0,
		ControlRetries:        5,
	}
}
