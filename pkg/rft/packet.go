// Package rft implements a reliable, ordered, gap-free byte-stream transfer
// protocol on top of an unreliable UDP datagram substrate: a fixed-format
// packet with a one's-complement checksum, a three-way handshake, a
// sliding send window with timeout and fast retransmit, a TCP Reno
// congestion controller, and a selective receive buffer feeding a
// cumulative-ACK receiver.
package rft

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Wire-format sizes. HeaderSize is fixed; MaxDataSize bounds a single
// packet's payload so HeaderSize+MaxDataSize never exceeds MaxBufferSize.
const (
	HeaderSize    = 20
	MaxDataSize   = 1480
	MaxBufferSize = HeaderSize + MaxDataSize
)

// Flags is a bitmask of control flags carried in a packet header.
type Flags uint16

const (
	FlagSYN Flags = 1 << 0
	FlagACK Flags = 1 << 1
	FlagFIN Flags = 1 << 2
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

func (f Flags) String() string {
	s := ""
	if f.Has(FlagSYN) {
		s += "SYN|"
	}
	if f.Has(FlagACK) {
		s += "ACK|"
	}
	if f.Has(FlagFIN) {
		s += "FIN|"
	}
	if s == "" {
		return "-"
	}
	return s[:len(s)-1]
}

// ErrMalformedPacket is returned by Decode when the input is too short to
// hold a full header, or claims a payload longer than it actually carries.
var ErrMalformedPacket = errors.New("rft: malformed packet")

// Packet is the in-memory representation of the on-wire packet described in
// spec.md §3: a 20-byte header (seq_num, ack_num, flags, window_size,
// data_len, checksum) followed by up to MaxDataSize bytes of payload.
type Packet struct {
	SeqNum     uint32
	AckNum     uint32
	Flags      Flags
	WindowSize uint16
	Data       []byte
	checksum   uint16 // populated by Encode/Decode; not meant to be set directly
}

// DataLen returns the payload length that will be encoded in the header.
func (p *Packet) DataLen() uint16 { return uint16(len(p.Data)) }

// Encode serializes p into its on-wire form, computing and installing the
// checksum over the header (with the checksum field zeroed) and payload.
// All multi-byte fields are little-endian, per spec.md §3/§6.
func (p *Packet) Encode() []byte {
	buf := make([]byte, HeaderSize+len(p.Data))
	binary.LittleEndian.PutUint32(buf[0:4], p.SeqNum)
	binary.LittleEndian.PutUint32(buf[4:8], p.AckNum)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(p.Flags))
	binary.LittleEndian.PutUint16(buf[10:12], p.WindowSize)
	binary.LittleEndian.PutUint16(buf[12:14], p.DataLen())
	// buf[14:16] (checksum) left zero for the computation below.
	copy(buf[HeaderSize:], p.Data)

	sum := checksum(buf)
	p.checksum = sum
	binary.LittleEndian.PutUint16(buf[14:16], sum)
	return buf
}

// Decode parses an on-wire byte slice into a Packet. It returns
// ErrMalformedPacket if the slice is shorter than HeaderSize or claims a
// data_len exceeding the bytes actually present; it does not verify the
// checksum (use Verify for that).
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < HeaderSize {
		return nil, ErrMalformedPacket
	}
	dataLen := binary.LittleEndian.Uint16(raw[12:14])
	if len(raw) < HeaderSize+int(dataLen) {
		return nil, ErrMalformedPacket
	}

	p := &Packet{
		SeqNum:     binary.LittleEndian.Uint32(raw[0:4]),
		AckNum:     binary.LittleEndian.Uint32(raw[4:8]),
		Flags:      Flags(binary.LittleEndian.Uint16(raw[8:10])),
		WindowSize: binary.LittleEndian.Uint16(raw[10:12]),
		checksum:   binary.LittleEndian.Uint16(raw[14:16]),
	}
	if dataLen > 0 {
		p.Data = append([]byte(nil), raw[HeaderSize:HeaderSize+int(dataLen)]...)
	}
	return p, nil
}

// Verify recomputes the checksum of an encoded packet and reports whether
// it matches the checksum carried on the wire.
func Verify(raw []byte) bool {
	if len(raw) < HeaderSize {
		return false
	}
	dataLen := int(binary.LittleEndian.Uint16(raw[12:14]))
	if len(raw) < HeaderSize+dataLen {
		return false
	}
	region := raw[:HeaderSize+dataLen]
	want := binary.LittleEndian.Uint16(region[14:16])

	tmp := append([]byte(nil), region...)
	binary.LittleEndian.PutUint16(tmp[14:16], 0)
	return checksum(tmp) == want
}

// checksum computes the 16-bit one's-complement checksum over region
// (header+payload, with the checksum field already zeroed by the caller):
// sum all little-endian 16-bit words, fold carries into the low 16 bits,
// and return the bitwise complement. An odd trailing byte is summed as the
// low byte of a final 16-bit word.
func checksum(region []byte) uint16 {
	var sum uint32
	n := len(region)
	i := 0
	for ; i+1 < n; i += 2 {
		sum += uint32(binary.LittleEndian.Uint16(region[i : i+2]))
	}
	if i < n {
		sum += uint32(region[i])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
