package rft

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pkt := &Packet{
		SeqNum:     7,
		AckNum:     3,
		Flags:      FlagACK,
		WindowSize: 64,
		Data:       []byte("hello, rft"),
	}
	raw := pkt.Encode()

	if len(raw) != HeaderSize+len(pkt.Data) {
		t.Fatalf("encoded length = %d, want %d", len(raw), HeaderSize+len(pkt.Data))
	}
	if !Verify(raw) {
		t.Fatalf("Verify rejected a freshly encoded packet")
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SeqNum != pkt.SeqNum || got.AckNum != pkt.AckNum || got.Flags != pkt.Flags || got.WindowSize != pkt.WindowSize {
		t.Fatalf("decoded header mismatch: %+v", got)
	}
	if string(got.Data) != string(pkt.Data) {
		t.Fatalf("decoded payload = %q, want %q", got.Data, pkt.Data)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	pkt := &Packet{SeqNum: 1, Flags: FlagSYN}
	raw := pkt.Encode()
	if len(raw) != HeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(raw), HeaderSize)
	}
	if !Verify(raw) {
		t.Fatalf("Verify rejected a control packet with no payload")
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Data) != 0 {
		t.Fatalf("expected empty data, got %d bytes", len(got.Data))
	}
	if !got.Flags.Has(FlagSYN) {
		t.Fatalf("expected SYN flag to survive round trip")
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	pkt := &Packet{SeqNum: 5, Data: []byte("payload")}
	raw := pkt.Encode()

	corrupt := append([]byte(nil), raw...)
	corrupt[len(corrupt)-1] ^= 0xFF

	if Verify(corrupt) {
		t.Fatalf("Verify accepted a corrupted packet")
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding a buffer shorter than the header")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	pkt := &Packet{SeqNum: 1, Data: []byte("0123456789")}
	raw := pkt.Encode()
	if _, err := Decode(raw[:HeaderSize+3]); err == nil {
		t.Fatalf("expected error decoding a payload shorter than data_len claims")
	}
}

func TestFlagsString(t *testing.T) {
	f := FlagSYN | FlagACK
	if s := f.String(); s != "SYN|ACK" {
		t.Fatalf("Flags.String() = %q, want %q", s, "SYN|ACK")
	}
	if s := Flags(0).String(); s != "-" {
		t.Fatalf("Flags(0).String() = %q, want %q", s, "-")
	}
}
