package rft

import "testing"

func newTestReno() *RenoController {
	cfg := DefaultConfig()
	cfg.InitialSSThresh = 4
	cfg.InitialCwnd = 1.0
	return NewRenoController(cfg)
}

func TestRenoSlowStartGrowsToCongestionAvoidance(t *testing.T) {
	r := newTestReno()
	if r.State() != SlowStart {
		t.Fatalf("initial state = %v, want SlowStart", r.State())
	}
	for i := 0; i < 2; i++ {
		r.OnNewAck()
	}
	if r.State() != SlowStart {
		t.Fatalf("state = %v after 2 acks, want still SlowStart (cwnd=%v ssthresh=%v)", r.State(), r.Cwnd(), r.SSThresh())
	}
	r.OnNewAck() // cwnd 4 >= ssthresh 4
	if r.State() != CongestionAvoidance {
		t.Fatalf("state = %v, want CongestionAvoidance once cwnd reaches ssthresh", r.State())
	}
}

func TestRenoCongestionAvoidanceGrowsSublinearly(t *testing.T) {
	r := newTestReno()
	r.state = CongestionAvoidance
	r.cwnd = 4.0
	r.OnNewAck()
	want := 4.0 + 1.0/4.0
	if r.Cwnd() != want {
		t.Fatalf("cwnd = %v, want %v", r.Cwnd(), want)
	}
}

func TestRenoThirdDupAckTriggersFastRetransmit(t *testing.T) {
	r := newTestReno()
	r.cwnd = 10.0

	r.OnDupAck(5)
	r.OnDupAck(5)
	if _, ok := r.TakeFastRetransmitTarget(); ok {
		t.Fatalf("fast retransmit armed before third duplicate ACK")
	}
	r.OnDupAck(5)

	target, ok := r.TakeFastRetransmitTarget()
	if !ok || target != 5 {
		t.Fatalf("TakeFastRetransmitTarget() = (%v, %v), want (5, true)", target, ok)
	}
	if r.State() != FastRecovery {
		t.Fatalf("state = %v, want FastRecovery", r.State())
	}
	if r.SSThresh() != 5 {
		t.Fatalf("ssthresh = %v, want 5 (10/2)", r.SSThresh())
	}
	if r.Cwnd() != 8.0 {
		t.Fatalf("cwnd = %v, want ssthresh+3 = 8", r.Cwnd())
	}

	// TakeFastRetransmitTarget clears the pending target.
	if _, ok := r.TakeFastRetransmitTarget(); ok {
		t.Fatalf("fast retransmit target should be cleared after being taken")
	}
}

func TestRenoFastRecoveryInflatesOnFurtherDupAcks(t *testing.T) {
	r := newTestReno()
	r.state = FastRecovery
	r.cwnd = 8.0
	r.OnDupAck(5)
	if r.Cwnd() != 9.0 {
		t.Fatalf("cwnd = %v, want 9 after inflation", r.Cwnd())
	}
}

func TestRenoNewAckExitsFastRecoveryToCongestionAvoidance(t *testing.T) {
	r := newTestReno()
	r.state = FastRecovery
	r.ssthresh = 5
	r.cwnd = 9.0
	r.OnNewAck()
	if r.State() != CongestionAvoidance {
		t.Fatalf("state = %v, want CongestionAvoidance", r.State())
	}
	if r.Cwnd() != 5.0 {
		t.Fatalf("cwnd = %v, want ssthresh (5) on fast recovery exit", r.Cwnd())
	}
}

func TestRenoTimeoutResetsToSlowStart(t *testing.T) {
	r := newTestReno()
	r.state = CongestionAvoidance
	r.cwnd = 20.0
	r.OnTimeout()
	if r.State() != SlowStart {
		t.Fatalf("state = %v, want SlowStart", r.State())
	}
	if r.Cwnd() != 1.0 {
		t.Fatalf("cwnd = %v, want 1.0", r.Cwnd())
	}
	if r.SSThresh() != 10 {
		t.Fatalf("ssthresh = %v, want 10 (20/2)", r.SSThresh())
	}
}

func TestRenoSSThreshNeverDropsBelowTwo(t *testing.T) {
	r := newTestReno()
	r.cwnd = 2.0
	r.OnTimeout()
	if r.SSThresh() != 2 {
		t.Fatalf("ssthresh = %v, want floor of 2", r.SSThresh())
	}
}

func TestRenoEffectiveWindowCapsAtFlowControlWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FlowControlWindowSize = 10
	r := NewRenoController(cfg)
	r.cwnd = 100.0
	if got := r.EffectiveWindow(); got != 10 {
		t.Fatalf("EffectiveWindow() = %d, want 10", got)
	}
	r.cwnd = 0.4
	if got := r.EffectiveWindow(); got != 1 {
		t.Fatalf("EffectiveWindow() = %d, want 1 (never below one packet)", got)
	}
}
