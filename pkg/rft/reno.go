package rft

// RenoState is one of the three states of the TCP Reno congestion state
// machine described in spec.md §4.5.
type RenoState int

const (
	SlowStart RenoState = iota
	CongestionAvoidance
	FastRecovery
)

func (s RenoState) String() string {
	switch s {
	case SlowStart:
		return "slow-start"
	case CongestionAvoidance:
		return "congestion-avoidance"
	case FastRecovery:
		return "fast-recovery"
	default:
		return "unknown"
	}
}

// RenoController owns cwnd, ssthresh, the Reno state, and the duplicate-ACK
// counter, per spec.md §4.5. It is not safe for concurrent use on its own:
// spec.md §9 calls out the cyclic coupling between the controller and the
// send window and asks that both live under one mutex-protected aggregate
// with named event entry points rather than mutual callbacks — Sender is
// that aggregate, and holds the lock around every call into RenoController.
type RenoController struct {
	cfg Config

	cwnd        float64
	ssthresh    uint32
	state       RenoState
	dupAckCount uint32

	// fastRetransmitTarget is the sequence number OnDupAck asked the sender
	// to retransmit immediately, or 0 if there is none pending. The sender
	// drains it once per main-loop step (spec.md §4.4 step 1).
	fastRetransmitTarget uint32
}

// NewRenoController returns a controller initialized per spec.md §4.5:
// cwnd=1.0, ssthresh=16, state=SlowStart, dup_ack_count=0.
func NewRenoController(cfg Config) *RenoController {
	return &RenoController{
		cfg:      cfg,
		cwnd:     cfg.InitialCwnd,
		ssthresh: cfg.InitialSSThresh,
		state:    SlowStart,
	}
}

// Cwnd returns the current fractional congestion window.
func (r *RenoController) Cwnd() float64 { return r.cwnd }

// SSThresh returns the current slow-start threshold.
func (r *RenoController) SSThresh() uint32 { return r.ssthresh }

// State returns the current Reno state.
func (r *RenoController) State() RenoState { return r.state }

// EffectiveWindow returns min(FlowControlWindowSize, floor(cwnd)), the cap
// on simultaneously in-flight packets (spec.md §4/glossary), and never less
// than 1.
func (r *RenoController) EffectiveWindow() int {
	w := int(r.cwnd)
	if w > r.cfg.FlowControlWindowSize {
		return r.cfg.FlowControlWindowSize
	}
	if w < 1 {
		return 1
	}
	return w
}

// TakeFastRetransmitTarget returns and clears the pending fast-retransmit
// sequence number, or (0, false) if none is pending.
func (r *RenoController) TakeFastRetransmitTarget() (uint32, bool) {
	target := r.fastRetransmitTarget
	r.fastRetransmitTarget = 0
	if target == 0 {
		return 0, false
	}
	return target, true
}

// OnNewAck handles a cumulative ACK with ack_num >= sendBase (spec.md
// §4.5, "Event: new cumulative ACK"). The caller (Sender) is responsible
// for advancing send_base and pruning the window; OnNewAck only updates
// Reno state.
func (r *RenoController) OnNewAck() {
	r.dupAckCount = 0
	switch r.state {
	case FastRecovery:
		r.state = CongestionAvoidance
		r.cwnd = float64(r.ssthresh)
	case SlowStart:
		r.cwnd += 1.0
		if r.cwnd >= float64(r.ssthresh) {
			r.state = CongestionAvoidance
		}
	case CongestionAvoidance:
		r.cwnd += 1.0 / r.cwnd
	}
}

// OnDupAck handles a duplicate ACK (ack_num < sendBase). On the third
// duplicate outside fast recovery it arms a fast retransmit of sendBase,
// which the sender collects with TakeFastRetransmitTarget (spec.md §4.5,
// "Event: duplicate ACK").
func (r *RenoController) OnDupAck(sendBase uint32) {
	r.dupAckCount++
	switch {
	case r.state == FastRecovery:
		r.cwnd += 1.0 // window inflation
	case r.dupAckCount == 3:
		r.state = FastRecovery
		r.ssthresh = renoHalve(r.cwnd)
		r.cwnd = float64(r.ssthresh) + 3.0
		r.fastRetransmitTarget = sendBase
	}
}

// OnTimeout handles a retransmission timeout on any in-flight packet
// (spec.md §4.5, "Event: retransmission timeout").
func (r *RenoController) OnTimeout() {
	r.ssthresh = renoHalve(r.cwnd)
	r.cwnd = 1.0
	r.state = SlowStart
	r.dupAckCount = 0
}

// renoHalve implements max(2, cwnd/2), rounded down to the uint32 ssthresh
// the controller stores; ssthresh never drops below 2 (spec.md §3, sender
// invariant "ssthresh >= 2").
func renoHalve(cwnd float64) uint32 {
	half := cwnd / 2.0
	if half < 2.0 {
		half = 2.0
	}
	return uint32(half)
}
