package rft

import "github.com/pkg/errors"

// Sentinel errors for setup-time failures, per spec.md §7: socket creation,
// bind, resolve, and handshake failures are reported to the caller and
// abort; they are distinct from in-flight protocol anomalies (checksum
// failure, malformed packet), which are dropped silently and never
// surfaced as errors.
var (
	ErrHandshakeTimedOut = errors.New("rft: handshake timed out")
	ErrHandshakeFailed   = errors.New("rft: handshake failed")
	ErrTeardownTimedOut  = errors.New("rft: teardown timed out")
	ErrConnectionClosed  = errors.New("rft: connection closed")
)

// wrapSetup annotates a setup-time error (bind, resolve, dial, file open)
// with its call site, the way PatrickLi2021-IP-TCP wraps socket and
// protocol errors with github.com/pkg/errors so a caller can unwrap down to
// the underlying net/os error with errors.Cause.
func wrapSetup(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
