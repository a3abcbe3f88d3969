package rft

import "log/slog"

// logger returns l if non-nil, otherwise the process-wide default logger.
// Sender and Receiver accept an optional *slog.Logger the way the teacher's
// Socket accepts an optional EventHandler (nil defaults to a no-op).
func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
