package server

import "time"

// MetricsCollector receives usage signals from the server. Implementations
// must be safe for concurrent use; calls are made from session goroutines.
type MetricsCollector interface {
	// SessionStarted is called when a control connection is accepted.
	SessionStarted()

	// SessionEnded is called when a control connection closes.
	SessionEnded()

	// TransferCompleted is called after each successful RETR or STOR
	// with the direction ("RETR" or "STOR"), byte count and duration.
	TransferCompleted(direction string, bytes int64, d time.Duration)
}
