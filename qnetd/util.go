package qnetd

import "time"

// durationFromMillis converts a wire heartbeat/interval value (milliseconds)
// to a time.Duration.
func durationFromMillis(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
