package hostcall

import "time"

// ClockFunc answers the guest's CurrentTimeMicros host call. The default
// reports the real wall clock; a host embedding the sandbox in tests can
// substitute a deterministic clock.
type ClockFunc func() int64

// PrintFunc answers the guest's print/console host call. Returning a
// non-nil error aborts the in-flight handler call with a guest-abort,
// mirroring a failed host call in the original design.
type PrintFunc func(line string) error

// RealClock reports the current time in microseconds since the Unix epoch.
func RealClock() int64 {
	return time.Now().UnixMicro()
}

// DiscardPrint drops every line and never fails.
func DiscardPrint(string) error {
	return nil
}
