package monitor

import "fmt"

// NameCPUTime is the Monitor.Name of CPUTimeMonitor.
const NameCPUTime = "cpu-time"

// minPoll and maxPoll bound the adaptive poll interval used while
// watching a thread's accumulated CPU time: the watcher sleeps for half
// of its current estimate of the remaining budget, clamped into this
// range, so it neither busy-spins near the deadline nor oversleeps past
// it by a wide margin.
const (
	minPoll = 1_000_000  // 1ms, in nanoseconds
	maxPoll = 10_000_000 // 10ms, in nanoseconds
)

// errCPUTimeUnsupported is returned by Prepare on platforms without a
// supported per-thread CPU clock, making the monitor fail closed rather
// than silently degrade to a different resource bound.
var errCPUTimeUnsupported = fmt.Errorf("cpu-time monitor: no supported per-thread CPU clock on this platform")
