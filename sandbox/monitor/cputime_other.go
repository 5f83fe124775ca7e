//go:build !linux

package monitor

import (
	"fmt"
	"time"
)

// CPUTimeMonitor is unsupported outside Linux: there is no portable way
// to read an arbitrary goroutine's OS thread CPU time from another
// thread. NewCPUTimeMonitor still succeeds (the duration is recorded),
// but Prepare always fails, so a CallHandler that requests CPU-time
// bounding fails closed instead of silently falling back to wall-clock.
type CPUTimeMonitor struct {
	d time.Duration
}

func NewCPUTimeMonitor(d time.Duration) (*CPUTimeMonitor, error) {
	if d <= 0 {
		return nil, fmt.Errorf("cpu-time monitor: duration must be positive, got %s", d)
	}
	return &CPUTimeMonitor{d: d}, nil
}

func (m *CPUTimeMonitor) Name() string { return NameCPUTime }

func (m *CPUTimeMonitor) Prepare() (Watcher, error) {
	return nil, errCPUTimeUnsupported
}
