package monitor

import (
	"context"
	"fmt"
	"time"
)

// NameWallClock is the Monitor.Name of WallClockMonitor.
const NameWallClock = "wall-clock"

// WallClockMonitor fires once the configured duration has elapsed in
// real time, regardless of how much of that time the guest actually
// spent running.
type WallClockMonitor struct {
	d time.Duration
}

// NewWallClockMonitor builds a monitor that fires after d. d must be
// positive.
func NewWallClockMonitor(d time.Duration) (*WallClockMonitor, error) {
	if d <= 0 {
		return nil, fmt.Errorf("wall-clock monitor: duration must be positive, got %s", d)
	}
	return &WallClockMonitor{d: d}, nil
}

func (m *WallClockMonitor) Name() string { return NameWallClock }

// Prepare computes the deadline on the calling goroutine and returns a
// Watcher that sleeps until it.
func (m *WallClockMonitor) Prepare() (Watcher, error) {
	deadline := time.Now().Add(m.d)
	return func(ctx context.Context) <-chan struct{} {
		ch := make(chan struct{})
		go func() {
			timer := time.NewTimer(time.Until(deadline))
			defer timer.Stop()
			select {
			case <-timer.C:
				close(ch)
			case <-ctx.Done():
			}
		}()
		return ch
	}, nil
}
