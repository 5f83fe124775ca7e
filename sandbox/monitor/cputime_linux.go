//go:build linux

package monitor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// clockTicksPerSecond is USER_HZ, the unit /proc/*/stat reports utime and
// stime in. 100 on every Linux configuration this module targets.
const clockTicksPerSecond = 100

// CPUTimeMonitor fires once the calling OS thread has accumulated the
// configured amount of CPU time, as opposed to wall-clock time: a handler
// that is descheduled while waiting never advances this clock.
type CPUTimeMonitor struct {
	d time.Duration
}

// NewCPUTimeMonitor builds a monitor that fires once the calling thread
// has consumed d of CPU time. d must be positive.
func NewCPUTimeMonitor(d time.Duration) (*CPUTimeMonitor, error) {
	if d <= 0 {
		return nil, fmt.Errorf("cpu-time monitor: duration must be positive, got %s", d)
	}
	return &CPUTimeMonitor{d: d}, nil
}

func (m *CPUTimeMonitor) Name() string { return NameCPUTime }

// Prepare samples the calling thread's identity and current accumulated
// CPU time. Callers must keep the goroutine pinned to this OS thread
// (runtime.LockOSThread) for the duration of the guarded call, or the
// sample this Watcher polls against will belong to the wrong thread.
func (m *CPUTimeMonitor) Prepare() (Watcher, error) {
	tid := unix.Gettid()
	start, err := threadCPUTime(tid)
	if err != nil {
		return nil, fmt.Errorf("cpu-time monitor: reading baseline for thread %d: %w", tid, err)
	}
	budget := m.d

	return func(ctx context.Context) <-chan struct{} {
		ch := make(chan struct{})
		go func() {
			for {
				elapsed, err := threadCPUTime(tid)
				if err != nil {
					// Thread exited or its /proc entry vanished; the
					// guarded call has already returned on its own.
					return
				}
				spent := elapsed - start
				if spent >= budget {
					close(ch)
					return
				}
				sleep := (budget - spent) / 2
				if sleep < minPoll {
					sleep = minPoll
				}
				if sleep > maxPoll {
					sleep = maxPoll
				}
				select {
				case <-time.After(sleep):
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	}, nil
}

// threadCPUTime reads the calling process's thread tid's accumulated
// user+system CPU time from /proc/self/task/<tid>/stat.
func threadCPUTime(tid int) (time.Duration, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/self/task/%d/stat", tid))
	if err != nil {
		return 0, err
	}

	idx := bytes.LastIndexByte(data, ')')
	if idx < 0 || idx+2 >= len(data) {
		return 0, fmt.Errorf("cpu-time monitor: unexpected /proc stat format")
	}
	fields := strings.Fields(string(data[idx+2:]))
	if len(fields) < 13 {
		return 0, fmt.Errorf("cpu-time monitor: truncated /proc stat record")
	}

	utime, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cpu-time monitor: parsing utime: %w", err)
	}
	stime, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cpu-time monitor: parsing stime: %w", err)
	}

	return time.Duration(utime+stime) * (time.Second / clockTicksPerSecond), nil
}
