//go:build linux

package monitor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUTimeMonitorRejectsNonPositiveDuration(t *testing.T) {
	_, err := NewCPUTimeMonitor(0)
	assert.Error(t, err)
}

func TestCPUTimeMonitorName(t *testing.T) {
	m, err := NewCPUTimeMonitor(time.Second)
	require.NoError(t, err)
	assert.Equal(t, NameCPUTime, m.Name())
}

// TestCPUTimeMonitorFiresUnderBusyLoop mirrors how CallHandler uses this
// monitor: Prepare runs on the same locked OS thread that then busy-spins,
// since Prepare samples the calling thread's identity.
func TestCPUTimeMonitorFiresUnderBusyLoop(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m, err := NewCPUTimeMonitor(5 * time.Millisecond)
	require.NoError(t, err)

	watch, err := m.Prepare()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch := watch(ctx)

	deadline := time.Now().Add(2 * time.Second)
	fired := false
	for time.Now().Before(deadline) {
		select {
		case <-ch:
			fired = true
		default:
		}
		if fired {
			break
		}
		for i := 0; i < 1_000_000; i++ {
		}
	}
	assert.True(t, fired, "cpu-time monitor did not fire under a busy loop")
}

func TestThreadCPUTimeReadsOwnThread(t *testing.T) {
	tid := unix.Gettid()
	d, err := threadCPUTime(tid)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, time.Duration(0))
}
