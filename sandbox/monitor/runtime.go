package monitor

import (
	"sync"

	"github.com/microvm-js/sandbox/internal/config"
)

// sharedRuntime is the process-wide pool every Monitor's Watcher is
// spawned onto, sized by HYPERLIGHT_MONITOR_THREADS (default 2). It is
// initialized lazily on first use and never reconfigured afterward, even
// if the environment variable changes later in the process lifetime.
type sharedRuntime struct {
	sem chan struct{}
}

var (
	runtimeOnce sync.Once
	runtimeInst *sharedRuntime

	threadCount = sync.OnceValue(func() int {
		return config.LoadOrDefault().Monitor.Threads
	})
)

// getRuntime returns the shared runtime, initializing it on first call.
func getRuntime() *sharedRuntime {
	runtimeOnce.Do(func() {
		runtimeInst = &sharedRuntime{sem: make(chan struct{}, threadCount())}
	})
	return runtimeInst
}

// spawn runs task on the shared runtime, blocking the caller until a
// worker slot is free.
func (rt *sharedRuntime) spawn(task func()) {
	rt.sem <- struct{}{}
	go func() {
		defer func() { <-rt.sem }()
		task()
	}()
}
