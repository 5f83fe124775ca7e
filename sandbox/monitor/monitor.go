// Package monitor implements the composable, fail-closed execution
// monitors that race a guest handler call: wall-clock and CPU-time
// monitors that kill the call if it runs too long, and the Set type that
// composes up to five of them with OR semantics.
package monitor

import "context"

// MaxMonitors bounds how many monitors a single Set may race together.
const MaxMonitors = 5

// Monitor is a resource bound that can terminate an in-flight guest call.
//
// Every Monitor has a two-phase contract. Prepare runs synchronously on
// the goroutine making the guarded call, before the call begins; it is
// the only place a Monitor may touch thread-local state (the CPU-time
// monitor samples the calling OS thread's identity here). If Prepare
// fails, the call must never be attempted — monitors are fail-closed.
// The Watcher Prepare returns is then run asynchronously, racing every
// other prepared monitor's Watcher and the guarded call itself.
type Monitor interface {
	// Name identifies the monitor type for metrics and logging.
	Name() string
	// Prepare captures whatever state this monitor needs before the
	// guarded call starts, and returns a Watcher that fires once this
	// monitor's bound is exceeded.
	Prepare() (Watcher, error)
}

// Watcher is the asynchronous half of a Monitor. Calling it starts the
// watch; the returned channel is closed when the monitor's bound is
// exceeded. If ctx is cancelled first, the Watcher must stop and leak
// nothing — the channel need not be closed in that case.
type Watcher func(ctx context.Context) <-chan struct{}
