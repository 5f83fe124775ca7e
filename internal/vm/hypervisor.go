// Package vm supplies the guest-engine side of the sandbox: the contract
// the sandbox package needs from a virtualized JS runtime (Hypervisor),
// and a goja-backed reference implementation (Engine) that stands in for
// the real hypervisor + embedded JS engine the design is built around.
package vm

import "context"

// ExitReason classifies how a guest call ended.
type ExitReason int

const (
	// ExitNormal means the handler returned a value without incident.
	ExitNormal ExitReason = iota
	// ExitKilled means the vCPU was interrupted before the handler
	// returned, via InterruptHandle.Kill.
	ExitKilled
	// ExitStackOverflow means the guest exhausted its configured stack.
	ExitStackOverflow
	// ExitGuestAbort means the guest raised an unrecoverable error: an
	// uncaught exception, or a host-call failure.
	ExitGuestAbort
)

// Hypervisor is everything the sandbox package needs from the
// virtualization layer: guest lifecycle, the single call entry point, and
// snapshot/restore of the complete vCPU+memory state.
type Hypervisor interface {
	// Bootstrap runs the guest engine's init sequence. Called exactly
	// once, immediately after construction.
	Bootstrap(ctx context.Context) error

	// CompileHandlers replaces the compiled handler table with the given
	// name -> source mapping. Called once per get-loaded; Restore
	// reinstalls the captured handler table itself.
	CompileHandlers(ctx context.Context, handlers map[string]Script) error

	// ResetHandlers clears the compiled handler table, used by unload.
	ResetHandlers(ctx context.Context)

	// Call enters the vCPU to run the named handler against eventJSON,
	// returning the handler's JSON-encoded return value. err is non-nil
	// whenever reason != ExitNormal.
	Call(ctx context.Context, name string, eventJSON []byte, gc bool) (resultJSON []byte, reason ExitReason, err error)

	// Snapshot captures the complete vCPU+memory state: the compiled
	// handler sources and everything observable the guest has done since
	// the engine's current generation began.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Restore replaces the live vCPU+memory state with a previously
	// captured Snapshot, discarding any handler table or guest state
	// installed since.
	Restore(ctx context.Context, s Snapshot) error

	// InterruptHandle returns the kill switch for this engine's vCPU.
	// The handle remains valid and stable across Restore.
	InterruptHandle() InterruptHandle

	// Close releases engine resources. Idempotent.
	Close() error
}

// Script is the handler source text passed across the Hypervisor
// boundary; it mirrors sandbox.Script without importing the sandbox
// package, keeping vm free of a dependency cycle.
type Script struct {
	Content  string
	BasePath string
}

// Snapshot is an opaque capture returned by Hypervisor.Snapshot and
// consumed by Hypervisor.Restore. Snapshots are immutable and reusable:
// restoring from one does not invalidate it for later reuse.
type Snapshot interface {
	// generation distinguishes snapshots taken against unrelated handler
	// tables, purely for diagnostics; it has no semantic effect.
	generation() int
}

// InterruptHandle is a cloneable, thread-safe kill switch for a single
// engine's vCPU.
type InterruptHandle interface {
	// Kill requests that the vCPU stop at its next safe point. Safe to
	// call from any goroutine, any number of times, whether or not a
	// call is currently in flight.
	Kill()
}
