/*
Package sandbox runs untrusted JavaScript handler functions inside a
virtualized micro-VM, giving the host strict control over CPU time,
wall-clock time, memory footprint, and the ability to snapshot, restore,
and forcibly terminate guest execution.

# Lifecycle

A sandbox moves through four linear stages, each consumed exactly once by
its terminating operation:

	Builder -> build -> Proto -> load-runtime -> LoadedRuntime -> get-loaded -> HandlersLoaded

	b, err := sandbox.NewBuilder().SetHeapSize(4 * 1024 * 1024)
	b, err = b.SetStackSize(256 * 1024)

	proto, err := b.Build()
	runtime, err := proto.LoadRuntime(ctx)
	runtime, err = runtime.AddHandler("echo", "function handler(e){ return e; }")
	loaded, err := runtime.GetLoaded(ctx)

	result, err := loaded.CallHandler(ctx, "echo", map[string]int{"x": 1}, nil)

Calling any operation on a stage after it has been consumed by its
terminating operation fails with an Error of Code CodeConsumed — this is a
hard, testable contract, not a documentation note.

# Monitors

CallHandler accepts zero or more resource monitors (see the monitor
subpackage) that race a handler invocation on a process-wide shared async
runtime. The first monitor to fire kills the vCPU and poisons the sandbox.
Monitor preparation is fail-closed: if any monitor cannot initialize, the
handler is never entered.

# Poison recovery

Killing a vCPU mid-instruction leaves the guest engine's invariants
presumed broken. A HandlersLoaded stage that has been poisoned rejects
CallHandler and Snapshot with CodePoisoned; Restore, Unload, reading the
Poisoned flag, InterruptHandle, BaselineSnapshot, and SetLogger still work.
Hosts that intend to use timeouts should take a Snapshot before the first
guarded call, so they have a known-good Restore target.

# What this package does not do

The hypervisor's register/memory plumbing and the guest-side JavaScript
engine are external collaborators behind the Hypervisor interface
(internal/vm supplies a goja-backed reference implementation); this
package only implements the lifecycle state machine, the monitor
framework, and the snapshot/poison contract built on top of them.
*/
package sandbox
