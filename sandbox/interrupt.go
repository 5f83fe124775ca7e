package sandbox

import "github.com/microvm-js/sandbox/internal/vm"

// InterruptHandle is a cloneable, thread-safe kill switch for a
// HandlersLoaded sandbox's vCPU. Safe to call from any goroutine, any
// number of times, whether or not a call is currently in flight.
type InterruptHandle struct {
	inner vm.InterruptHandle
}

// Kill requests that the vCPU stop at its next safe point. Once the
// vCPU stops, the sandbox is poisoned and the in-flight CallHandler, if
// any, returns an Error of Code CodeCancelled.
func (h InterruptHandle) Kill() {
	h.inner.Kill()
}
