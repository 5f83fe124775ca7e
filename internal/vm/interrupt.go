package vm

// interruptHandle wires InterruptHandle.Kill through to whichever
// goja.Runtime is currently live for an Engine. A Restore rebuilds the
// Runtime but keeps the same interruptHandle instance, so callers that
// cached an InterruptHandle across a Restore keep working.
type interruptHandle struct {
	engine *Engine
}

func newInterruptHandle() *interruptHandle {
	return &interruptHandle{}
}

// bind associates the handle with the engine whose runtime it kills. Set
// once, at Engine construction.
func (h *interruptHandle) bind(e *Engine) {
	h.engine = e
}

// Kill must never block on e.mu: a Call in flight holds that lock for its
// entire duration (including the blocking call into the guest), so Kill
// reads the live runtime through a separate atomic pointer instead.
func (h *interruptHandle) Kill() {
	e := h.engine
	if e == nil {
		return
	}
	if rt := e.rtPtr.Load(); rt != nil {
		rt.Interrupt("killed")
	}
}
