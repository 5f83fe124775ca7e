package sandbox

import (
	"context"
	"encoding/json"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/microvm-js/sandbox/internal/logging"
	"github.com/microvm-js/sandbox/internal/vm"
	"github.com/microvm-js/sandbox/sandbox/hostcall"
	"github.com/microvm-js/sandbox/sandbox/monitor"
)

// HandlersLoaded is a sandbox with a compiled handler table, ready to
// take calls. It is the only stage CallHandler exists on.
//
// A poisoned HandlersLoaded rejects every operation except Restore,
// Unload, InterruptHandle, Poisoned, BaselineSnapshot, and SetLogger —
// Snapshot and CallHandler both fail with CodePoisoned until a
// successful Restore clears the flag.
type HandlersLoaded struct {
	mu       sync.Mutex
	consumed bool
	poisoned atomic.Bool

	cfg      config
	engine   *vm.Engine
	names    map[string]struct{}
	baseline Snapshot
	log      *logging.Logger
}

func newHandlersLoaded(engine *vm.Engine, cfg config, baseline vm.Snapshot, names map[string]struct{}) *HandlersLoaded {
	recordStageEnter(stageHandlersLoaded)
	return &HandlersLoaded{
		cfg:      cfg,
		engine:   engine,
		names:    names,
		baseline: newSnapshot(baseline),
		log:      cfg.logger(),
	}
}

// SetLogger overrides the logger installed via Builder.SetLogger,
// reporting monitor terminations and guest aborts through the new one
// instead. Has no effect once consumed.
func (h *HandlersLoaded) SetLogger(log *logging.Logger) (*HandlersLoaded, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumed {
		return h, ErrConsumed
	}
	if log == nil {
		return h, newErr(CodeInvalidArg, "logger must not be nil")
	}
	h.log = log
	return h, nil
}

// BaselineSnapshot returns the snapshot GetLoaded captured automatically,
// before any handler call was made. Always available, including on a
// poisoned or consumed sandbox, so a host that forgot to take its own
// snapshot before a guarded call still has a known-good Restore target.
func (h *HandlersLoaded) BaselineSnapshot() Snapshot {
	return h.baseline
}

// Poisoned reports whether a prior call was killed or aborted without a
// subsequent successful Restore. Always available, even after the
// sandbox has been consumed by Unload.
func (h *HandlersLoaded) Poisoned() bool {
	return h.poisoned.Load()
}

// InterruptHandle returns the kill switch for this sandbox's vCPU.
// Always available, regardless of poison or consumed state: killing an
// already-dead call, or one that never starts, is simply a no-op.
func (h *HandlersLoaded) InterruptHandle() InterruptHandle {
	return InterruptHandle{inner: h.engine.InterruptHandle()}
}

func buildMonitorSet(opts *CallOptions) (*monitor.Set, error) {
	var monitors []monitor.Monitor
	if d := opts.wallClockTimeout(); d > 0 {
		m, err := monitor.NewWallClockMonitor(d)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	if d := opts.cpuTimeout(); d > 0 {
		m, err := monitor.NewCPUTimeMonitor(d)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitor.NewSet(monitors...)
}

// CallHandler invokes the named handler with event, racing zero or more
// resource monitors derived from opts. opts may be nil, meaning no
// monitors and the default gc=true.
//
// Monitor preparation is fail-closed: if any requested monitor cannot be
// prepared, the handler is never entered and the sandbox is not poisoned
// — the caller gets CodeInternal back and may retry. Once the handler is
// entered, any non-normal exit (killed by a monitor or by an explicit
// InterruptHandle.Kill, stack overflow, or an uncaught guest exception)
// poisons the sandbox.
func (h *HandlersLoaded) CallHandler(ctx context.Context, name string, event any, opts *CallOptions) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	defer func() { callDuration.Observe(time.Since(start).Seconds()) }()

	if h.consumed {
		return nil, ErrConsumed
	}
	if h.poisoned.Load() {
		return nil, ErrPoisoned
	}
	if name == "" {
		return nil, newErr(CodeInvalidArg, "handler name must not be empty")
	}
	if _, ok := h.names[name]; !ok {
		return nil, newErr(CodeInvalidArg, "no handler named %q is loaded", name)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, wrapErr(CodeInvalidArg, err, "encoding event for handler %q", name)
	}
	if encErr := hostcall.EncodeInto(make([]byte, h.cfg.inputBufferSize), eventJSON); encErr != nil {
		return nil, wrapErr(CodeInternal, encErr, "event for handler %q does not fit the input buffer", name)
	}

	set, err := buildMonitorSet(opts)
	if err != nil {
		return nil, wrapErr(CodeInternal, err, "building monitor set for handler %q", name)
	}

	if !set.Empty() {
		goruntime.LockOSThread()
		defer goruntime.UnlockOSThread()
	}

	armed, err := set.Prepare()
	if err != nil {
		h.log.Error("monitor prepare failed, handler not entered", zap.String("handler", name), zap.Error(err))
		return nil, wrapErr(CodeInternal, err, "preparing monitors for handler %q", name)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var firingMu sync.Mutex
	var firingMonitor string
	raceDone := make(chan struct{})
	go func() {
		defer close(raceDone)
		if n, fired := armed.Race(raceCtx); fired {
			firingMu.Lock()
			firingMonitor = n
			firingMu.Unlock()
			h.engine.InterruptHandle().Kill()
		}
	}()

	resultJSON, reason, callErr := h.engine.Call(ctx, name, eventJSON, opts.gc())
	cancel()
	<-raceDone

	firingMu.Lock()
	monitorName := firingMonitor
	firingMu.Unlock()

	if callErr != nil {
		return nil, h.classifyFailure(name, monitorName, reason, callErr)
	}

	if encErr := hostcall.EncodeInto(make([]byte, h.cfg.outputBufferSize), resultJSON); encErr != nil {
		return nil, wrapErr(CodeInternal, encErr, "result from handler %q does not fit the output buffer", name)
	}

	var out any
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &out); err != nil {
			return nil, wrapErr(CodeInternal, err, "decoding result from handler %q", name)
		}
	}

	recordCall("ok")
	return out, nil
}

func (h *HandlersLoaded) classifyFailure(name, monitorName string, reason vm.ExitReason, cause error) error {
	h.poisoned.Store(true)

	switch reason {
	case vm.ExitKilled:
		recordCall(string(CodeCancelled))
		if monitorName != "" {
			monitor.RecordTermination(monitorName)
			h.log.Warn("monitor terminated handler call", zap.String("monitor", monitorName), zap.String("handler", name))
			return wrapErr(CodeCancelled, cause, "call to %q terminated by the %s monitor", name, monitorName)
		}
		h.log.Warn("handler call cancelled", zap.String("handler", name))
		return wrapErr(CodeCancelled, cause, "call to %q was cancelled", name)
	case vm.ExitStackOverflow:
		recordCall(string(CodeStackOverflow))
		return wrapErr(CodeStackOverflow, cause, "handler %q exhausted its stack", name)
	default:
		recordCall(string(CodeGuestAbort))
		h.log.Warn("handler aborted", zap.String("handler", name), zap.Error(cause))
		return wrapErr(CodeGuestAbort, cause, "handler %q aborted", name)
	}
}

// Snapshot captures the sandbox's complete vCPU and guest-engine state.
// Fails with CodePoisoned if a prior call was killed or aborted.
func (h *HandlersLoaded) Snapshot(ctx context.Context) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumed {
		return Snapshot{}, ErrConsumed
	}
	if h.poisoned.Load() {
		return Snapshot{}, ErrPoisoned
	}
	inner, err := h.engine.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, wrapErr(CodeInternal, err, "capturing snapshot")
	}
	snap := newSnapshot(inner)
	h.log.Debug("captured snapshot", zap.String("snapshot_id", snap.ID()))
	return snap, nil
}

// Restore replaces the sandbox's live state with s, discarding anything
// done since s was captured, and clears the poisoned flag. Restore is
// the only operation that clears the flag.
func (h *HandlersLoaded) Restore(ctx context.Context, s Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumed {
		return ErrConsumed
	}
	if s.inner == nil {
		return newErr(CodeInvalidArg, "snapshot is empty")
	}
	if err := h.engine.Restore(ctx, s.inner); err != nil {
		return wrapErr(CodeInternal, err, "restoring snapshot")
	}
	h.poisoned.Store(false)
	h.log.Debug("restored snapshot", zap.String("snapshot_id", s.ID()))
	return nil
}

// Unload consumes the HandlersLoaded stage, clearing the compiled
// handler table and returning a fresh LoadedRuntime over the same vCPU.
// Unload succeeds even on a poisoned sandbox; the caller gets a clean
// LoadedRuntime back regardless, ready to AddHandler and GetLoaded again.
func (h *HandlersLoaded) Unload(ctx context.Context) (*LoadedRuntime, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consumed {
		return nil, ErrConsumed
	}

	h.engine.ResetHandlers(ctx)

	rt := &LoadedRuntime{
		cfg:      h.cfg,
		handlers: make(map[string]Script),
		engine:   h.engine,
	}

	h.consumed = true
	sandboxUnloadsTotal.Inc()
	recordStageLeave(stageHandlersLoaded)
	recordStageEnter(stageLoadedRuntime)
	h.log.Info("sandbox unloaded", zap.Bool("was_poisoned", h.poisoned.Load()))
	return rt, nil
}
