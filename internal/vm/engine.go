package vm

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"

	"github.com/microvm-js/sandbox/sandbox/hostcall"
)

// Config carries the size knobs the engine is built with. Heap/stack size
// have no effect on goja, which has no guest-visible notion of either;
// they are recorded so the engine's contract matches a real hypervisor's,
// and so a future swap to a real VM backend needs no caller-visible change.
type Config struct {
	HeapSize  int
	StackSize int
}

// recordedCall is one entry in an engine generation's replay log.
type recordedCall struct {
	name      string
	eventJSON []byte
	gc        bool
}

// generationState is everything that defines one "generation" of the
// engine: the compiled handler table and the ordered calls made against
// it. Snapshotting an engine captures a generationState; restoring
// replaces the live vm with one rebuilt by replaying it.
type generationState struct {
	sources map[string]Script
	calls   []recordedCall
	gen     int
}

// Engine is a goja-backed Hypervisor. It is the reference implementation
// of the sandbox design's guest engine; a real deployment would replace
// it with a binding to an actual hardware-virtualized VM.
type Engine struct {
	mu sync.Mutex

	cfg Config

	vm       *goja.Runtime
	rtPtr    atomic.Pointer[goja.Runtime]
	handlers map[string]goja.Callable
	state    generationState
	nextGen  int

	clock hostcall.ClockFunc
	print hostcall.PrintFunc

	interrupt *interruptHandle
}

// NewEngine constructs an unbootstrapped Engine with the real clock and a
// discarding print handler; use SetClock/SetPrint to override either
// before Bootstrap.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:       cfg,
		handlers:  make(map[string]goja.Callable),
		state:     generationState{sources: make(map[string]Script)},
		clock:     hostcall.RealClock,
		print:     hostcall.DiscardPrint,
		interrupt: newInterruptHandle(),
	}
	e.interrupt.bind(e)
	return e
}

// SetClock overrides the CurrentTimeMicros host call Date.now routes
// through. Takes effect immediately: the currently live runtime reads
// e.clock on every Date.now call.
func (e *Engine) SetClock(clock hostcall.ClockFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if clock != nil {
		e.clock = clock
	}
}

// SetPrint overrides the print host call console.log routes through.
// Takes effect immediately: the currently live runtime reads e.print on
// every call, not a snapshot taken at Bootstrap time.
func (e *Engine) SetPrint(print hostcall.PrintFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if print != nil {
		e.print = print
	}
}

func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bootstrapLocked()
}

// bootstrapLocked builds a fresh goja.Runtime and installs the restricted
// global surface: no module system, no timers, Date.now and console.log
// routed through the host-call surface. Caller holds e.mu.
func (e *Engine) bootstrapLocked() error {
	rt := goja.New()
	rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	global := rt.GlobalObject()
	for _, name := range []string{"require", "process", "module", "exports", "setTimeout", "setInterval", "setImmediate"} {
		if err := global.Set(name, goja.Undefined()); err != nil {
			return wrapErr(err, "removing global %q", name)
		}
	}

	if dateObj, ok := rt.GlobalObject().Get("Date").(*goja.Object); ok {
		_ = dateObj.Set("now", func(goja.FunctionCall) goja.Value {
			return rt.ToValue(e.clock() / 1000)
		})
	}

	console := rt.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		if err := e.print(strings.Join(parts, " ")); err != nil {
			panic(rt.NewGoError(fmt.Errorf("host print call failed: %w", err)))
		}
		return goja.Undefined()
	}
	_ = console.Set("log", logFn)
	_ = console.Set("warn", logFn)
	_ = console.Set("error", logFn)
	if err := global.Set("console", console); err != nil {
		return wrapErr(err, "installing console")
	}

	e.vm = rt
	e.rtPtr.Store(rt)
	e.handlers = make(map[string]goja.Callable)
	return nil
}

// handlerWrapper produces source that isolates a handler's top-level
// bindings (notably any `let`/`function handler` declaration) inside a
// function scope, so that compiling several handlers into one runtime
// cannot collide on shared global names.
func handlerWrapper(source string) string {
	return "(function(){\n" + source + "\nreturn handler;\n})()"
}

func (e *Engine) CompileHandlers(ctx context.Context, handlers map[string]Script) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileHandlersLocked(handlers)
}

func (e *Engine) compileHandlersLocked(handlers map[string]Script) error {
	compiled := make(map[string]goja.Callable, len(handlers))
	sources := make(map[string]Script, len(handlers))
	for name, script := range handlers {
		v, err := e.vm.RunScript(script.BasePath, handlerWrapper(script.Content))
		if err != nil {
			return wrapErr(err, "compiling handler %q", name)
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return newErrf("handler %q did not define a function literally named \"handler\"", name)
		}
		compiled[name] = fn
		sources[name] = script
	}
	e.handlers = compiled
	e.state = generationState{sources: sources, gen: e.nextGen}
	e.nextGen++
	return nil
}

func (e *Engine) ResetHandlers(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string]goja.Callable)
	e.state = generationState{sources: make(map[string]Script), gen: e.nextGen}
	e.nextGen++
}

func (e *Engine) Call(ctx context.Context, name string, eventJSON []byte, gc bool) ([]byte, ExitReason, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callLocked(name, eventJSON, gc)
}

// callLocked runs one handler invocation. Caller holds e.mu. Split out of
// Call so Restore's replay loop, which already holds e.mu while rebuilding
// the generation, can invoke handlers without a reentrant lock attempt.
func (e *Engine) callLocked(name string, eventJSON []byte, gc bool) ([]byte, ExitReason, error) {
	// Clear any interrupt left set by a Kill() during the quiescent period
	// between calls, so it doesn't immediately abort this one.
	e.vm.ClearInterrupt()

	fn, ok := e.handlers[name]
	if !ok {
		return nil, ExitGuestAbort, newErrf("no handler named %q is compiled", name)
	}

	var eventGo any
	if len(eventJSON) > 0 {
		if err := json.Unmarshal(eventJSON, &eventGo); err != nil {
			return nil, ExitGuestAbort, wrapErr(err, "decoding event for handler %q", name)
		}
	}

	resultJSON, reason, err := e.invoke(fn, eventGo)
	// Clear unconditionally: goja's interrupt flag otherwise stays set
	// past a killed call and would abort the next one before it starts.
	e.vm.ClearInterrupt()
	if err == nil && gc {
		runtime.GC()
	}
	if err == nil {
		e.state.calls = append(e.state.calls, recordedCall{name: name, eventJSON: append([]byte(nil), eventJSON...), gc: gc})
	}
	return resultJSON, reason, err
}

func (e *Engine) invoke(fn goja.Callable, eventGo any) ([]byte, ExitReason, error) {
	argv := e.vm.ToValue(eventGo)
	ret, err := fn(goja.Undefined(), argv)
	if err != nil {
		return nil, classify(err), err
	}
	resultJSON, err := json.Marshal(ret.Export())
	if err != nil {
		return nil, ExitGuestAbort, wrapErr(err, "encoding handler result")
	}
	return resultJSON, ExitNormal, nil
}

func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sources := make(map[string]Script, len(e.state.sources))
	for k, v := range e.state.sources {
		sources[k] = v
	}
	calls := make([]recordedCall, len(e.state.calls))
	copy(calls, e.state.calls)

	return &replaySnapshot{sources: sources, calls: calls, gen: e.state.gen}, nil
}

func (e *Engine) Restore(ctx context.Context, s Snapshot) error {
	snap, ok := s.(*replaySnapshot)
	if !ok {
		return newErrf("snapshot was not produced by this engine")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.bootstrapLocked(); err != nil {
		return wrapErr(err, "rebootstrapping engine for restore")
	}
	if err := e.compileHandlersLocked(snap.sources); err != nil {
		return wrapErr(err, "recompiling handlers for restore")
	}
	e.state.gen = snap.gen

	for _, call := range snap.calls {
		if _, _, err := e.callLocked(call.name, call.eventJSON, call.gc); err != nil {
			return wrapErr(err, "replaying call to %q during restore", call.name)
		}
	}
	return nil
}

func (e *Engine) InterruptHandle() InterruptHandle {
	return e.interrupt
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm = nil
	e.rtPtr.Store(nil)
	e.handlers = nil
	return nil
}

// replaySnapshot implements Snapshot by capturing the handler sources and
// the ordered call log of one engine generation. Restoring replays the
// log against a freshly bootstrapped runtime compiled with those exact
// sources, reconstructing observably identical state without requiring a
// real hypervisor memory-page snapshot facility.
type replaySnapshot struct {
	sources map[string]Script
	calls   []recordedCall
	gen     int
}

func (s *replaySnapshot) generation() int { return s.gen }
