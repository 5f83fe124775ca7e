package sandbox

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/microvm-js/sandbox/internal/vm"
	"github.com/microvm-js/sandbox/sandbox/hostcall"
)

// LoadedRuntime has a running, bootstrapped guest JS engine but no
// handlers compiled into it yet. Handlers are accumulated here and
// compiled all at once by GetLoaded.
type LoadedRuntime struct {
	mu       sync.Mutex
	consumed bool
	cfg      config
	engine   *vm.Engine
	handlers map[string]Script
}

func newLoadedRuntime(ctx context.Context, cfg config, clock hostcall.ClockFunc) (*LoadedRuntime, error) {
	engine := vm.NewEngine(vm.Config{
		HeapSize:  cfg.heapSize,
		StackSize: cfg.stackSize,
	})
	engine.SetClock(clock)
	if err := engine.Bootstrap(ctx); err != nil {
		return nil, wrapErr(CodeInternal, err, "bootstrapping guest engine")
	}

	recordStageEnter(stageLoadedRuntime)
	return &LoadedRuntime{
		cfg:      cfg,
		engine:   engine,
		handlers: make(map[string]Script),
	}, nil
}

// SetPrintHandler overrides the print host call the guest's console.log
// routes through. Returning an error from handler aborts the in-flight
// handler call with CodeGuestAbort.
func (r *LoadedRuntime) SetPrintHandler(handler func(line string) error) (*LoadedRuntime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return r, ErrConsumed
	}
	if handler == nil {
		return r, newErr(CodeInvalidArg, "print handler must not be nil")
	}
	r.engine.SetPrint(handler)
	return r, nil
}

// AddHandler registers a named handler's source for compilation at the
// next GetLoaded. source may be a plain string or a Script. name must be
// non-empty; re-adding a name overwrites the previous source.
func (r *LoadedRuntime) AddHandler(name string, source any) (*LoadedRuntime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return r, ErrConsumed
	}
	if name == "" {
		return r, newErr(CodeInvalidArg, "handler name must not be empty")
	}

	script, err := asScript(source)
	if err != nil {
		return r, err
	}
	r.handlers[name] = script
	return r, nil
}

// RemoveHandler drops a previously added handler. Removing a name that
// was never added is a no-op, not an error.
func (r *LoadedRuntime) RemoveHandler(name string) (*LoadedRuntime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return r, ErrConsumed
	}
	delete(r.handlers, name)
	return r, nil
}

// ClearHandlers drops every previously added handler.
func (r *LoadedRuntime) ClearHandlers() (*LoadedRuntime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return r, ErrConsumed
	}
	r.handlers = make(map[string]Script)
	return r, nil
}

// GetLoaded consumes the LoadedRuntime, compiling every registered
// handler into the guest engine and returning the HandlersLoaded stage.
// A snapshot is captured right after compilation, before any handler
// call, so a later Restore on the returned sandbox has a known-good
// target with every handler compiled even before the caller takes one
// explicitly.
func (r *LoadedRuntime) GetLoaded(ctx context.Context) (*HandlersLoaded, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return nil, ErrConsumed
	}

	vmHandlers := make(map[string]vm.Script, len(r.handlers))
	names := make(map[string]struct{}, len(r.handlers))
	for name, s := range r.handlers {
		vmHandlers[name] = vm.Script{Content: s.Content(), BasePath: s.BasePath()}
		names[name] = struct{}{}
	}
	if err := r.engine.CompileHandlers(ctx, vmHandlers); err != nil {
		return nil, wrapErr(CodeInternal, err, "compiling handlers")
	}

	baseline, err := r.engine.Snapshot(ctx)
	if err != nil {
		return nil, wrapErr(CodeInternal, err, "capturing baseline snapshot")
	}

	hl := newHandlersLoaded(r.engine, r.cfg, baseline, names)
	r.consumed = true
	sandboxLoadsTotal.Inc()
	recordStageLeave(stageLoadedRuntime)
	r.cfg.logger().Info("handlers compiled, sandbox ready for calls", zap.Int("handler_count", len(names)))
	return hl, nil
}

func asScript(source any) (Script, error) {
	switch v := source.(type) {
	case Script:
		return v, nil
	case string:
		return NewScript(v), nil
	default:
		return Script{}, newErr(CodeInvalidArg, "handler source must be a string or sandbox.Script, got %T", source)
	}
}
