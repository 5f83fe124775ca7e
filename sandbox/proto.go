package sandbox

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/microvm-js/sandbox/sandbox/hostcall"
)

// Proto is a sandbox with an allocated vCPU and no JS engine loaded yet.
// The only host call available at this stage is CurrentTimeMicros; the
// print host call becomes available once the runtime is loaded.
type Proto struct {
	mu       sync.Mutex
	consumed bool
	cfg      config
	clock    hostcall.ClockFunc
}

func newProto(cfg config) *Proto {
	recordStageEnter(stageProto)
	return &Proto{cfg: cfg, clock: hostcall.RealClock}
}

// SetClock overrides the CurrentTimeMicros host call. Intended for tests
// that need a deterministic clock; has no effect once LoadRuntime has
// consumed the Proto.
func (p *Proto) SetClock(clock hostcall.ClockFunc) (*Proto, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return p, ErrConsumed
	}
	if clock == nil {
		return p, newErr(CodeInvalidArg, "clock must not be nil")
	}
	p.clock = clock
	return p, nil
}

// LoadRuntime consumes the Proto, bootstrapping the guest JS engine and
// registering the print host call, and returns the LoadedRuntime stage.
func (p *Proto) LoadRuntime(ctx context.Context) (*LoadedRuntime, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return nil, ErrConsumed
	}

	p.consumed = true
	rt, err := newLoadedRuntime(ctx, p.cfg, p.clock)
	if err != nil {
		p.cfg.logger().Error("loading runtime failed", zap.Error(err))
		return nil, err
	}
	recordStageLeave(stageProto)
	p.cfg.logger().Debug("runtime loaded, guest engine bootstrapped")
	return rt, nil
}
