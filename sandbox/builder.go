package sandbox

import (
	"sync"

	"go.uber.org/zap"

	"github.com/microvm-js/sandbox/internal/logging"
)

// Builder accumulates the fixed sizing configuration for a sandbox before
// any vCPU is allocated. Every setter clamps up to the matching minimum
// rather than rejecting an in-range-but-small value; only non-positive
// values are rejected outright.
type Builder struct {
	mu       sync.Mutex
	consumed bool
	cfg      config
}

// NewBuilder returns a Builder pre-filled with the minimum sizes and a
// discarding logger.
func NewBuilder() *Builder {
	return &Builder{
		cfg: config{
			heapSize:         MinHeapSize,
			stackSize:        MinStackSize,
			inputBufferSize:  MinBufferSize,
			outputBufferSize: MinBufferSize,
			log:              logging.Nop(),
		},
	}
}

// SetLogger installs the logger every later stage logs stage
// transitions, monitor firings, and poison/restore events through.
// Propagates forward through Proto, LoadedRuntime, and HandlersLoaded,
// since config is threaded by value through every stage.
func (b *Builder) SetLogger(log *logging.Logger) (*Builder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrConsumed
	}
	if log == nil {
		return b, newErr(CodeInvalidArg, "logger must not be nil")
	}
	b.cfg.log = log
	return b, nil
}

// SetHeapSize sets the guest heap size in bytes, clamped up to MinHeapSize.
// Zero or negative values fail with CodeInvalidArg.
func (b *Builder) SetHeapSize(bytes int) (*Builder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrConsumed
	}
	if bytes <= 0 {
		return b, newErr(CodeInvalidArg, "heap size must be positive, got %d", bytes)
	}
	if bytes < MinHeapSize {
		bytes = MinHeapSize
	}
	b.cfg.heapSize = bytes
	return b, nil
}

// SetStackSize sets the guest stack size in bytes, clamped up to
// MinStackSize. Zero or negative values fail with CodeInvalidArg.
func (b *Builder) SetStackSize(bytes int) (*Builder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrConsumed
	}
	if bytes <= 0 {
		return b, newErr(CodeInvalidArg, "stack size must be positive, got %d", bytes)
	}
	if bytes < MinStackSize {
		bytes = MinStackSize
	}
	b.cfg.stackSize = bytes
	return b, nil
}

// SetInputBufferSize sets the size, in bytes, of the length-prefixed
// buffer an event is serialized into before a call enters the vCPU.
func (b *Builder) SetInputBufferSize(bytes int) (*Builder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrConsumed
	}
	if bytes <= 0 {
		return b, newErr(CodeInvalidArg, "input buffer size must be positive, got %d", bytes)
	}
	if bytes < MinBufferSize {
		bytes = MinBufferSize
	}
	b.cfg.inputBufferSize = bytes
	return b, nil
}

// SetOutputBufferSize sets the size, in bytes, of the length-prefixed
// buffer a handler's return value is serialized into.
func (b *Builder) SetOutputBufferSize(bytes int) (*Builder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrConsumed
	}
	if bytes <= 0 {
		return b, newErr(CodeInvalidArg, "output buffer size must be positive, got %d", bytes)
	}
	if bytes < MinBufferSize {
		bytes = MinBufferSize
	}
	b.cfg.outputBufferSize = bytes
	return b, nil
}

// Build consumes the Builder, allocating the vCPU backing this sandbox and
// returning the Proto stage. The Builder cannot be used again; a second
// call to Build, or to any setter, fails with CodeConsumed.
func (b *Builder) Build() (*Proto, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consumed {
		return nil, ErrConsumed
	}
	b.consumed = true
	b.cfg.logger().Debug("sandbox built",
		zap.Int("heap_size", b.cfg.heapSize),
		zap.Int("stack_size", b.cfg.stackSize),
	)
	return newProto(b.cfg), nil
}
