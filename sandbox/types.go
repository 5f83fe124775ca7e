package sandbox

import (
	"time"

	"github.com/microvm-js/sandbox/internal/logging"
)

// MinHeapSize and MinStackSize are the floors the Builder clamps up to;
// values above zero but below the floor are rounded up rather than
// rejected, matching the underlying hypervisor's minimum page allocation.
const (
	MinHeapSize   = 4096 * 1024
	MinStackSize  = 256 * 1024
	MinBufferSize = 64 * 1024
)

// MaxCallTimeoutMs is the largest accepted monitor timeout. A timeout
// above this is almost certainly a caller mistake (minutes turned into a
// "milliseconds" field) and is rejected outright rather than silently
// honored.
const MaxCallTimeoutMs = 3_600_000

// Script is an immutable unit of handler source text. A Script carries an
// optional base path used only for diagnostics in compile errors; it has
// no effect on execution.
type Script struct {
	content  string
	basePath string
}

// NewScript wraps raw source text with no base path.
func NewScript(content string) Script {
	return Script{content: content}
}

// NewScriptWithBase wraps raw source text, attaching basePath for
// diagnostics in any compile error the source produces.
func NewScriptWithBase(content, basePath string) Script {
	return Script{content: content, basePath: basePath}
}

// Content returns the wrapped source text.
func (s Script) Content() string { return s.content }

// BasePath returns the diagnostic base path, or "" if none was set.
func (s Script) BasePath() string { return s.basePath }

// config is the immutable set of sizes, knobs, and the logger threaded
// through every stage by value, fixed at Build time.
type config struct {
	heapSize         int
	stackSize        int
	inputBufferSize  int
	outputBufferSize int
	log              *logging.Logger
}

// logger returns the configured logger, falling back to a discarding one
// if cfg was ever constructed without going through NewBuilder.
func (c config) logger() *logging.Logger {
	if c.log == nil {
		return logging.Nop()
	}
	return c.log
}

// CallOptions controls a single CallHandler invocation.
type CallOptions struct {
	// WallClockTimeout bounds real elapsed time. Zero means no wall-clock
	// monitor is attached.
	WallClockTimeout time.Duration
	// CPUTimeout bounds the calling thread's consumed CPU time. Zero means
	// no CPU-time monitor is attached.
	CPUTimeout time.Duration
	// GC requests a garbage-collection pass after the handler returns,
	// inside the same engine call. A nil GC, or a nil *CallOptions, means
	// true.
	GC *bool
}

func (o *CallOptions) gc() bool {
	if o == nil || o.GC == nil {
		return true
	}
	return *o.GC
}

func (o *CallOptions) wallClockTimeout() time.Duration {
	if o == nil {
		return 0
	}
	return o.WallClockTimeout
}

func (o *CallOptions) cpuTimeout() time.Duration {
	if o == nil {
		return 0
	}
	return o.CPUTimeout
}

func (o *CallOptions) validate() error {
	if o == nil {
		return nil
	}
	if o.WallClockTimeout < 0 {
		return newErr(CodeInvalidArg, "wall-clock timeout must not be negative")
	}
	if o.CPUTimeout < 0 {
		return newErr(CodeInvalidArg, "cpu timeout must not be negative")
	}
	if o.WallClockTimeout.Milliseconds() > MaxCallTimeoutMs {
		return newErr(CodeInvalidArg, "wall-clock timeout %dms exceeds the %dms ceiling", o.WallClockTimeout.Milliseconds(), MaxCallTimeoutMs)
	}
	if o.CPUTimeout.Milliseconds() > MaxCallTimeoutMs {
		return newErr(CodeInvalidArg, "cpu timeout %dms exceeds the %dms ceiling", o.CPUTimeout.Milliseconds(), MaxCallTimeoutMs)
	}
	return nil
}
