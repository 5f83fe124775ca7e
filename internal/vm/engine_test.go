package vm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBootstrapped(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(Config{HeapSize: 4096 * 1024, StackSize: 256 * 1024})
	require.NoError(t, e.Bootstrap(context.Background()))
	return e
}

func TestEngineCallEchoesHandlerResult(t *testing.T) {
	e := newBootstrapped(t)
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"echo": {Content: "function handler(e){ return e; }"},
	}))

	out, reason, err := e.Call(context.Background(), "echo", []byte(`{"x":1}`), true)
	require.NoError(t, err)
	assert.Equal(t, ExitNormal, reason)
	assert.JSONEq(t, `{"x":1}`, string(out))
}

func TestEngineCallUnknownHandlerAborts(t *testing.T) {
	e := newBootstrapped(t)
	_, reason, err := e.Call(context.Background(), "missing", []byte(`{}`), true)
	assert.Error(t, err)
	assert.Equal(t, ExitGuestAbort, reason)
}

func TestEngineCompileHandlersIsolatesGlobalScope(t *testing.T) {
	e := newBootstrapped(t)
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"a": {Content: "var shared = 1; function handler(e){ return shared; }"},
		"b": {Content: "var shared = 2; function handler(e){ return shared; }"},
	}))

	outA, _, err := e.Call(context.Background(), "a", []byte(`{}`), false)
	require.NoError(t, err)
	outB, _, err := e.Call(context.Background(), "b", []byte(`{}`), false)
	require.NoError(t, err)

	assert.Equal(t, "1", string(outA))
	assert.Equal(t, "2", string(outB))
}

func TestEngineCompileHandlersRejectsMissingHandlerBinding(t *testing.T) {
	e := newBootstrapped(t)
	err := e.CompileHandlers(context.Background(), map[string]Script{
		"bad": {Content: "var notHandler = 1;"},
	})
	assert.Error(t, err)
}

func TestEngineDateNowRoutesThroughClock(t *testing.T) {
	e := NewEngine(Config{})
	e.SetClock(func() int64 { return 42_000_000 })
	require.NoError(t, e.Bootstrap(context.Background()))
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"clock": {Content: "function handler(e){ return Date.now(); }"},
	}))

	out, _, err := e.Call(context.Background(), "clock", []byte(`{}`), false)
	require.NoError(t, err)
	assert.Equal(t, "42000", string(out))
}

func TestEngineConsoleLogRoutesThroughPrint(t *testing.T) {
	var lines []string
	e := NewEngine(Config{})
	e.SetPrint(func(line string) error {
		lines = append(lines, line)
		return nil
	})
	require.NoError(t, e.Bootstrap(context.Background()))
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"log": {Content: "function handler(e){ console.log('hi', 1); return null; }"},
	}))

	_, _, err := e.Call(context.Background(), "log", []byte(`{}`), false)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "hi 1", lines[0])
}

func TestEnginePrintFailureAbortsCall(t *testing.T) {
	e := NewEngine(Config{})
	e.SetPrint(func(line string) error { return assert.AnError })
	require.NoError(t, e.Bootstrap(context.Background()))
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"log": {Content: "function handler(e){ console.log('boom'); return null; }"},
	}))

	_, reason, err := e.Call(context.Background(), "log", []byte(`{}`), false)
	assert.Error(t, err)
	assert.Equal(t, ExitGuestAbort, reason)
}

func TestEngineSnapshotRestoreReplaysCallsDeterministically(t *testing.T) {
	e := newBootstrapped(t)
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"counter": {Content: "var n = 0; function handler(e){ n++; return n; }"},
	}))

	_, _, err := e.Call(context.Background(), "counter", []byte(`{}`), false)
	require.NoError(t, err)
	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	_, _, err = e.Call(context.Background(), "counter", []byte(`{}`), false)
	require.NoError(t, err)
	out, _, err := e.Call(context.Background(), "counter", []byte(`{}`), false)
	require.NoError(t, err)
	assert.Equal(t, "3", string(out))

	require.NoError(t, e.Restore(context.Background(), snap))
	out, _, err = e.Call(context.Background(), "counter", []byte(`{}`), false)
	require.NoError(t, err)
	assert.Equal(t, "2", string(out))
}

func TestEngineResetHandlersClearsCompiledTable(t *testing.T) {
	e := newBootstrapped(t)
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"echo": {Content: "function handler(e){ return e; }"},
	}))
	e.ResetHandlers(context.Background())

	_, reason, err := e.Call(context.Background(), "echo", []byte(`{}`), false)
	assert.Error(t, err)
	assert.Equal(t, ExitGuestAbort, reason)
}

func TestInterruptHandleKillStopsRunningCall(t *testing.T) {
	e := newBootstrapped(t)
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"spin": {Content: "function handler(e){ while(true) {} }"},
	}))

	handle := e.InterruptHandle()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, reason, err := e.Call(context.Background(), "spin", []byte(`{}`), false)
		assert.Error(t, err)
		assert.Equal(t, ExitKilled, reason)
	}()

	// Give the goroutine time to clear the entry-time interrupt and reach
	// the busy loop before killing it; killing too early would be cleared
	// by callLocked's own entry-time ClearInterrupt and the loop would
	// never terminate.
	time.Sleep(20 * time.Millisecond)
	handle.Kill()
	<-done
}

func TestInterruptHandleKillDuringQuiescencePoisonsNothing(t *testing.T) {
	e := newBootstrapped(t)
	require.NoError(t, e.CompileHandlers(context.Background(), map[string]Script{
		"echo": {Content: "function handler(e){ return e; }"},
	}))

	// Kill with no call in flight: the interrupt flag must be cleared at
	// the next call's entry, not linger and abort it immediately.
	e.InterruptHandle().Kill()

	result, reason, err := e.Call(context.Background(), "echo", []byte(`{"x":1}`), false)
	require.NoError(t, err)
	assert.Equal(t, ExitNormal, reason)
	assert.JSONEq(t, `{"x":1}`, string(result))
}
