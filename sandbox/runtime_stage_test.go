package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoadedRuntimeForTest(t *testing.T) *LoadedRuntime {
	t.Helper()
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	rt, err := p.LoadRuntime(context.Background())
	require.NoError(t, err)
	return rt
}

func TestAddHandlerAcceptsStringAndScript(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)

	rt, err := rt.AddHandler("a", "function handler(e){ return 1; }")
	require.NoError(t, err)

	rt, err = rt.AddHandler("b", NewScript("function handler(e){ return 2; }"))
	require.NoError(t, err)

	loaded, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	out, err := loaded.CallHandler(context.Background(), "a", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out)

	out, err = loaded.CallHandler(context.Background(), "b", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), out)
}

func TestAddHandlerRejectsUnsupportedSourceType(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	_, err := rt.AddHandler("a", 42)
	assert.Error(t, err)
}

func TestAddHandlerRejectsEmptyName(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	_, err := rt.AddHandler("", "function handler(e){ return e; }")
	assert.Error(t, err)
}

func TestRemoveHandlerIsNoOpOnUnknownName(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	_, err := rt.RemoveHandler("never-added")
	assert.NoError(t, err)
}

func TestRemoveHandlerDropsPreviouslyAdded(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	rt, err := rt.AddHandler("a", "function handler(e){ return 1; }")
	require.NoError(t, err)

	rt, err = rt.RemoveHandler("a")
	require.NoError(t, err)

	loaded, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	_, err = loaded.CallHandler(context.Background(), "a", nil, nil)
	assert.Error(t, err)
}

func TestClearHandlersDropsEverything(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	rt, err := rt.AddHandler("a", "function handler(e){ return 1; }")
	require.NoError(t, err)

	rt, err = rt.ClearHandlers()
	require.NoError(t, err)

	loaded, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	_, err = loaded.CallHandler(context.Background(), "a", nil, nil)
	assert.Error(t, err)
}

func TestGetLoadedConsumesRuntimeOnce(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	_, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	_, err = rt.GetLoaded(context.Background())
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestRuntimeMutatorsFailAfterGetLoaded(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	_, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	_, err = rt.AddHandler("late", "function handler(e){ return e; }")
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestSetPrintHandlerRoutesConsoleLog(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)

	var captured []string
	rt, err := rt.SetPrintHandler(func(line string) error {
		captured = append(captured, line)
		return nil
	})
	require.NoError(t, err)

	rt, err = rt.AddHandler("log", "function handler(e){ console.log('from handler'); return null; }")
	require.NoError(t, err)

	loaded, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	_, err = loaded.CallHandler(context.Background(), "log", nil, nil)
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "from handler", captured[0])
}

func TestSetPrintHandlerSurvivesUnloadReload(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)

	var captured []string
	rt, err := rt.SetPrintHandler(func(line string) error {
		captured = append(captured, line)
		return nil
	})
	require.NoError(t, err)

	rt, err = rt.AddHandler("log", "function handler(e){ console.log('first'); return null; }")
	require.NoError(t, err)

	loaded, err := rt.GetLoaded(context.Background())
	require.NoError(t, err)

	rt2, err := loaded.Unload(context.Background())
	require.NoError(t, err)

	rt2, err = rt2.AddHandler("log2", "function handler(e){ console.log('second'); return null; }")
	require.NoError(t, err)

	loaded2, err := rt2.GetLoaded(context.Background())
	require.NoError(t, err)

	_, err = loaded2.CallHandler(context.Background(), "log2", nil, nil)
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "second", captured[0])
}

func TestSetPrintHandlerRejectsNil(t *testing.T) {
	rt := newLoadedRuntimeForTest(t)
	_, err := rt.SetPrintHandler(nil)
	assert.Error(t, err)
}
