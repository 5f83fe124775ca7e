package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	name       string
	prepareErr error
	fireAfter  time.Duration
}

func (f *fakeMonitor) Name() string { return f.name }

func (f *fakeMonitor) Prepare() (Watcher, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return func(ctx context.Context) <-chan struct{} {
		ch := make(chan struct{})
		go func() {
			select {
			case <-time.After(f.fireAfter):
				close(ch)
			case <-ctx.Done():
			}
		}()
		return ch
	}, nil
}

func TestNewSetRejectsTooManyMonitors(t *testing.T) {
	monitors := make([]Monitor, MaxMonitors+1)
	for i := range monitors {
		monitors[i] = &fakeMonitor{name: "m"}
	}
	_, err := NewSet(monitors...)
	assert.Error(t, err)
}

func TestEmptySetNeverFires(t *testing.T) {
	set, err := NewSet()
	require.NoError(t, err)
	assert.True(t, set.Empty())

	armed, err := set.Prepare()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	name, fired := armed.Race(ctx)
	assert.False(t, fired)
	assert.Empty(t, name)
}

func TestSetPrepareFailsClosedOnFirstError(t *testing.T) {
	set, err := NewSet(
		&fakeMonitor{name: "ok", fireAfter: time.Hour},
		&fakeMonitor{name: "bad", prepareErr: assert.AnError},
	)
	require.NoError(t, err)

	_, err = set.Prepare()
	assert.Error(t, err)
}

func TestSetRaceReturnsFirstToFire(t *testing.T) {
	set, err := NewSet(
		&fakeMonitor{name: "slow", fireAfter: time.Hour},
		&fakeMonitor{name: "fast", fireAfter: 5 * time.Millisecond},
	)
	require.NoError(t, err)

	armed, err := set.Prepare()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	name, fired := armed.Race(ctx)
	assert.True(t, fired)
	assert.Equal(t, "fast", name)
}

func TestSetRaceReturnsFalseWhenCallerCancelsFirst(t *testing.T) {
	set, err := NewSet(&fakeMonitor{name: "slow", fireAfter: time.Hour})
	require.NoError(t, err)

	armed, err := set.Prepare()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	name, fired := armed.Race(ctx)
	assert.False(t, fired)
	assert.Empty(t, name)
}
