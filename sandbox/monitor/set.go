package monitor

import (
	"context"
	"fmt"
)

// Set composes zero to MaxMonitors monitors with OR semantics: the
// guarded call is killed the instant any one of them fires.
type Set struct {
	monitors []Monitor
}

// NewSet builds a Set from the given monitors. An empty Set is valid and
// simply never fires — CallHandler without monitors uses one.
func NewSet(monitors ...Monitor) (*Set, error) {
	if len(monitors) > MaxMonitors {
		return nil, fmt.Errorf("monitor: at most %d monitors may race one call, got %d", MaxMonitors, len(monitors))
	}
	return &Set{monitors: monitors}, nil
}

// Empty reports whether the Set has no monitors.
func (s *Set) Empty() bool {
	return s == nil || len(s.monitors) == 0
}

type prepared struct {
	name  string
	watch Watcher
}

// armed is the result of successfully preparing every monitor in a Set.
type armed struct {
	prepared []prepared
}

// Prepare runs every monitor's synchronous Prepare phase, in order, on
// the calling goroutine. It is fail-closed: the first failure aborts the
// whole set and none of the already-prepared monitors are armed — the
// caller must not attempt the guarded call.
func (s *Set) Prepare() (*armed, error) {
	if s.Empty() {
		return &armed{}, nil
	}
	out := make([]prepared, 0, len(s.monitors))
	for _, m := range s.monitors {
		w, err := m.Prepare()
		if err != nil {
			return nil, fmt.Errorf("monitor %q failed to prepare: %w", m.Name(), err)
		}
		out = append(out, prepared{name: m.Name(), watch: w})
	}
	return &armed{prepared: out}, nil
}

// Race starts every armed monitor's Watcher on the shared runtime and
// blocks until either one fires (returning its name and true) or ctx is
// cancelled by the caller, meaning the guarded call finished on its own
// (returning "", false).
func (a *armed) Race(ctx context.Context) (name string, fired bool) {
	if len(a.prepared) == 0 {
		<-ctx.Done()
		return "", false
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fire := make(chan string, len(a.prepared))
	rt := getRuntime()
	for _, p := range a.prepared {
		p := p
		rt.spawn(func() {
			select {
			case <-p.watch(raceCtx):
				select {
				case fire <- p.name:
				default:
				}
			case <-raceCtx.Done():
			}
		})
	}

	select {
	case name := <-fire:
		return name, true
	case <-ctx.Done():
		return "", false
	}
}
