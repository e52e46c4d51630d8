package scan

import (
	"context"
	"sync"

	"github.jpl.nasa.gov/bdube/scanlab/scheduler"
)

// guarded serializes access to a Streamer shared by the pump goroutine and
// HTTP handlers.  The state is mirrored so that State does not wait behind a
// Flush holding the lock.
type guarded struct {
	mu sync.Mutex
	s  scheduler.Streamer

	smu   sync.Mutex
	state scheduler.State
}

func newGuarded(s scheduler.Streamer) *guarded {
	return &guarded{s: s, state: s.State()}
}

func (g *guarded) mirror(st scheduler.State) {
	g.smu.Lock()
	g.state = st
	g.smu.Unlock()
}

func (g *guarded) TryEnqueue(r scheduler.Request) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok, err := g.s.TryEnqueue(r)
	g.mirror(g.s.State())
	return ok, err
}

func (g *guarded) Flush(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mirror(scheduler.Draining)
	err := g.s.Flush(ctx)
	g.mirror(g.s.State())
	return err
}

func (g *guarded) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.s.Reset()
	g.mirror(g.s.State())
	return err
}

func (g *guarded) Suspend() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.s.Suspend()
	g.mirror(g.s.State())
	return err
}

func (g *guarded) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.s.Resume()
	g.mirror(g.s.State())
	return err
}

func (g *guarded) CheckStatus() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.CheckStatus()
}

func (g *guarded) State() scheduler.State {
	g.smu.Lock()
	defer g.smu.Unlock()
	return g.state
}

// autoStarter is implemented by streamers with a switchable auto-start
type autoStarter interface {
	SetAutoStart(bool)
	AutoStart() bool
}

func (g *guarded) autoStarter() (autoStarter, bool) {
	a, ok := g.s.(autoStarter)
	return a, ok
}

func (g *guarded) setAutoStart(b bool) bool {
	a, ok := g.autoStarter()
	if !ok {
		return false
	}
	g.mu.Lock()
	a.SetAutoStart(b)
	g.mu.Unlock()
	return true
}

func (g *guarded) autoStart() (bool, bool) {
	a, ok := g.autoStarter()
	if !ok {
		return false, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return a.AutoStart(), true
}
