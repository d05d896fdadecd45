package aggregate

import (
	"context"
	"sync"

	"baf-site/internal/model"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// View is what a page renders: the bundle once settled, whether it is still
// loading, and a bundle-level error if the cycle could not run.
type View struct {
	Data    *model.ContentBundle
	Loading bool
	Err     error
	State   State
}

// Loader runs exactly one fetch cycle: idle -> loading -> settled.
// Settled is terminal; Refresh starts a new Loader for a new cycle.
type Loader struct {
	f *Fetcher

	mu     sync.Mutex
	state  State
	data   *model.ContentBundle
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoader(f *Fetcher) *Loader {
	return &Loader{f: f, done: make(chan struct{})}
}

// Start begins the cycle in the background. It returns false when the loader
// already left idle.
func (l *Loader) Start(ctx context.Context) bool {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return false
	}
	cctx, cancel := context.WithCancel(ctx)
	l.state = StateLoading
	l.cancel = cancel
	l.mu.Unlock()

	go func() {
		defer cancel()
		b, err := l.f.FetchAll(cctx)
		l.mu.Lock()
		l.data, l.err, l.state = b, err, StateSettled
		l.mu.Unlock()
		close(l.done)
	}()
	return true
}

// Cancel abandons an in-flight cycle; every outstanding request is cancelled.
// The loader still settles, with the context error.
func (l *Loader) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the cycle settles or ctx is done. Waiting on an idle
// loader returns its idle view immediately.
func (l *Loader) Wait(ctx context.Context) (View, error) {
	l.mu.Lock()
	idle := l.state == StateIdle
	l.mu.Unlock()
	if idle {
		return l.View(), nil
	}
	select {
	case <-l.done:
		return l.View(), nil
	case <-ctx.Done():
		return l.View(), ctx.Err()
	}
}

func (l *Loader) View() View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return View{Data: l.data, Loading: l.state == StateLoading, Err: l.err, State: l.state}
}

// Refresh starts a fresh cycle on a new Loader. The receiver's bundle is left untouched.
func (l *Loader) Refresh(ctx context.Context) *Loader {
	n := NewLoader(l.f)
	n.Start(ctx)
	return n
}
