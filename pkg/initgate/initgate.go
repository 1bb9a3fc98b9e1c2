// Package initgate runs one-time setup, such as creating index tables, at most once per
// UTC day and retries on the next call after a failure.
package initgate

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// Gate guards an initializer. Concurrent callers block while it runs.
type Gate struct {
	mu    sync.Mutex
	clock Clock
	state State
	epoch string
}

func New(clock Clock) *Gate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Gate{clock: clock}
}

func epochOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Ensure runs init unless it already succeeded today. A failed init leaves the gate
// uninitialized and returns the error.
func (g *Gate) Ensure(ctx context.Context, init func(ctx context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := epochOf(g.clock.Now())
	if g.state == Ready && g.epoch == today {
		return nil
	}
	if err := init(ctx); err != nil {
		g.state = Uninitialized
		return err
	}
	g.state = Ready
	g.epoch = today
	return nil
}

// State reports the current state and the epoch it was reached in.
func (g *Gate) State() (State, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.epoch
}

// Reset forces the next Ensure to run init.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Uninitialized
	g.epoch = ""
}
