// Package resilience adapts a circuit breaker into a generic guard
// used by the time-series gateway and document store adapter: trip
// after a run of failures, fast-fail while open, probe once the reset
// timeout elapses.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker fast-fails a call instead of
// attempting it.
var ErrOpen = errors.New("resilience: circuit breaker is open")

// Config tunes the breaker's trip and recovery behavior.
type Config struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second}
}

// Breaker wraps a name'd upstream call with the Closed/Open/HalfOpen
// state machine. It is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	lg   *slog.Logger

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
}

func New(name string, cfg Config, lg *slog.Logger) *Breaker {
	if lg == nil {
		lg = slog.Default()
	}
	return &Breaker{name: name, cfg: cfg, lg: lg, state: Closed}
}

// Execute runs op, tracking failures against the breaker's threshold.
// While Open and before ResetTimeout elapses, it fast-fails with
// ErrOpen without calling op at all.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	state := b.state
	openedAt := b.openedAt
	b.mu.Unlock()

	if state == Open {
		if time.Since(openedAt) < b.cfg.ResetTimeout {
			b.lg.Warn("breaker fast-fail", "name", b.name, "since_open", time.Since(openedAt))
			return ErrOpen
		}
		return b.halfOpenAttempt(ctx, op)
	}

	err := op(ctx)
	if err == nil {
		b.onSuccess()
		return nil
	}
	b.onFailure(err)
	return err
}

func (b *Breaker) halfOpenAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	b.state = HalfOpen
	b.mu.Unlock()
	b.lg.Info("breaker probing", "name", b.name)

	if err := op(ctx); err != nil {
		b.mu.Lock()
		b.state = Open
		b.openedAt = time.Now()
		b.mu.Unlock()
		b.lg.Warn("breaker probe failed, reopening", "name", b.name, "error", err)
		return err
	}

	b.mu.Lock()
	b.state = Closed
	b.recentFails = 0
	b.mu.Unlock()
	b.lg.Info("breaker closed after successful probe", "name", b.name)
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.recentFails = 0
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentFails++
	if b.recentFails >= b.cfg.MaxFailures {
		b.state = Open
		b.openedAt = time.Now()
		b.lg.Error("breaker opened", "name", b.name, "failures", b.recentFails)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
