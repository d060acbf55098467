package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ── Rate source breaker ──────────────────────────────────────────────────────
// After Failures consecutive fetch errors the source is suspended for
// Cooldown. The first fetch after the cooldown is a trial: success
// resumes normal fetching, failure suspends the source again.

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrSourceSuspended matches every SuspendedError.
var ErrSourceSuspended = errors.New("rate source suspended")

// SuspendedError is returned instead of fetching while the breaker is open.
type SuspendedError struct {
	RetryAt time.Time
	Last    error
}

func (e *SuspendedError) Error() string {
	msg := "rate source suspended until " + e.RetryAt.UTC().Format(time.RFC3339)
	if e.Last != nil {
		msg += " (last error: " + e.Last.Error() + ")"
	}
	return msg
}

func (e *SuspendedError) Is(target error) bool { return target == ErrSourceSuspended }

func (e *SuspendedError) Unwrap() error { return e.Last }

// BreakerConfig comes from RATE_BREAKER_FAILURES and RATE_BREAKER_COOLDOWN.
type BreakerConfig struct {
	Failures int
	Cooldown time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Failures: 3, Cooldown: 2 * time.Minute}
}

// BreakerStatus is a point-in-time view for health checks and rate quotes.
// RetryAt is zero unless the breaker is open.
type BreakerStatus struct {
	State     BreakerState
	Failures  int
	LastError string
	RetryAt   time.Time
}

type RateBreaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	now      func() time.Time
	state    BreakerState
	failures int
	trialing bool
	openedAt time.Time
	lastErr  error
}

func NewRateBreaker(cfg BreakerConfig) *RateBreaker {
	def := DefaultBreakerConfig()
	if cfg.Failures <= 0 {
		cfg.Failures = def.Failures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &RateBreaker{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source. Tests use it to step past the cooldown.
func (b *RateBreaker) WithClock(now func() time.Time) *RateBreaker {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	return b
}

func (b *RateBreaker) State() BreakerState {
	return b.Status().State
}

func (b *RateBreaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	st := BreakerStatus{State: b.state, Failures: b.failures}
	if b.lastErr != nil {
		st.LastError = b.lastErr.Error()
	}
	if b.state == BreakerOpen {
		st.RetryAt = b.openedAt.Add(b.cfg.Cooldown)
	}
	return st
}

// advance moves an open breaker to half-open once the cooldown elapsed.
// Caller holds mu.
func (b *RateBreaker) advance() {
	if b.state == BreakerOpen && !b.now().Before(b.openedAt.Add(b.cfg.Cooldown)) {
		b.state = BreakerHalfOpen
		b.trialing = false
	}
}

// Fetch runs fetch unless the source is suspended. While half-open only one
// caller runs the trial fetch; concurrent callers get a SuspendedError.
func (b *RateBreaker) Fetch(ctx context.Context, fetch func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	b.mu.Lock()
	b.advance()
	switch {
	case b.state == BreakerOpen:
		err := &SuspendedError{RetryAt: b.openedAt.Add(b.cfg.Cooldown), Last: b.lastErr}
		b.mu.Unlock()
		return decimal.Zero, err
	case b.state == BreakerHalfOpen && b.trialing:
		err := &SuspendedError{RetryAt: b.now(), Last: b.lastErr}
		b.mu.Unlock()
		return decimal.Zero, err
	case b.state == BreakerHalfOpen:
		b.trialing = true
	}
	b.mu.Unlock()

	rate, err := fetch(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.fail(err)
		return decimal.Zero, err
	}
	b.state, b.failures, b.trialing, b.lastErr = BreakerClosed, 0, false, nil
	return rate, nil
}

// fail records a fetch error. Caller holds mu.
func (b *RateBreaker) fail(err error) {
	b.lastErr = err
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Failures {
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.trialing = false
	}
}

func (s BreakerStatus) String() string {
	if s.State == BreakerOpen {
		return fmt.Sprintf("%s until %s", s.State, s.RetryAt.UTC().Format(time.RFC3339))
	}
	return s.State.String()
}
