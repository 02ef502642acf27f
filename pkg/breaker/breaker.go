package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker is open and calls are short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Config controls when the breaker opens and closes.
type Config struct {
	// FailureThreshold is the run of consecutive failures that opens the breaker.
	FailureThreshold int
	// Cooldown is how long calls are short-circuited after the breaker opens.
	Cooldown time.Duration
	// SuccessThreshold is the run of consecutive successes in half-open state
	// required to close the breaker again.
	SuccessThreshold int
}

// Breaker is a consecutive-failure circuit breaker for a single external
// dependency. It is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     state
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// New creates a closed breaker. Zero-valued config fields get sane defaults.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. It returns ErrOpen while the
// breaker is open and the cooldown has not elapsed; once it elapses the
// breaker moves to half-open and lets calls through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.successes = 0
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = stateClosed
			b.failures = 0
			b.successes = 0
		}
	case stateClosed:
		b.failures = 0
	}
}

// Failure records a failed call. In half-open state a single failure reopens
// the breaker immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.open()
	case stateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	}
}

// Do runs fn under the breaker, recording its outcome.
func (b *Breaker) Do(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.Failure()
		return err
	}
	b.Success()
	return nil
}

func (b *Breaker) open() {
	b.state = stateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}
