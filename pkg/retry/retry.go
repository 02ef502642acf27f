package retry

import (
	"context"
	"math/rand"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Do calls fn up to cfg.MaxAttempts times with randomized exponential backoff
// starting at cfg.BaseDelay and capped at cfg.MaxDelay. It returns nil on the
// first successful call, or the last error if all attempts fail. Context
// cancellation is respected between attempts.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var err error
	delay := cfg.BaseDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter(delay)):
			}
			delay *= 2
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return err
}

// jitter spreads the delay uniformly over [delay/2, delay) so that
// concurrent callers don't retry in lockstep.
func jitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
