// Package poll runs a blocking check-until-ready loop with a fixed interval
// and an overall deadline.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the deadline passes before the check reports
// completion.
var ErrTimeout = errors.New("poll: deadline exceeded")

// CheckFunc inspects the remote job once. It returns done=true when the job
// reached a successful terminal state, or an error for a failed one.
type CheckFunc func(ctx context.Context, attempt int) (done bool, err error)

// Config bounds a poll loop. Sleep and Now default to the real clock.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
}

// Until sleeps for the interval, runs check, and repeats until check is done,
// check fails, or more than Timeout has elapsed since the first call.
func Until(ctx context.Context, cfg Config, check CheckFunc) error {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	started := now()

	for attempt := 1; ; attempt++ {
		if err := sleep(ctx, cfg.Interval); err != nil {
			return err
		}
		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if cfg.Timeout > 0 && now().Sub(started) > cfg.Timeout {
			return ErrTimeout
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
