package recolor

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 30
)

// Poller repeatedly checks a job until it is terminal or the attempt budget runs out.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// OnAttempt is called after every check; optional.
	OnAttempt func(attempt int, job Job)
}

func (p Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

func (p Poller) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Wait polls check every interval. The first check happens after one interval.
// It returns the terminal job, ErrTimeout after exactly MaxAttempts non-terminal
// checks, or ctx.Err() as soon as the context is cancelled.
func (p Poller) Wait(ctx context.Context, taskID string, check func(context.Context, string) (Job, error)) (Job, error) {
	timer := time.NewTimer(p.interval())
	defer timer.Stop()

	var last Job
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		job, err := check(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, fmt.Errorf("recolor: check task %s: %w", taskID, err)
		}
		last = job
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, job)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		timer.Reset(p.interval())
	}
	return last, fmt.Errorf("%w after %d checks (last status %s)", ErrTimeout, p.attempts(), last.Status)
}
