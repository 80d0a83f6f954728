package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PollState is the state of a bounded wait.
type PollState int

const (
	PollWaiting PollState = iota
	PollFound
	PollTimedOut
)

func (s PollState) String() string {
	switch s {
	case PollWaiting:
		return "waiting"
	case PollFound:
		return "found"
	case PollTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("PollState(%d)", int(s))
	}
}

// ErrPollTimeout is returned when the deadline passes before the condition holds.
var ErrPollTimeout = errors.New("poll: deadline exceeded")

// Poller repeatedly evaluates a condition until it holds or a deadline passes.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *Logger
}

// Poll checks cond immediately and then once per Interval. It ends in
// PollFound when cond reports true and in PollTimedOut once Timeout has
// elapsed. An error from cond or a cancelled ctx ends the wait in PollWaiting.
func (p *Poller) Poll(ctx context.Context, operationName string, cond func() (bool, error)) (PollState, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	state := PollWaiting
	attempts := 0
	for state == PollWaiting {
		attempts++
		ok, err := cond()
		if err != nil {
			return state, fmt.Errorf("%s: %w", operationName, err)
		}
		if ok {
			state = PollFound
			break
		}

		select {
		case <-ctx.Done():
			return state, fmt.Errorf("%s: %w", operationName, ctx.Err())
		case <-deadline.C:
			state = PollTimedOut
		case <-ticker.C:
		}
	}

	if p.Logger != nil {
		p.Logger.Debug("[poll] %s finished as %s after %d checks", operationName, state, attempts)
	}
	if state == PollTimedOut {
		return state, fmt.Errorf("%s after %v: %w", operationName, p.Timeout, ErrPollTimeout)
	}
	return state, nil
}
