package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollerFoundImmediately(t *testing.T) {
	p := &Poller{Interval: 10 * time.Millisecond, Timeout: time.Second}

	state, err := p.Poll(context.Background(), "ready", func() (bool, error) { return true, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != PollFound {
		t.Errorf("state: got %s, want found", state)
	}
}

func TestPollerFoundAfterSeveralChecks(t *testing.T) {
	p := &Poller{Interval: 5 * time.Millisecond, Timeout: time.Second}

	calls := 0
	state, err := p.Poll(context.Background(), "third", func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != PollFound || calls != 3 {
		t.Errorf("got state %s after %d calls, want found after 3", state, calls)
	}
}

func TestPollerTimesOut(t *testing.T) {
	p := &Poller{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}

	start := time.Now()
	state, err := p.Poll(context.Background(), "never", func() (bool, error) { return false, nil })
	if state != PollTimedOut {
		t.Errorf("state: got %s, want timed-out", state)
	}
	if !errors.Is(err, ErrPollTimeout) {
		t.Errorf("expected ErrPollTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, before the deadline", elapsed)
	}
}

func TestPollerConditionError(t *testing.T) {
	p := &Poller{Interval: 5 * time.Millisecond, Timeout: time.Second}
	boom := errors.New("boom")

	state, err := p.Poll(context.Background(), "broken", func() (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped condition error, got %v", err)
	}
	if state != PollWaiting {
		t.Errorf("state: got %s, want waiting", state)
	}
}

func TestPollerContextCancelled(t *testing.T) {
	p := &Poller{Interval: 5 * time.Millisecond, Timeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Poll(ctx, "cancelled", func() (bool, error) { return false, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
