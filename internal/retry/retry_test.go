package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, Config{MaxAttempts: 5, InitialBackoff: time.Millisecond})

	if err != nil {
		t.Errorf("Do() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("always fails")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return sentinel
	}, Config{MaxAttempts: 3, InitialBackoff: time.Millisecond})

	if err == nil {
		t.Fatal("Do() = nil, want error")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Do() = %v, want wrapped %v", err, sentinel)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error {
		return errors.New("fail")
	}, Config{MaxAttempts: 3, InitialBackoff: time.Second})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
}

func TestBackoff_ExponentialAndCapped(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first attempt", attempt: 0, want: time.Second},
		{name: "second attempt", attempt: 1, want: 2 * time.Second},
		{name: "third attempt", attempt: 2, want: 4 * time.Second},
		{name: "capped at max", attempt: 6, want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backoff(tt.attempt, time.Second, 10*time.Second)
			if got != tt.want {
				t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
