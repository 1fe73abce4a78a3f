package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		t.Error("should not sleep when first attempt succeeds")
		return nil
	}}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoLinearBackoff(t *testing.T) {
	var slept []time.Duration
	p := Policy{MaxAttempts: 3, Delay: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt != calls {
			t.Errorf("attempt = %d, want %d", attempt, calls)
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	// Attempt n waits n*Delay; no sleep after the final attempt
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDoRecoversMidway(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond, Sleep: func(ctx context.Context, d time.Duration) error { return nil }}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoWrapsLastError(t *testing.T) {
	sentinel := errors.New("final failure")
	p := Policy{MaxAttempts: 2, Delay: 0, Sleep: func(ctx context.Context, d time.Duration) error { return nil }}

	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error %v should wrap %v", err, sentinel)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxAttempts: 3, Delay: time.Second}
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		t.Error("fn should not run with cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
