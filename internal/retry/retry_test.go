package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	attempts := 0
	cfg := Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := Do(context.Background(), cfg, nil, func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_PermanentError(t *testing.T) {
	attempts := 0
	permanentErr := errors.New("permanent")
	cfg := Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	// Classifier that marks this error as non-retryable
	classifier := func(err error) bool {
		return !errors.Is(err, permanentErr)
	}

	err := Do(context.Background(), cfg, classifier, func(ctx context.Context) error {
		attempts++
		return permanentErr
	})

	if !errors.Is(err, permanentErr) {
		t.Errorf("Do() returned error = %v, want %v", err, permanentErr)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_RetryableError(t *testing.T) {
	attempts := 0
	tempErr := errors.New("temporary")
	successAfter := 2
	cfg := Config{
		MaxRetries:     5,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := Do(context.Background(), cfg, nil, func(ctx context.Context) error {
		attempts++
		if attempts <= successAfter {
			return tempErr
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != successAfter+1 {
		t.Errorf("Do() made %d attempts, want %d", attempts, successAfter+1)
	}
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	attempts := 0
	tempErr := errors.New("temporary")
	cfg := Config{
		MaxRetries:     3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := Do(context.Background(), cfg, nil, func(ctx context.Context) error {
		attempts++
		return tempErr
	})

	if !errors.Is(err, tempErr) {
		t.Errorf("Do() returned error = %v, want wrapped %v", err, tempErr)
	}
	if attempts != cfg.MaxRetries+1 {
		t.Errorf("Do() made %d attempts, want %d", attempts, cfg.MaxRetries+1)
	}
}

func TestDo_NonDecreasingBackoff(t *testing.T) {
	var callTimes []time.Time
	tempErr := errors.New("temporary")
	cfg := Config{
		MaxRetries:     3,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}

	_ = Do(context.Background(), cfg, nil, func(ctx context.Context) error {
		callTimes = append(callTimes, time.Now())
		return tempErr
	})

	if len(callTimes) != cfg.MaxRetries+1 {
		t.Fatalf("Do() made %d attempts, want %d", len(callTimes), cfg.MaxRetries+1)
	}

	var prev time.Duration
	for i := 1; i < len(callTimes); i++ {
		gap := callTimes[i].Sub(callTimes[i-1])
		if gap < prev {
			t.Errorf("delay between attempts %d and %d = %v, shorter than previous %v", i, i+1, gap, prev)
		}
		prev = gap
	}
}

func TestBackoffDelay_StableAtCap(t *testing.T) {
	cfg := Config{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 1.0, // maximum jitter to expose any downward wobble
	}

	// A saturated base must always sleep exactly MaxBackoff, never less
	for i := 0; i < 100; i++ {
		if got := backoffDelay(cfg.MaxBackoff, cfg); got != cfg.MaxBackoff {
			t.Fatalf("backoffDelay(at cap) = %v, want exactly %v", got, cfg.MaxBackoff)
		}
		if got := backoffDelay(2*cfg.MaxBackoff, cfg); got != cfg.MaxBackoff {
			t.Fatalf("backoffDelay(beyond cap) = %v, want exactly %v", got, cfg.MaxBackoff)
		}
	}

	// Below the cap the jittered sleep still never exceeds MaxBackoff
	for i := 0; i < 100; i++ {
		if got := backoffDelay(30*time.Millisecond, cfg); got > cfg.MaxBackoff {
			t.Fatalf("backoffDelay(below cap) = %v, exceeds %v", got, cfg.MaxBackoff)
		}
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	attempts := 0
	tempErr := errors.New("temporary")
	cfg := Config{
		MaxRetries:     10,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Multiplier:     2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())

	err := Do(ctx, cfg, nil, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return tempErr
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() returned error = %v, want context.Canceled", err)
	}
	if attempts != 2 {
		t.Errorf("Do() made %d attempts, want 2", attempts)
	}
}

func TestIsRetryable_ContextErrors(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Error("IsRetryable(context.Canceled) = true, want false")
	}
	if IsRetryable(context.DeadlineExceeded) {
		t.Error("IsRetryable(context.DeadlineExceeded) = true, want false")
	}
	if !IsRetryable(errors.New("network error")) {
		t.Error("IsRetryable(generic error) = false, want true")
	}
}
