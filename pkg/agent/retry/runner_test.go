package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/icsnexus/otcollector/pkg/agent/retry"
)

func TestRunner_SucceedsAfterFailures(t *testing.T) {
	r := retry.New(retry.Policy{Retries: 3, InitialBackoff: time.Millisecond}, nil)

	attempts := 0
	err := r.Do(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRunner_ExhaustsRetryBudget(t *testing.T) {
	r := retry.New(retry.Policy{Retries: 2, InitialBackoff: time.Millisecond}, nil)

	attempts := 0
	err := r.Do(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatal("Do() error = nil, want non-nil")
	}
	if attempts != 3 { // 1 initial + 2 retries
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRunner_PerAttemptTimeout(t *testing.T) {
	r := retry.New(retry.Policy{Retries: 0, Timeout: 10 * time.Millisecond}, nil)

	err := r.Do(context.Background(), "test", func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err == nil {
		t.Fatal("Do() error = nil, want deadline exceeded")
	}
}

func TestRunner_NonRetryablePredicateStopsImmediately(t *testing.T) {
	sentinel := errors.New("do not retry")
	r := retry.New(retry.Policy{
		Retries:        5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return !errors.Is(err, sentinel) },
	}, nil)

	attempts := 0
	err := r.Do(context.Background(), "test", func(ctx context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}
