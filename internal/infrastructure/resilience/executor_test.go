package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesUntilBackendRecovers(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	errFlaky := errors.New("connection reset")
	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errFlaky), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnFinalFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	errBadModel := errors.New("embedding model not found")
	err := exec.Execute(context.Background(), "ollama.embed", func(context.Context) error {
		attempts++
		return errBadModel
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	})
	if !errors.Is(err, errBadModel) {
		t.Fatalf("expected the backend error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteTreatsNilClassifierAsFinal(t *testing.T) {
	exec := NewExecutor(fastRetryConfig())

	attempts := 0
	errDown := errors.New("no servers available")
	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		attempts++
		return errDown
	}, nil)
	if !errors.Is(err, errDown) {
		t.Fatalf("expected the backend error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteAbortsBackoffWhenContextCanceled(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryInitialBackoff = 50 * time.Millisecond
	cfg.RetryMaxBackoff = 50 * time.Millisecond
	exec := NewExecutor(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	errFlaky := errors.New("timeout")
	err := exec.Execute(ctx, "qdrant.search", func(context.Context) error {
		attempts++
		cancel()
		return errFlaky
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected the backend error once backoff was canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancellation during backoff must stop retries, got %d attempts", attempts)
	}
}

func TestExecuteOpensBreakerAfterRepeatedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("connection refused")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errDown
		}, classifier)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected backend error on call %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		t.Fatal("open breaker must not reach the backend")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected the open-state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen must recognize %v", err)
	}
}

func TestBreakersAreScopedPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("connection refused")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errDown
		}, classifier)
	}

	err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
		return nil
	}, classifier)
	if err != nil {
		t.Fatalf("an open qdrant breaker must not block nats publishes: %v", err)
	}
}

func TestConfigWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()

	if cfg.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("RetryMaxAttempts = %d, want %d", cfg.RetryMaxAttempts, def.RetryMaxAttempts)
	}
	if cfg.RetryInitialBackoff != def.RetryInitialBackoff || cfg.RetryMaxBackoff != def.RetryMaxBackoff {
		t.Fatalf("backoff defaults not applied: %+v", cfg)
	}
	if cfg.BreakerMinRequests != def.BreakerMinRequests || cfg.BreakerOpenTimeout != def.BreakerOpenTimeout {
		t.Fatalf("breaker defaults not applied: %+v", cfg)
	}

	clamped := Config{RetryInitialBackoff: 100 * time.Millisecond, RetryMaxBackoff: 10 * time.Millisecond}.withDefaults()
	if clamped.RetryMaxBackoff < clamped.RetryInitialBackoff {
		t.Fatalf("max backoff must not undercut the initial backoff: %+v", clamped)
	}
}
