// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/healthdesk/pkg/errors"
)

func fastConfig() RetryConfig {
	return DefaultRetryConfig().WithInitialDelay(time.Millisecond)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastConfig(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", stderrors.New("502 bad gateway")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnNonRecoverable(t *testing.T) {
	calls := 0
	err := fastConfig().Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New(errors.CodeUnauthorized, "bad key", nil)
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected a single attempt, got %d calls, err %v", calls, err)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	last := stderrors.New("third")
	_, err := Retry(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, last
		}
		return 0, stderrors.New("earlier")
	})
	if err != last {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := DefaultRetryConfig().WithInitialDelay(time.Hour)
	calls := 0
	err := rc.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return stderrors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestDefaultIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"typed recoverable", errors.New(errors.CodeRateLimit, "429", nil).WithRecoverable(true), true},
		{"typed fatal", errors.New(errors.CodeStepLimit, "limit", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultIsRecoverable(tt.err); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoRetry(t *testing.T) {
	calls := 0
	_ = NoRetry().Do(context.Background(), func(context.Context) error {
		calls++
		return stderrors.New("x")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
