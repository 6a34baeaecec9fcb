package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestWithRetry(t *testing.T) {
	transient := errors.New("connection reset")

	tests := []struct {
		failures  []error
		wantIs    error
		name      string
		attempts  int
		wantCalls int
	}{
		{name: "first try", attempts: 3, wantCalls: 1},
		{name: "recovers", failures: []error{transient, transient}, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: []error{transient, transient, transient}, attempts: 3, wantCalls: 3, wantIs: ErrMaxRetries},
		{
			name:      "not retryable",
			failures:  []error{&RetryableError{Err: transient, Retryable: false}},
			attempts:  3,
			wantCalls: 1,
			wantIs:    transient,
		},
		{name: "rate limited", failures: []error{ErrRateLimit}, attempts: 2, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			}, fastRetry(tt.attempts))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantIs == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestWithRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return errors.New("flaky")
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Hour})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "rate limit", err: ErrRateLimit, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "marked retryable", err: &RetryableError{Err: errors.New("503"), Retryable: true}, want: true},
		{name: "marked permanent", err: &RetryableError{Err: errors.New("404")}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "nil", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
