package outbound

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/model"
)

type observation struct {
	target   string
	outcome  string
	attempts int
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []observation
}

func (o *recordingObserver) ObserveCall(target string, outcome string, attempts int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, observation{target: target, outcome: outcome, attempts: attempts})
}

func (o *recordingObserver) last() observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[len(o.calls)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(window RateWindow, policy Policy) (*Executor, *recordingObserver) {
	observer := &recordingObserver{}
	return NewExecutor(window, policy, WithObserver(observer), WithLogger(quietLogger())), observer
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	base := 20 * time.Millisecond
	executor, observer := newTestExecutor(nil, Policy{MaxAttempts: 3, BaseDelay: base, Timeout: time.Second})

	calls := 0
	started := time.Now()
	err := executor.Execute(context.Background(), "ai", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	})
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, elapsed, base+2*base)
	assert.Equal(t, observation{target: "ai", outcome: OutcomeSuccess, attempts: 3}, observer.last())
}

func TestExecutorExhaustsRetries(t *testing.T) {
	t.Parallel()

	executor, observer := newTestExecutor(nil, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second})

	calls := 0
	err := executor.Execute(context.Background(), "email", func(ctx context.Context) error {
		calls++
		return &StatusError{StatusCode: http.StatusServiceUnavailable}
	})

	require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, model.ErrUpstreamRejected)
	assert.Equal(t, 3, calls)

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, 3, upstreamErr.Attempts)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, OutcomeUnavailable, observer.last().outcome)
}

func TestExecutorDoesNotRetryNonTransientFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"forbidden":       &StatusError{StatusCode: http.StatusForbidden},
		"bad request":     &StatusError{StatusCode: http.StatusBadRequest},
		"malformed body":  &MalformedResponseError{Reason: "no choices"},
		"validation fail": errors.New("prompt is required"),
	}

	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			executor, observer := newTestExecutor(nil, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second})

			calls := 0
			err := executor.Execute(context.Background(), "ai", func(ctx context.Context) error {
				calls++
				return failure
			})

			require.ErrorIs(t, err, model.ErrUpstreamRejected)
			require.ErrorIs(t, err, failure)
			assert.Equal(t, 1, calls)
			assert.Equal(t, observation{target: "ai", outcome: OutcomeRejected, attempts: 1}, observer.last())
		})
	}
}

func TestExecutorTreatsAttemptTimeoutAsTransient(t *testing.T) {
	t.Parallel()

	executor, _ := newTestExecutor(nil, Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Timeout: 10 * time.Millisecond})

	calls := 0
	err := executor.Execute(context.Background(), "ai", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecutorRateLimitRejectsBeforeCalling(t *testing.T) {
	t.Parallel()

	window := NewSlidingWindow(Limit{Calls: 2, Window: time.Minute}, nil)
	executor, observer := newTestExecutor(window, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second})

	calls := 0
	call := func(ctx context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, executor.Execute(context.Background(), "ai", call))
	require.NoError(t, executor.Execute(context.Background(), "ai", call))

	err := executor.Execute(context.Background(), "ai", call)
	require.ErrorIs(t, err, model.ErrRateLimitExceeded)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Positive(t, rateErr.RetryAfter)
	assert.Equal(t, 2, calls)
	assert.Equal(t, observation{target: "ai", outcome: OutcomeRateLimited, attempts: 0}, observer.last())
}

func TestExecutorCancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancel during backoff returns promptly", func(t *testing.T) {
		executor, observer := newTestExecutor(nil, Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Timeout: time.Second})

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- executor.Execute(ctx, "ai", func(ctx context.Context) error {
				calls++
				return &StatusError{StatusCode: http.StatusBadGateway}
			})
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, 1, calls)
			assert.Equal(t, OutcomeCanceled, observer.last().outcome)
		case <-time.After(2 * time.Second):
			t.Fatal("executor did not stop after cancellation")
		}
	})

	t.Run("cancel during call is not retried", func(t *testing.T) {
		executor, _ := newTestExecutor(nil, Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Minute})

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := executor.Execute(ctx, "ai", func(callCtx context.Context) error {
			calls++
			cancel()
			<-callCtx.Done()
			return callCtx.Err()
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("already canceled context never calls", func(t *testing.T) {
		executor, _ := newTestExecutor(nil, DefaultPolicy())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := executor.Execute(ctx, "ai", func(ctx context.Context) error {
			t.Fatal("call must not run")
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusInternalServerError}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(&StatusError{StatusCode: http.StatusForbidden}))
	assert.False(t, IsTransient(&MalformedResponseError{Reason: "empty"}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}
