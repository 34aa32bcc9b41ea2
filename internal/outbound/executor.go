package outbound

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"marketing-backend/internal/model"
)

const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeRateLimited = "rate_limited"
	OutcomeCanceled    = "canceled"
)

// Call performs one attempt against an external service.
type Call func(ctx context.Context) error

// Observer receives one observation per Execute.
type Observer interface {
	ObserveCall(target string, outcome string, attempts int, elapsed time.Duration)
}

// Executor runs calls to external services under a rate window, a
// per-attempt timeout, and exponential-backoff retries on transient failure.
type Executor struct {
	window   RateWindow
	policy   Policy
	observer Observer
	log      *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Executor)

func WithObserver(observer Observer) Option {
	return func(e *Executor) { e.observer = observer }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

func NewExecutor(window RateWindow, policy Policy, opts ...Option) *Executor {
	e := &Executor{
		window: window,
		policy: policy.normalized(),
		log:    slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Policy() Policy { return e.policy }

// Execute runs call against target. It returns nil on success, a
// *RateLimitError when the window is full, an *UpstreamError once the call
// is rejected or retries are exhausted, or the context error when ctx ends.
func (e *Executor) Execute(ctx context.Context, target string, call Call) error {
	started := time.Now()
	attempts, outcome, err := e.run(ctx, target, call)
	if e.observer != nil {
		e.observer.ObserveCall(target, outcome, attempts, time.Since(started))
	}
	return err
}

func (e *Executor) run(ctx context.Context, target string, call Call) (int, string, error) {
	var lastErr error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, OutcomeCanceled, err
		}

		if e.window != nil {
			if err := e.window.Reserve(ctx, target); err != nil {
				var rateErr *RateLimitError
				if errors.As(err, &rateErr) {
					e.log.Warn("outbound call rate limited",
						"target", target,
						"attempt", attempt,
						"retry_after", rateErr.RetryAfter,
					)
					return attempt - 1, OutcomeRateLimited, err
				}
				return attempt - 1, OutcomeUnavailable, &UpstreamError{Target: target, Attempts: attempt - 1, Kind: model.ErrUpstreamUnavailable, Err: err}
			}
		}

		err := e.attempt(ctx, call)
		if err == nil {
			return attempt, OutcomeSuccess, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, OutcomeCanceled, ctxErr
		}

		lastErr = err
		if !IsTransient(err) {
			e.log.Warn("outbound call rejected",
				"target", target,
				"attempt", attempt,
				"error", err.Error(),
			)
			return attempt, OutcomeRejected, &UpstreamError{Target: target, Attempts: attempt, Kind: model.ErrUpstreamRejected, Err: err}
		}

		if attempt == e.policy.MaxAttempts {
			break
		}

		backoff := e.policy.Backoff(attempt)
		e.log.Warn("outbound call failed, retrying",
			"target", target,
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"backoff", backoff,
			"error", err.Error(),
		)
		if err := e.sleep(ctx, backoff); err != nil {
			return attempt, OutcomeCanceled, err
		}
	}

	e.log.Error("outbound call unavailable",
		"target", target,
		"attempts", e.policy.MaxAttempts,
		"error", lastErr.Error(),
	)
	return e.policy.MaxAttempts, OutcomeUnavailable, &UpstreamError{
		Target:   target,
		Attempts: e.policy.MaxAttempts,
		Kind:     model.ErrUpstreamUnavailable,
		Err:      lastErr,
	}
}

func (e *Executor) attempt(ctx context.Context, call Call) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
	defer cancel()
	return call(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
