package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultDeliveryTimeout = 2 * time.Minute
	defaultDeliveryWait    = 5 * time.Second
)

// Delivery runs best-effort sends off the request path. Each task gets a
// context detached from the caller and bounded by timeout, so a hung provider
// can neither outlive shutdown nor hold a request open.
type Delivery struct {
	wg      sync.WaitGroup
	timeout time.Duration
	wait    time.Duration
}

// NewDelivery builds a runner. timeout bounds each task; wait bounds how long
// Send blocks its caller for the outcome.
func NewDelivery(timeout time.Duration, wait time.Duration) *Delivery {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	if wait <= 0 {
		wait = defaultDeliveryWait
	}
	return &Delivery{timeout: timeout, wait: wait}
}

// Send starts fn and reports true only when it succeeds within the wait
// budget. A task still running when the budget ends keeps going in the
// background and its failure is logged.
func (d *Delivery) Send(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...any) bool {
	result := d.start(ctx, name, fn, attrs)

	timer := time.NewTimer(d.wait)
	defer timer.Stop()

	select {
	case err := <-result:
		return err == nil
	case <-timer.C:
		slog.Warn("delivery still pending, responding without it", append([]any{"task", name}, attrs...)...)
		return false
	case <-ctx.Done():
		return false
	}
}

// Dispatch starts fn without waiting for it.
func (d *Delivery) Dispatch(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...any) {
	d.start(ctx, name, fn, attrs)
}

// Wait blocks until every started task has finished or ctx ends.
func (d *Delivery) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Delivery) start(ctx context.Context, name string, fn func(ctx context.Context) error, attrs []any) <-chan error {
	result := make(chan error, 1)
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()

		err := fn(taskCtx)
		if err != nil {
			slog.Warn(name+" failed", append(attrs, "error", err)...)
		}
		result <- err
	}()

	return result
}
