package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelivery_SendReportsOutcome(t *testing.T) {
	d := NewDelivery(time.Second, time.Second)

	assert.True(t, d.Send(context.Background(), "ok", func(context.Context) error { return nil }))
	assert.False(t, d.Send(context.Background(), "fail", func(context.Context) error { return errors.New("boom") }))
}

func TestDelivery_SendStopsWaitingAfterBudget(t *testing.T) {
	d := NewDelivery(time.Second, 20*time.Millisecond)
	release := make(chan struct{})

	started := time.Now()
	ok := d.Send(context.Background(), "slow", func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.False(t, ok)
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded, "task still running")

	close(release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestDelivery_TaskContextIsDetachedButBounded(t *testing.T) {
	d := NewDelivery(30*time.Millisecond, time.Second)

	parent, cancel := context.WithCancel(context.Background())
	cancel()

	var taskErr error
	d.Dispatch(parent, "bounded", func(ctx context.Context) error {
		<-ctx.Done()
		taskErr = ctx.Err()
		return taskErr
	})

	require.NoError(t, d.Wait(context.Background()))
	assert.ErrorIs(t, taskErr, context.DeadlineExceeded)
}
