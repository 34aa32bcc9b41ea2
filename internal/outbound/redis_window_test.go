package outbound

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/model"
)

func newTestRedisWindow(t *testing.T, limit Limit) (*RedisWindow, *fakeClock) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), DisableIndentity: true})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	window := NewRedisWindow(client, "test:window", limit, nil)
	window.SetClock(clock.Now)
	return window, clock
}

func TestRedisWindow(t *testing.T) {
	t.Run("admits N calls then rejects", func(t *testing.T) {
		window, clock := newTestRedisWindow(t, Limit{Calls: 3, Window: time.Minute})

		for i := 0; i < 3; i++ {
			require.NoError(t, window.Reserve(context.Background(), "ai"))
			clock.Advance(time.Second)
		}

		err := window.Reserve(context.Background(), "ai")
		require.ErrorIs(t, err, model.ErrRateLimitExceeded)

		var rateErr *RateLimitError
		require.ErrorAs(t, err, &rateErr)
		assert.Equal(t, 57*time.Second, rateErr.RetryAfter)
	})

	t.Run("admits again once the window passes", func(t *testing.T) {
		window, clock := newTestRedisWindow(t, Limit{Calls: 1, Window: time.Minute})

		require.NoError(t, window.Reserve(context.Background(), "email"))
		require.ErrorIs(t, window.Reserve(context.Background(), "email"), model.ErrRateLimitExceeded)

		clock.Advance(time.Minute)
		require.NoError(t, window.Reserve(context.Background(), "email"))
	})

	t.Run("surfaces redis failures", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DisableIndentity: true, MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })

		window := NewRedisWindow(client, "", Limit{Calls: 1, Window: time.Minute}, nil)
		err := window.Reserve(context.Background(), "ai")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrRateLimitExceeded)
	})
}
