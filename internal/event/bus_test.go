package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_FanOut(t *testing.T) {
	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	bus.Publish(New(TypeContactSubmitted, "", map[string]string{"id": "c1"}))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, TypeContactSubmitted, e.Type)
			assert.NotEmpty(t, e.ID)
			assert.NotEmpty(t, e.Timestamp)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestInMemoryBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	bus.Publish(New(TypeContentCreated, "p1", nil))
}

func TestInMemoryBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(New(TypeContentUpdated, "", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	require.Len(t, ch, subscriberBuffer)
}
