// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"testing"
	"time"

	"github.com/reelstack/playcore/internal/statetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeSeesOnlyFutureEvents(t *testing.T) {
	bus := New(8)

	bus.Publish(Event{ID: "before", NewState: statetable.Queued})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, _ := bus.Subscribe(ctx)

	bus.Publish(Event{ID: "after", NewState: statetable.Ready})

	select {
	case e := <-ch:
		assert.Equal(t, "after", e.ID)
	case <-time.After(time.Second):
		t.Fatal("expected event not received")
	}
}

func TestBus_SlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	bus := New(1)
	ch, cancel := bus.Subscribe(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	<-ch // drain one so the goroutine above isn't leaked mid-send
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	ch, unsubscribe := bus.Subscribe(ctx)
	_ = cancel
	unsubscribe()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}
