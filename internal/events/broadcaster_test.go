// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRedisBroadcaster_AttachRepublishesEventsToChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(context.Background(), "playcore.events")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	bus := New(8)
	rb := NewRedisBroadcaster(client, "playcore.events", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rb.Attach(ctx, bus)

	bus.Publish(Event{ID: "v1", OldState: statetable.Queued, NewState: statetable.Ready, At: time.Now()})

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	require.Equal(t, "v1", got.ID)
	require.Equal(t, statetable.Ready, got.NewState)
}
