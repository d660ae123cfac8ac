// SPDX-License-Identifier: MIT

package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster mirrors every Bus event onto a Redis pub/sub channel so
// an external analytics process can observe playback decisions without
// being wired into this process. It is optional: a nil RedisBroadcaster is
// simply never attached.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisBroadcaster wraps client to publish on channel.
func NewRedisBroadcaster(client *redis.Client, channel string, logger zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel, logger: logger}
}

// Attach subscribes to bus and republishes every event to Redis until ctx
// is cancelled. Publish failures are logged, never fatal, analytics
// fan-out is best-effort and must never affect playback.
func (r *RedisBroadcaster) Attach(ctx context.Context, bus *Bus) {
	ch, cancel := bus.Subscribe(ctx)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(e)
				if err != nil {
					r.logger.Warn().Err(err).Msg("failed to marshal event for redis fan-out")
					continue
				}
				if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
					r.logger.Warn().Err(err).Msg("redis publish failed")
				}
			}
		}
	}()
}
