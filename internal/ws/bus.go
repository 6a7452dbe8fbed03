package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/duochat/internal/logger"
)

// Envelope is one event crossing the inter-instance bus. Room membership is
// process-local, so each instance delivers the event to its own rooms.
type Envelope struct {
	Origin     string          `json:"origin"`
	Global     bool            `json:"global,omitempty"`
	Room       string          `json:"room,omitempty"`
	ExceptUser string          `json:"except_user,omitempty"`
	Event      OutgoingMessage `json:"event"`
}

// Bus fans events out to the other gateway instances. nil Bus means a
// single-instance deployment.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, deliver func(Envelope)) error
}

// RedisBus bridges hubs through a Redis pub/sub channel. Delivery is
// best-effort: a restarting subscriber misses events published meanwhile.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	id      string
}

func NewRedisBus(rdb *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = "duochat:events"
	}
	return &RedisBus{rdb: rdb, channel: channel, id: uuid.New().String()}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	env.Origin = b.id
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Subscribe blocks delivering remote-origin envelopes until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				logger.Errorf("ws bus unmarshal: %v", err)
				continue
			}
			if env.Origin == b.id {
				continue
			}
			deliver(env)
		}
	}
}

// publish forwards an event to the other instances; no-op without a bus.
func (h *Hub) publish(env Envelope) {
	if h.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.bus.Publish(ctx, env); err != nil {
		logger.Errorf("ws bus publish: %v", err)
	}
}

// runBus feeds remote events into the local rooms until ctx is done.
func (h *Hub) runBus(ctx context.Context) {
	if err := h.bus.Subscribe(ctx, func(env Envelope) {
		switch {
		case env.Global:
			h.deliverGlobal(env.Event)
		case env.ExceptUser != "":
			h.broadcastRoomExcept(env.Room, env.ExceptUser, env.Event)
		default:
			h.deliverRoom(env.Room, env.Event)
		}
	}); err != nil && ctx.Err() == nil {
		logger.Errorf("ws bus subscribe: %v", err)
	}
}
