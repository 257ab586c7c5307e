package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stagecast/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoomEvent is one room-scoped message fanned out across gateway nodes.
// The carried frame is an already-encoded protocol envelope; the bus never
// inspects it.
type RoomEvent struct {
	InstanceID string          `json:"instance_id"`
	Room       domain.RoomID   `json:"room"`
	Timestamp  time.Time       `json:"timestamp"`
	Frame      json.RawMessage `json:"frame"`
}

// RoomEventBus fans room broadcasts out to every gateway node through Redis
// pub/sub. A single-node gateway runs without one.
type RoomEventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
	channel    string
}

func NewRoomEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *RoomEventBus {
	return &RoomEventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channel:    "stagecast:room-events",
	}
}

// Publish sends a room frame to all other nodes.
func (b *RoomEventBus) Publish(ctx context.Context, room domain.RoomID, frame []byte) error {
	event := RoomEvent{
		InstanceID: b.instanceID,
		Room:       room,
		Timestamp:  time.Now(),
		Frame:      frame,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal room event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish room event: %w", err)
	}

	b.logger.Debugw("published room event", "room", room)
	return nil
}

// Subscribe blocks delivering remote room frames to handler. Frames
// published by this instance are skipped.
func (b *RoomEventBus) Subscribe(ctx context.Context, handler func(room domain.RoomID, frame []byte)) error {
	if b.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	b.pubsub = b.client.Subscribe(ctx, b.channel)
	defer b.pubsub.Close()

	ch := b.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("failed to unmarshal room event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if event.InstanceID == b.instanceID {
				continue
			}

			handler(event.Room, event.Frame)
		}
	}
}

// Close closes the event bus
func (b *RoomEventBus) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
