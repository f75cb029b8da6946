package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "room:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance
// broadcast. Origin carries the publishing instance's ID so an instance can
// skip its own messages (local delivery already happened in Broadcast).
type redisPayload struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// RedisPubSub bridges room broadcasts across server instances over Redis
// pub/sub. Implements RoomPublisher and RoomSubscriber.
type RedisPubSub struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string
}

// NewRedisPubSub creates a Redis pub/sub bridge for room events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger, instanceID: uuid.New().String()}
}

// PublishRoomEvent publishes an event to the room's Redis channel.
func (r *RedisPubSub) PublishRoomEvent(room, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{
		Origin: r.instanceID,
		Event:  event,
		Data:   payload,
		At:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+room, body).Err()
}

// SubscribeRoom subscribes to a room's Redis channel and calls handler for
// each message published by another instance. Returns a cancel function to
// stop the subscription.
func (r *RedisPubSub) SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+room)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", room, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("bad room payload", zap.String("room", room), zap.Error(err))
					continue
				}
				if p.Origin == r.instanceID {
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
