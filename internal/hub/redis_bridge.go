package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"shelfmate/backend/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RealtimeChannel is the redis pub/sub channel every instance listens on.
const RealtimeChannel = "shelfmate:realtime"

type envelope struct {
	UserID uint            `json:"user_id"`
	Event  json.RawMessage `json:"event"`
}

// RedisBridge fans events out to every instance through redis pub/sub, so a
// user connected to another instance still gets the push. Each instance runs
// the bridge and forwards what it receives into its local Hub.
type RedisBridge struct {
	rdb    *redis.Client
	local  *Hub
	logger *zap.Logger
}

func NewRedisBridge(rdb *redis.Client, local *Hub, logger *zap.Logger) *RedisBridge {
	return &RedisBridge{rdb: rdb, local: local, logger: logger}
}

// Notify publishes the event for userID to all instances.
func (b *RedisBridge) Notify(userID uint, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{UserID: userID, Event: data})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(context.Background(), RealtimeChannel, payload).Err(); err != nil {
		metrics.RealtimeDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("publish realtime event: %w", err)
	}
	return nil
}

// Run forwards published events to the local hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, RealtimeChannel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RealtimeChannel, err)
	}
	b.logger.Info("realtime bridge subscribed", zap.String("channel", RealtimeChannel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("discarding malformed realtime envelope", zap.Error(err))
				continue
			}
			b.local.deliver(env.UserID, env.Event)
		}
	}
}
