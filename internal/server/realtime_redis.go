package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sigillo-app/backend/internal/messaging"
	"go.uber.org/zap"
)

const defaultRealtimeChannel = "sigillo:messages"

// RedisBridgeConfig describes the dependencies of the redis fan-out bridge.
type RedisBridgeConfig struct {
	Client  *redis.Client
	Channel string
	Local   *RealtimeDispatcher
	Logger  *zap.Logger
}

// RedisBridge relays message events through a redis channel so every running
// instance delivers them to its own open streams. Events are published to
// redis only; local delivery happens when the subscription loop reads them
// back, which keeps single- and multi-instance delivery on one path.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   *RealtimeDispatcher
	logger  *zap.Logger
}

// NewRedisBridge constructs the bridge.
func NewRedisBridge(cfg RedisBridgeConfig) (*RedisBridge, error) {
	if cfg.Client == nil {
		return nil, errors.New("realtime: redis client required")
	}
	if cfg.Local == nil {
		return nil, errors.New("realtime: local dispatcher required")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = defaultRealtimeChannel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		client:  cfg.Client,
		channel: channel,
		local:   cfg.Local,
		logger:  logger,
	}, nil
}

// PublishMessage forwards the event to the redis channel. Implements
// messaging.Publisher. Publish failures are logged and dropped; message
// persistence already succeeded and there is no retry path.
func (b *RedisBridge) PublishMessage(event messaging.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to encode realtime event", zap.Error(err))
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.logger.Warn("failed to publish realtime event",
			zap.String("submission_id", event.SubmissionID), zap.Error(err))
	}
}

// Run consumes the redis channel and feeds events into the local dispatcher
// until the context ends. Reconnection is handled by the redis client.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case received, ok := <-pubsub.Channel():
			if !ok {
				return nil
			}
			var event messaging.Event
			if err := json.Unmarshal([]byte(received.Payload), &event); err != nil {
				b.logger.Warn("discarding undecodable realtime event", zap.Error(err))
				continue
			}
			b.local.PublishMessage(event)
		}
	}
}
