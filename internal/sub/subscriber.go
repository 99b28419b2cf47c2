// internal/sub/subscriber.go
package sub

import (
	"context"
	"encoding/json"
	"fmt"

	"dukastore/internal/handler"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PaymentEventSubscriber forwards redis payment events to the local
// websocket hub.
type PaymentEventSubscriber struct {
	rdb    *redis.Client
	hub    *handler.Hub
	pubsub *redis.PubSub
	logger *zap.Logger
}

func NewPaymentEventSubscriber(rdb *redis.Client, hub *handler.Hub, logger *zap.Logger) *PaymentEventSubscriber {
	return &PaymentEventSubscriber{rdb: rdb, hub: hub, logger: logger}
}

// Start subscribes to the payment events channel and begins relaying
// messages in a background goroutine.
func (s *PaymentEventSubscriber) Start(ctx context.Context) error {
	s.pubsub = s.rdb.Subscribe(ctx, PaymentEventsChannel)

	// Wait for confirmation that the subscription is created.
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.logger.Info("subscribed to payment events", zap.String("channel", PaymentEventsChannel))

	go s.listen(ctx)
	return nil
}

func (s *PaymentEventSubscriber) listen(ctx context.Context) {
	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping payment event subscriber")
			s.pubsub.Close()
			return

		case msg := <-ch:
			if msg == nil {
				continue
			}

			var envelope Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				s.logger.Warn("failed to parse payment event", zap.Error(err))
				continue
			}
			s.relay(&envelope)
		}
	}
}

func (s *PaymentEventSubscriber) relay(envelope *Envelope) {
	wsMessage, err := json.Marshal(map[string]interface{}{
		"type":      envelope.Event,
		"data":      envelope.Payload,
		"timestamp": envelope.Timestamp.Unix(),
	})
	if err != nil {
		s.logger.Warn("failed to marshal websocket message", zap.Error(err))
		return
	}

	s.hub.Broadcast(envelope.Room, wsMessage)
	s.logger.Info("relayed payment event",
		zap.String("room", envelope.Room),
		zap.String("event", envelope.Event))
}

// Stop closes the underlying subscription.
func (s *PaymentEventSubscriber) Stop() error {
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}
