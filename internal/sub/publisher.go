// internal/sub/publisher.go
package sub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const PaymentEventsChannel = "payment_events"

// Envelope carries one payment event across the redis channel. The ID lets
// consumers dedupe a delivery that reaches them twice.
type Envelope struct {
	ID        string          `json:"id"`
	Room      string          `json:"room"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PaymentEventPublisher pushes reconciler events onto redis so every
// server instance can relay them to its own websocket clients.
type PaymentEventPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPaymentEventPublisher(rdb *redis.Client, logger *zap.Logger) *PaymentEventPublisher {
	return &PaymentEventPublisher{rdb: rdb, logger: logger}
}

// Emit publishes one event for a room. It satisfies the reconciler's
// broadcaster dependency.
func (p *PaymentEventPublisher) Emit(ctx context.Context, room, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	envelope := Envelope{
		ID:        uuid.NewString(),
		Room:      room,
		Event:     event,
		Payload:   raw,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	if err := p.rdb.Publish(ctx, PaymentEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish payment event: %w", err)
	}

	p.logger.Info("published payment event",
		zap.String("room", room),
		zap.String("event", event))
	return nil
}
