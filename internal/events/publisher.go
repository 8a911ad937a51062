package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"dinner-house/internal/connections/rabbitmq"
	"dinner-house/internal/domain"
	"dinner-house/internal/logger"
)

// Routing keys on the orders topic exchange.
const (
	KeyOrderCreated       = "orders.created"
	KeyOrderStatusChanged = "orders.status_changed"
	KeyShiftOpened        = "staff.shift_opened"
	KeyShiftClosed        = "staff.shift_closed"
)

// Publisher fans domain events out through RabbitMQ with publisher confirms.
type Publisher struct {
	mq  *rabbitmq.Client
	log *logger.Logger
}

func NewPublisher(mq *rabbitmq.Client, log *logger.Logger) *Publisher {
	return &Publisher{mq: mq, log: log}
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, ev domain.OrderEvent) error {
	key := KeyOrderCreated
	if ev.Event == domain.EventOrderStatusChanged {
		key = KeyOrderStatusChanged
	}
	return p.publish(ctx, key, ev.Event, ev)
}

func (p *Publisher) PublishShiftEvent(ctx context.Context, ev domain.ShiftEvent) error {
	key := KeyShiftOpened
	if ev.Event == domain.EventShiftClosed {
		key = KeyShiftClosed
	}
	return p.publish(ctx, key, ev.Event, ev)
}

func (p *Publisher) publish(ctx context.Context, key, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	id := uuid.NewString()
	if err := p.mq.Publish(ctx, rabbitmq.OrdersExchange, key, id, body); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug("event published", "key", key, "message_id", id)
	return nil
}
