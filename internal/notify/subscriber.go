package notify

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"dinner-house/internal/connections/rabbitmq"
	"dinner-house/internal/logger"
)

// Subscriber drains the notifications queue and logs each event for the
// front-of-house displays. Messages that cannot be decoded are rejected
// without requeue so they land on the dead letter queue.
type Subscriber struct {
	mq  *rabbitmq.Client
	log *logger.Logger
}

func NewSubscriber(mq *rabbitmq.Client, log *logger.Logger) *Subscriber {
	return &Subscriber{mq: mq, log: log}
}

func (s *Subscriber) Run(ctx context.Context) error {
	deliveries, err := s.mq.Consume(rabbitmq.NotificationsQueue, "notifier", 10)
	if err != nil {
		return err
	}
	s.log.Info("notifier consuming", "queue", rabbitmq.NotificationsQueue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			s.handle(d)
		}
	}
}

func (s *Subscriber) handle(d amqp.Delivery) {
	var payload map[string]any
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		s.log.Warn("undecodable notification, dead-lettering",
			"message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}

	event, _ := payload["event"].(string)
	switch event {
	case "order_created":
		s.log.Info("new order",
			"order_number", payload["order_number"],
			"total_cents", payload["total_cents"])
	case "order_status_changed":
		s.log.Info("order status changed",
			"order_number", payload["order_number"],
			"old_status", payload["old_status"],
			"status", payload["status"],
			"changed_by", payload["changed_by"])
	case "shift_opened":
		s.log.Info("staff clocked in",
			"staff_name", payload["staff_name"], "shift_id", payload["shift_id"])
	case "shift_closed":
		s.log.Info("staff clocked out",
			"staff_name", payload["staff_name"],
			"shift_id", payload["shift_id"],
			"minutes", payload["minutes"])
	default:
		s.log.Info("notification", "event", event, "routing_key", d.RoutingKey)
	}
	_ = d.Ack(false)
}
