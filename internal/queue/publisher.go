package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher publishes domain events to RabbitMQ over a connection owned
// by the composition root.  A channel is opened lazily and reopened
// after failures; queues are declared durable and messages persistent so
// they survive broker restarts.  Publish errors are returned so callers
// can decide to ignore them without interrupting the main request flow.
type Publisher struct {
	conn *amqp.Connection
	log  *logrus.Entry

	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]bool
}

// NewPublisher wraps an established AMQP connection.
func NewPublisher(conn *amqp.Connection, log *logrus.Entry) *Publisher {
	return &Publisher{conn: conn, log: log, declared: make(map[string]bool)}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	p.ch = ch
	p.declared = make(map[string]bool)
	return ch, nil
}

// Publish marshals the event as JSON and sends it to the named queue via
// the default exchange.
func (p *Publisher) Publish(ctx context.Context, queueName string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.WithError(err).Warn("publisher: channel unavailable")
		return err
	}
	if !p.declared[queueName] {
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			p.log.WithError(err).WithField("queue", queueName).Warn("publisher: queue declare failed")
			return err
		}
		p.declared[queueName] = true
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		p.log.WithError(err).WithField("queue", queueName).Warn("publisher: publish failed")
		return err
	}
	return nil
}

// PublishReservationCancelled sends a cancellation event to the refund
// queue.
func (p *Publisher) PublishReservationCancelled(ctx context.Context, ev ReservationCancelledEvent) error {
	return p.Publish(ctx, QueueReservationCancelled, ev)
}
