package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// HandlerFunc processes one delivery body.  Returning an error rejects
// the message without requeue so a poison message cannot loop forever.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer runs a long-lived worker that consumes registered queues.
// Handlers are registered per queue name at startup; dispatch is a plain
// table lookup.  The consumer dials its own connection, reconnects with
// exponential backoff after failures and stops cleanly when the context
// is cancelled.
type Consumer struct {
	url      string
	log      *logrus.Entry
	handlers map[string]HandlerFunc
}

// NewConsumer builds a consumer for the given broker URL.
func NewConsumer(url string, log *logrus.Entry) *Consumer {
	return &Consumer{url: url, log: log, handlers: make(map[string]HandlerFunc)}
}

// Handle registers a handler for a queue.  Must be called before Run;
// registering the same queue twice panics, since that is a wiring bug.
func (c *Consumer) Handle(queueName string, h HandlerFunc) {
	if _, dup := c.handlers[queueName]; dup {
		panic(fmt.Sprintf("queue: duplicate handler for %q", queueName))
	}
	c.handlers[queueName] = h
}

// Run consumes until ctx is cancelled.  Connection or channel failures
// trigger a reconnect with backoff capped at 30 seconds.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			c.log.Info("consumer: shutting down")
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("consumer: dial failed; retrying in %s", backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.log.Info("consumer: shutting down")
			return
		}
		c.log.WithError(err).Warn("consumer: consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("consumer: set QoS failed")
	}

	// One merged delivery stream per registered queue, tagged with the
	// queue name so dispatch stays a table lookup.
	type tagged struct {
		queue string
		del   amqp.Delivery
	}
	merged := make(chan tagged)
	done := make(chan struct{})
	defer close(done)

	for name := range c.handlers {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		deliveries, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, deliveries <-chan amqp.Delivery) {
			for d := range deliveries {
				select {
				case merged <- tagged{queue: name, del: d}:
				case <-done:
					return
				}
			}
		}(name, deliveries)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("connection closed")
		case t := <-merged:
			if err := c.dispatch(ctx, t.queue, t.del.Body); err != nil {
				c.log.WithError(err).WithField("queue", t.queue).Error("consumer: handle message failed")
				_ = t.del.Nack(false, false) // reject, no requeue, to avoid tight loops
				continue
			}
			_ = t.del.Ack(false)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, queueName string, body []byte) error {
	h, ok := c.handlers[queueName]
	if !ok {
		return fmt.Errorf("no handler registered for queue %q", queueName)
	}
	return h(ctx, body)
}

// sleepCtx sleeps for d unless ctx is cancelled first; it reports
// whether the full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
