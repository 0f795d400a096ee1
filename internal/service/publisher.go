// Package service holds process-level collaborators that handlers call but
// that are not tied to one client: currently the domain event publisher.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/metrics"
	"github.com/iliyamo/jewelry-storefront/internal/queue"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a channel and returns it with a function releasing the
// underlying connection.
type dialFunc func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	return ch, conn.Close, nil
}

// Publisher sends domain events to RabbitMQ.  Each publish uses its own
// short-lived connection; errors are logged and returned so callers can
// ignore them without interrupting the request flow.
type Publisher struct {
	url  string
	log  *zap.Logger
	dial dialFunc
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, dial: dialAMQP}
}

// UserRegistered publishes ev to the user.registered queue.
func (p *Publisher) UserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error {
	return p.publish(ctx, queue.UserRegisteredQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, event any) (err error) {
	defer func() {
		metrics.EventPublished(queueName, err)
		if err != nil {
			p.log.Warn("publish event failed", zap.String("queue", queueName), zap.Error(err))
		}
	}()

	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	ch, release, err := p.dial(p.url)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
		_ = release()
	}()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "declare queue")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// Default exchange: routing key is the queue name.
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, msg); err != nil {
		return errors.Wrap(err, "publish")
	}
	return nil
}
