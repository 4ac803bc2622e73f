package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends reset notifications. Each publish dials its own
// connection so a broker outage never wedges a request goroutine on a
// stale channel.
type Publisher struct {
	URL string
	Log logrus.FieldLogger

	dial func(url string) (amqpChannel, func(), error)
}

// amqpChannel is the slice of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{URL: url, Log: log, dial: dialChannel}
}

func dialChannel(url string) (amqpChannel, func(), error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, func() { _ = ch.Close(); _ = conn.Close() }, nil
}

// NotifyPasswordReset publishes ev as a persistent JSON message on
// PasswordResetQueue. Errors are logged and returned; callers decide
// whether they matter.
func (p *Publisher) NotifyPasswordReset(ctx context.Context, ev PasswordResetRequested) error {
	log := p.Log.WithField("user_id", ev.UserID)
	ch, closeFn, err := p.dial(p.URL)
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer closeFn()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(PasswordResetQueue, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", PasswordResetQueue, false, false, pub); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}
