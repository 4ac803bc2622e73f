package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ResetMailConsumer drains PasswordResetQueue into an append-only mail
// outbox file. A real mail transport replaces the outbox by swapping
// Deliver.
type ResetMailConsumer struct {
	URL       string
	OutboxDir string
	// LinkBase is prefixed to the token to form the reset link.
	LinkBase string
	Log      logrus.FieldLogger

	mu sync.Mutex
}

func NewResetMailConsumer(url, outboxDir, linkBase string, log logrus.FieldLogger) *ResetMailConsumer {
	return &ResetMailConsumer{URL: url, OutboxDir: outboxDir, LinkBase: linkBase, Log: log}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled. It returns nil on cancellation.
func (c *ResetMailConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).Warnf("reset-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.Log.WithError(err).Warn("reset-consumer: consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *ResetMailConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("reset-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(PasswordResetQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(PasswordResetQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Deliver(d.Body); err != nil {
				c.Log.WithError(err).Error("reset-consumer: handle message failed")
				// reject without requeue to avoid tight loops
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Deliver decodes one message and appends it to the outbox.
func (c *ResetMailConsumer) Deliver(body []byte) error {
	var ev PasswordResetRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.Token == "" {
		return errors.New("message missing email or token")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.OutboxDir, 0o755); err != nil {
		return fmt.Errorf("mkdir outbox: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.OutboxDir, "password_reset.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Password reset | to=%q | user_id=%s | link=%s%s | expires_at=%s\n",
		ev.RequestedAt.UTC().Format(time.RFC3339), ev.Email, ev.UserID, c.LinkBase, ev.Token,
		ev.ExpiresAt.UTC().Format(time.RFC3339))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

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
