// Package queue carries password reset notifications over RabbitMQ. The
// API publishes one message per ForgotPassword call for an existing
// account; the consumer hands it to the mail outbox.
package queue

import "time"

// PasswordResetQueue is the durable queue reset notifications travel on.
const PasswordResetQueue = "auth.password_reset"

// PasswordResetRequested is published when a reset token is issued. Token
// is the raw value; it exists only in this message and in the user's
// mailbox, never in the database.
type PasswordResetRequested struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	RequestedAt time.Time `json:"requested_at"`
}
