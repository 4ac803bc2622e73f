package model

import "time"

// User represents an application user record as stored in the
// `users` table. PasswordHash never leaves the service layer; handlers
// respond with SafeUser instead.
type User struct {
	ID           string    // users.id (uuid)
	Name         string    // users.name
	Email        string    // users.email, unique, lower-cased
	PasswordHash string    // users.password_hash (bcrypt)
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// SafeUser is the subset of a user that may be returned to clients.
type SafeUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Safe strips credentials from u.
func (u User) Safe() SafeUser {
	return SafeUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// RefreshToken models a row in `refresh_tokens`. Only the SHA-256 hex of
// the signed token is stored; a token is valid iff its row exists and
// ExpiresAt is in the future.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// PasswordResetToken models a row in `password_reset_tokens`. The raw
// token is never stored. Rows are deleted when consumed.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t PasswordResetToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// UserProduct is a product grant: its presence is the only evidence that a
// USER may read a product's content tree.
type UserProduct struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	CreatedAt time.Time `json:"createdAt"`
}
