package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/queue"
	"github.com/iliyamo/learning-api/internal/repository"
)

// UserRepository is the credential store's user table.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

// RefreshTokenRepository persists refresh tokens by hash.
type RefreshTokenRepository interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	FindRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	DeleteRefresh(ctx context.Context, tokenHash string) error
	DeleteRefreshForUser(ctx context.Context, tokenHash, userID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// ResetTokenRepository persists password reset tokens by hash.
type ResetTokenRepository interface {
	Create(ctx context.Context, userID, tokenHash string, exp time.Time) error
	FindByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error)
	Delete(ctx context.Context, id string) error
}

// GrantRepository answers the per-product access question.
type GrantRepository interface {
	Exists(ctx context.Context, userID, productID string) (bool, error)
}

// Repositories groups the stores Auth Core needs, bound to one connection
// or one transaction.
type Repositories struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	ResetTokens   ResetTokenRepository
}

// Transactor runs fn with Repositories bound to a single transaction.
// Returning an error from fn rolls back everything fn did.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// ResetNotifier delivers a reset token out of band.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, ev queue.PasswordResetRequested) error
}

// NewSQLRepositories binds the MySQL repositories to db.
func NewSQLRepositories(db database.DBTX) Repositories {
	return Repositories{
		Users:         repository.NewUserRepo(db),
		RefreshTokens: repository.NewTokenRepo(db),
		ResetTokens:   repository.NewResetTokenRepo(db),
	}
}

// SQLTransactor implements Transactor on a *sql.DB.
type SQLTransactor struct{ DB *sql.DB }

func (t SQLTransactor) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return database.WithTx(ctx, t.DB, nil, func(ctx context.Context, tx database.DBTX) error {
		return fn(ctx, NewSQLRepositories(tx))
	})
}
