package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

// TokenRepo persists refresh tokens by the SHA-256 hex of the signed JWT.
// A row's existence is what makes a refresh token usable; logout and
// password changes delete rows instead of flagging them.
type TokenRepo struct{ DB database.DBTX }

func NewTokenRepo(db database.DBTX) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?,?)",
		uuid.NewString(), userID, tokenHash, exp.UTC(), time.Now().UTC())
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// FindRefresh returns the row for tokenHash whether or not it has expired.
func (r *TokenRepo) FindRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return model.RefreshToken{}, notFound(err)
	}
	return t, nil
}

// DeleteRefresh removes a token by hash. Missing rows are not an error.
func (r *TokenRepo) DeleteRefresh(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	return err
}

// DeleteRefreshForUser removes a token only if it belongs to userID.
func (r *TokenRepo) DeleteRefreshForUser(ctx context.Context, tokenHash, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=? AND user_id=?", tokenHash, userID)
	return err
}

// DeleteAllForUser revokes every refresh token the user holds.
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}

// DeleteExpired purges refresh tokens past expiry and returns the count.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
