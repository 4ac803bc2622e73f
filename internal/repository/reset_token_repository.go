package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

// ResetTokenRepo stores password reset tokens by SHA-256 hex.
type ResetTokenRepo struct{ DB database.DBTX }

func NewResetTokenRepo(db database.DBTX) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

func (r *ResetTokenRepo) Create(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?,?)",
		uuid.NewString(), userID, tokenHash, exp.UTC(), time.Now().UTC())
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ResetTokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, created_at FROM password_reset_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return model.PasswordResetToken{}, notFound(err)
	}
	return t, nil
}

// Delete consumes a reset token. Deleting a row that is already gone
// reports ErrNotFound so concurrent resets with one token cannot both win.
func (r *ResetTokenRepo) Delete(ctx context.Context, id string) error {
	return affectedOne(r.DB.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE id=?", id))
}

func (r *ResetTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
