package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

const userColumns = "id,name,email,password_hash,role,created_at,updated_at"

type UserRepo struct{ DB database.DBTX }

func NewUserRepo(db database.DBTX) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an address before any lookup.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u, filling ID and timestamps when empty.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
	u.Email = NormalizeEmail(u.Email)
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if isDuplicateKey(err) {
		return ErrEmailExists
	}
	return err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return affectedOne(r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, time.Now().UTC(), id))
}

func (r *UserRepo) UpdateName(ctx context.Context, id, name string) error {
	return affectedOne(r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, updated_at=? WHERE id=?", name, time.Now().UTC(), id))
}

func (r *UserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	return affectedOne(r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=? WHERE id=?", string(role), time.Now().UTC(), id))
}

// Delete removes the user; tokens, grants and learner data cascade.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return affectedOne(r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, notFound(err)
	}
	u.Role = model.Role(role)
	return u, nil
}
