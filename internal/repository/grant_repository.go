package repository

import (
	"context"
	"time"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

// GrantRepo manages user_products rows. Exists is read on every
// product-scoped request and is never cached, so a revoke takes effect on
// the very next request.
type GrantRepo struct{ DB database.DBTX }

func NewGrantRepo(db database.DBTX) *GrantRepo { return &GrantRepo{DB: db} }

// Grant inserts a (user, product) row. A second grant returns ErrDuplicate;
// an unknown user or product returns ErrReferenceMissing.
func (r *GrantRepo) Grant(ctx context.Context, userID, productID string) (model.UserProduct, error) {
	up := model.UserProduct{UserID: userID, ProductID: productID, CreatedAt: time.Now().UTC()}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_products (user_id, product_id, created_at) VALUES (?,?,?)",
		up.UserID, up.ProductID, up.CreatedAt)
	switch {
	case isDuplicateKey(err):
		return model.UserProduct{}, ErrDuplicate
	case isMissingReference(err):
		return model.UserProduct{}, ErrReferenceMissing
	case err != nil:
		return model.UserProduct{}, err
	}
	return up, nil
}

// Revoke deletes the grant or returns ErrNotFound.
func (r *GrantRepo) Revoke(ctx context.Context, userID, productID string) error {
	return affectedOne(r.DB.ExecContext(ctx,
		"DELETE FROM user_products WHERE user_id=? AND product_id=?", userID, productID))
}

func (r *GrantRepo) Exists(ctx context.Context, userID, productID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM user_products WHERE user_id=? AND product_id=? LIMIT 1",
		userID, productID).Scan(&one)
	if err != nil {
		if notFound(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByUser returns the user's granted products, newest grant first.
func (r *GrantRepo) ListByUser(ctx context.Context, userID string) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.name, p.slug, COALESCE(p.description,''), p.is_active, p.created_at
		FROM user_products up JOIN products p ON p.id = up.product_id
		WHERE up.user_id=?
		ORDER BY up.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
