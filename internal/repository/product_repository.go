package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

const productColumns = "id, name, slug, COALESCE(description,''), is_active, created_at"

type ProductRepo struct{ DB database.DBTX }

func NewProductRepo(db database.DBTX) *ProductRepo { return &ProductRepo{DB: db} }

// ListActive returns active products, newest first.
func (r *ProductRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active=1 ORDER BY created_at DESC")
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

func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
	return p, notFound(err)
}

// Create inserts p. A taken slug returns ErrDuplicate.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO products (id, name, slug, description, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		p.ID, p.Name, p.Slug, nullString(p.Description), p.IsActive, p.CreatedAt, p.CreatedAt)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

// ListTopics returns a product's topics in display order with content counts.
func (r *ProductRepo) ListTopics(ctx context.Context, productID string) ([]model.Topic, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT t.id, t.product_id, t.name, COALESCE(t.description,''), t.sort_order,
			(SELECT COUNT(*) FROM qnas q WHERE q.topic_id = t.id),
			(SELECT COUNT(*) FROM quizzes z WHERE z.topic_id = t.id),
			(SELECT COUNT(*) FROM pdfs f WHERE f.topic_id = t.id)
		FROM topics t
		WHERE t.product_id=?
		ORDER BY t.sort_order ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Topic{}
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.ProductID, &t.Name, &t.Description, &t.Order,
			&t.Count.QnA, &t.Count.Quizzes, &t.Count.PDFs); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TopicProductID resolves the product that owns a topic.
func (r *ProductRepo) TopicProductID(ctx context.Context, topicID string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, "SELECT product_id FROM topics WHERE id=? LIMIT 1", topicID).Scan(&id)
	return id, notFound(err)
}

func scanProduct(row rowScanner) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.IsActive, &p.CreatedAt)
	return p, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
