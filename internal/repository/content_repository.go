package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

// ContentFilter narrows Q&A, quiz and PDF listings. Zero values mean "any".
type ContentFilter struct {
	Company string
	TopicID string
	Level   string
	Page    int
	Limit   int
}

func (f ContentFilter) offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// likeEscaper neutralizes JSON_SEARCH wildcards so a company name matches
// literally. Backslash is MySQL's default escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// where builds the shared predicate for content scoped to one product.
// Company matching is case-insensitive against the JSON tag array.
func (f ContentFilter) where(alias, productID string, withCompany bool) (string, []any) {
	clauses := []string{"t.product_id = ?"}
	args := []any{productID}
	if f.TopicID != "" {
		clauses = append(clauses, alias+".topic_id = ?")
		args = append(args, f.TopicID)
	}
	if f.Level != "" {
		clauses = append(clauses, "UPPER("+alias+".level) = ?")
		args = append(args, strings.ToUpper(f.Level))
	}
	if withCompany && f.Company != "" {
		clauses = append(clauses, "JSON_SEARCH(LOWER("+alias+".company_tags), 'one', ?) IS NOT NULL")
		args = append(args, likeEscaper.Replace(strings.ToLower(f.Company)))
	}
	return strings.Join(clauses, " AND "), args
}

type ContentRepo struct{ DB database.DBTX }

func NewContentRepo(db database.DBTX) *ContentRepo { return &ContentRepo{DB: db} }

func (r *ContentRepo) ListQnA(ctx context.Context, productID string, f ContentFilter) ([]model.QnA, error) {
	where, args := f.where("q", productID, true)
	args = append(args, f.Limit, f.offset())
	rows, err := r.DB.QueryContext(ctx, `
		SELECT q.id, q.topic_id, q.question, q.answer, q.level, q.company_tags, q.created_at, t.name
		FROM qnas q JOIN topics t ON t.id = q.topic_id
		WHERE `+where+`
		ORDER BY t.sort_order ASC, q.created_at ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.QnA{}
	for rows.Next() {
		var (
			q    model.QnA
			tags []byte
		)
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Question, &q.Answer, &q.Level, &tags, &q.CreatedAt, &q.Topic.Name); err != nil {
			return nil, err
		}
		q.Topic.ID = q.TopicID
		if q.CompanyTags, err = decodeStrings(tags); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *ContentRepo) ListQuizzes(ctx context.Context, productID string, f ContentFilter) ([]model.Quiz, error) {
	where, args := f.where("z", productID, true)
	args = append(args, f.Limit, f.offset())
	rows, err := r.DB.QueryContext(ctx, `
		SELECT z.id, z.topic_id, z.question, z.options, z.correct_answer, COALESCE(z.explanation,''),
			z.level, z.company_tags, z.created_at, t.name
		FROM quizzes z JOIN topics t ON t.id = z.topic_id
		WHERE `+where+`
		ORDER BY t.sort_order ASC, z.created_at ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *ContentRepo) ListPDFs(ctx context.Context, productID string, f ContentFilter) ([]model.PDF, error) {
	where, args := f.where("f", productID, false)
	args = append(args, f.Limit, f.offset())
	rows, err := r.DB.QueryContext(ctx, `
		SELECT f.id, f.topic_id, f.title, COALESCE(f.description,''), f.file_url, f.file_size, f.created_at, t.name
		FROM pdfs f JOIN topics t ON t.id = f.topic_id
		WHERE `+where+`
		ORDER BY t.sort_order ASC, f.created_at ASC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.PDF{}
	for rows.Next() {
		var (
			p    model.PDF
			size sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.TopicID, &p.Title, &p.Description, &p.FileURL, &size, &p.CreatedAt, &p.Topic.Name); err != nil {
			return nil, err
		}
		p.Topic.ID = p.TopicID
		if size.Valid {
			v := size.Int64
			p.FileSize = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetQuizInProduct loads a quiz only if it belongs to productID.
func (r *ContentRepo) GetQuizInProduct(ctx context.Context, productID, quizID string) (model.Quiz, error) {
	q, err := scanQuiz(r.DB.QueryRowContext(ctx, `
		SELECT z.id, z.topic_id, z.question, z.options, z.correct_answer, COALESCE(z.explanation,''),
			z.level, z.company_tags, z.created_at, t.name
		FROM quizzes z JOIN topics t ON t.id = z.topic_id
		WHERE z.id = ? AND t.product_id = ?
		LIMIT 1`, quizID, productID))
	return q, notFound(err)
}

func (r *ContentRepo) CreateAttempt(ctx context.Context, a *model.QuizAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var taken any
	if a.TimeTaken != nil {
		taken = *a.TimeTaken
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO quiz_attempts (id, user_id, quiz_id, selected_answer, is_correct, time_taken, created_at) VALUES (?,?,?,?,?,?,?)",
		a.ID, a.UserID, a.QuizID, a.SelectedAnswer, a.IsCorrect, taken, a.CreatedAt)
	return err
}

// QnAProductID resolves the product owning a Q&A item.
func (r *ContentRepo) QnAProductID(ctx context.Context, qnaID string) (string, error) {
	return r.ownerProduct(ctx, "SELECT t.product_id FROM qnas q JOIN topics t ON t.id = q.topic_id WHERE q.id=? LIMIT 1", qnaID)
}

// PDFProductID resolves the product owning a PDF.
func (r *ContentRepo) PDFProductID(ctx context.Context, pdfID string) (string, error) {
	return r.ownerProduct(ctx, "SELECT t.product_id FROM pdfs f JOIN topics t ON t.id = f.topic_id WHERE f.id=? LIMIT 1", pdfID)
}

func (r *ContentRepo) ownerProduct(ctx context.Context, query, id string) (string, error) {
	var productID string
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&productID)
	return productID, notFound(err)
}

func scanQuiz(row rowScanner) (model.Quiz, error) {
	var (
		q             model.Quiz
		options, tags []byte
	)
	if err := row.Scan(&q.ID, &q.TopicID, &q.Question, &options, &q.CorrectAnswer, &q.Explanation,
		&q.Level, &tags, &q.CreatedAt, &q.Topic.Name); err != nil {
		return model.Quiz{}, err
	}
	q.Topic.ID = q.TopicID
	var err error
	if q.Options, err = decodeStrings(options); err != nil {
		return model.Quiz{}, err
	}
	if q.CompanyTags, err = decodeStrings(tags); err != nil {
		return model.Quiz{}, err
	}
	return q, nil
}

func decodeStrings(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
