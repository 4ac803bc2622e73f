package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/model"
)

// LearnerRepo stores per-user learning state: bookmarks, topic progress
// and the aggregates behind the stats endpoint.
type LearnerRepo struct{ DB database.DBTX }

func NewLearnerRepo(db database.DBTX) *LearnerRepo { return &LearnerRepo{DB: db} }

// ListBookmarks returns the user's bookmarks, newest first, with the title
// and topic of whichever item each one points at.
func (r *LearnerRepo) ListBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.qna_id, b.pdf_id, b.created_at,
			COALESCE(q.question, f.title, ''), COALESCE(tq.id, tf.id, ''), COALESCE(tq.name, tf.name, '')
		FROM bookmarks b
		LEFT JOIN qnas q ON q.id = b.qna_id
		LEFT JOIN topics tq ON tq.id = q.topic_id
		LEFT JOIN pdfs f ON f.id = b.pdf_id
		LEFT JOIN topics tf ON tf.id = f.topic_id
		WHERE b.user_id=?
		ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Bookmark{}
	for rows.Next() {
		var (
			b          model.Bookmark
			qnaID, pdf sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.UserID, &qnaID, &pdf, &b.CreatedAt, &b.Title, &b.Topic.ID, &b.Topic.Name); err != nil {
			return nil, err
		}
		b.QnAID = fromNull(qnaID)
		b.PDFID = fromNull(pdf)
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBookmark adds a bookmark to exactly one of qnaID or pdfID. The
// unique index does not cover NULL columns, so duplicates are checked
// with a null-safe comparison first.
func (r *LearnerRepo) CreateBookmark(ctx context.Context, userID string, qnaID, pdfID *string) (model.Bookmark, error) {
	var existing string
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM bookmarks WHERE user_id=? AND qna_id <=> ? AND pdf_id <=> ? LIMIT 1",
		userID, toNull(qnaID), toNull(pdfID)).Scan(&existing)
	switch {
	case err == nil:
		return model.Bookmark{}, ErrDuplicate
	case notFound(err) != ErrNotFound:
		return model.Bookmark{}, err
	}

	b := model.Bookmark{ID: uuid.NewString(), UserID: userID, QnAID: qnaID, PDFID: pdfID, CreatedAt: time.Now().UTC()}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO bookmarks (id, user_id, qna_id, pdf_id, created_at) VALUES (?,?,?,?,?)",
		b.ID, b.UserID, toNull(qnaID), toNull(pdfID), b.CreatedAt)
	switch {
	case isDuplicateKey(err):
		return model.Bookmark{}, ErrDuplicate
	case isMissingReference(err):
		return model.Bookmark{}, ErrReferenceMissing
	case err != nil:
		return model.Bookmark{}, err
	}
	return b, nil
}

// DeleteBookmark removes the user's own bookmark. Missing rows are ignored.
func (r *LearnerRepo) DeleteBookmark(ctx context.Context, userID, bookmarkID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM bookmarks WHERE id=? AND user_id=?", bookmarkID, userID)
	return err
}

func (r *LearnerRepo) ListProgress(ctx context.Context, userID string) ([]model.Progress, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT pr.user_id, pr.topic_id, t.name, p.id, p.name, pr.completion_percent, pr.score, pr.last_accessed_at
		FROM progress pr
		JOIN topics t ON t.id = pr.topic_id
		JOIN products p ON p.id = t.product_id
		WHERE pr.user_id=?
		ORDER BY pr.last_accessed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Progress{}
	for rows.Next() {
		var (
			p     model.Progress
			score sql.NullFloat64
		)
		if err := rows.Scan(&p.UserID, &p.TopicID, &p.TopicName, &p.ProductID, &p.ProductName,
			&p.CompletionPercent, &score, &p.LastAccessedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			p.Score = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertProgress creates or overwrites the (user, topic) progress row.
func (r *LearnerRepo) UpsertProgress(ctx context.Context, p *model.Progress) error {
	if p.LastAccessedAt.IsZero() {
		p.LastAccessedAt = time.Now().UTC()
	}
	var score any
	if p.Score != nil {
		score = *p.Score
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO progress (user_id, topic_id, completion_percent, score, last_accessed_at)
		VALUES (?,?,?,?,?)
		ON DUPLICATE KEY UPDATE completion_percent=VALUES(completion_percent), score=VALUES(score),
			last_accessed_at=VALUES(last_accessed_at)`,
		p.UserID, p.TopicID, p.CompletionPercent, score, p.LastAccessedAt)
	if isMissingReference(err) {
		return ErrReferenceMissing
	}
	return err
}

func (r *LearnerRepo) Stats(ctx context.Context, userID string) (model.UserStats, error) {
	var (
		total, correct, timed int
		timeSum               float64
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_correct),0), COUNT(time_taken), COALESCE(SUM(time_taken),0)
		FROM quiz_attempts WHERE user_id=?`, userID).Scan(&total, &correct, &timed, &timeSum)
	if err != nil {
		return model.UserStats{}, err
	}
	var (
		topics      int
		progressSum float64
	)
	err = r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(completion_percent),0) FROM progress WHERE user_id=?",
		userID).Scan(&topics, &progressSum)
	if err != nil {
		return model.UserStats{}, err
	}
	return model.NewUserStats(total, correct, timed, timeSum, topics, progressSum), nil
}

func toNull(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
