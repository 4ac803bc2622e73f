package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/testutil/memstore"
)

// catalog serves products from memstore and topics from a fixed table.
type catalog struct {
	products *memstore.Products
	topics   map[string][]model.Topic
}

func (c *catalog) ListActive(ctx context.Context) ([]model.Product, error) {
	return c.products.ListActive(ctx)
}

func (c *catalog) ListTopics(_ context.Context, productID string) ([]model.Topic, error) {
	return c.topics[productID], nil
}

func (c *catalog) TopicProductID(_ context.Context, topicID string) (string, error) {
	for pid, ts := range c.topics {
		for _, t := range ts {
			if t.ID == topicID {
				return pid, nil
			}
		}
	}
	return "", repository.ErrNotFound
}

// content is an in-memory content tree keyed by product.
type content struct {
	mu       sync.Mutex
	qna      map[string][]model.QnA
	quizzes  map[string][]model.Quiz
	attempts []model.QuizAttempt
}

func newContent() *content {
	return &content{qna: map[string][]model.QnA{}, quizzes: map[string][]model.Quiz{}}
}

func (c *content) ListQnA(_ context.Context, productID string, _ repository.ContentFilter) ([]model.QnA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qna[productID], nil
}

func (c *content) ListQuizzes(_ context.Context, productID string, _ repository.ContentFilter) ([]model.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quizzes[productID], nil
}

func (c *content) ListPDFs(context.Context, string, repository.ContentFilter) ([]model.PDF, error) {
	return nil, nil
}

func (c *content) GetQuizInProduct(_ context.Context, productID, quizID string) (model.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.quizzes[productID] {
		if q.ID == quizID {
			return q, nil
		}
	}
	return model.Quiz{}, repository.ErrNotFound
}

func (c *content) CreateAttempt(_ context.Context, a *model.QuizAttempt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a.ID = uuid.NewString()
	c.attempts = append(c.attempts, *a)
	return nil
}

func (c *content) QnAProductID(_ context.Context, qnaID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pid, items := range c.qna {
		for _, q := range items {
			if q.ID == qnaID {
				return pid, nil
			}
		}
	}
	return "", repository.ErrNotFound
}

func (c *content) PDFProductID(context.Context, string) (string, error) {
	return "", repository.ErrNotFound
}

// learner keeps bookmarks and progress in memory.
type learner struct {
	mu        sync.Mutex
	bookmarks []model.Bookmark
	progress  map[[2]string]model.Progress
}

func newLearner() *learner { return &learner{progress: map[[2]string]model.Progress{}} }

func (l *learner) ListBookmarks(_ context.Context, userID string) ([]model.Bookmark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Bookmark
	for _, b := range l.bookmarks {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *learner) CreateBookmark(_ context.Context, userID string, qnaID, pdfID *string) (model.Bookmark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bookmarks {
		if b.UserID == userID && eq(b.QnAID, qnaID) && eq(b.PDFID, pdfID) {
			return model.Bookmark{}, repository.ErrDuplicate
		}
	}
	b := model.Bookmark{ID: uuid.NewString(), UserID: userID, QnAID: qnaID, PDFID: pdfID, CreatedAt: time.Now().UTC()}
	l.bookmarks = append(l.bookmarks, b)
	return b, nil
}

func (l *learner) DeleteBookmark(_ context.Context, userID, bookmarkID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, b := range l.bookmarks {
		if b.ID == bookmarkID && b.UserID == userID {
			l.bookmarks = append(l.bookmarks[:i], l.bookmarks[i+1:]...)
			break
		}
	}
	return nil
}

func (l *learner) ListProgress(_ context.Context, userID string) ([]model.Progress, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Progress
	for k, p := range l.progress {
		if k[0] == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *learner) UpsertProgress(_ context.Context, p *model.Progress) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.LastAccessedAt = time.Now().UTC()
	l.progress[[2]string{p.UserID, p.TopicID}] = *p
	return nil
}

func (l *learner) Stats(_ context.Context, userID string) (model.UserStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	var sum float64
	for k, p := range l.progress {
		if k[0] == userID {
			n++
			sum += p.CompletionPercent
		}
	}
	return model.NewUserStats(0, 0, 0, 0, n, sum), nil
}

func eq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
