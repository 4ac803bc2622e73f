package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/middleware"
	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/repository"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxPage      = 10000
)

type CatalogStore interface {
	ListActive(ctx context.Context) ([]model.Product, error)
	ListTopics(ctx context.Context, productID string) ([]model.Topic, error)
}

type ContentStore interface {
	ListQnA(ctx context.Context, productID string, f repository.ContentFilter) ([]model.QnA, error)
	ListQuizzes(ctx context.Context, productID string, f repository.ContentFilter) ([]model.Quiz, error)
	ListPDFs(ctx context.Context, productID string, f repository.ContentFilter) ([]model.PDF, error)
	GetQuizInProduct(ctx context.Context, productID, quizID string) (model.Quiz, error)
	CreateAttempt(ctx context.Context, a *model.QuizAttempt) error
}

// ProductHandler serves /products. Everything below /:productId runs behind
// Authenticate and RequireProductAccess, so the handlers never re-check
// grants themselves.
type ProductHandler struct {
	Catalog CatalogStore
	Content ContentStore
	Timeout time.Duration
}

var errQuizNotFound = apperr.New(apperr.KindNotFound, "Quiz not found")

type submitReq struct {
	SelectedAnswer string `json:"selectedAnswer" validate:"required"`
	TimeTaken      *int   `json:"timeTaken" validate:"omitempty,gte=0"`
}

type submitResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Catalog.ListActive(ctx)
	if err != nil {
		return err
	}
	return respondList(c, items)
}

func (h *ProductHandler) Topics(c echo.Context) error {
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Catalog.ListTopics(ctx, c.Param("productId"))
	if err != nil {
		return err
	}
	return respondList(c, items)
}

func (h *ProductHandler) QnA(c echo.Context) error {
	f, err := contentFilter(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Content.ListQnA(ctx, c.Param("productId"), f)
	if err != nil {
		return err
	}
	return respondList(c, items)
}

// Quizzes lists quizzes without their answers.
func (h *ProductHandler) Quizzes(c echo.Context) error {
	f, err := contentFilter(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Content.ListQuizzes(ctx, c.Param("productId"), f)
	if err != nil {
		return err
	}
	out := make([]model.PublicQuiz, 0, len(items))
	for _, q := range items {
		out = append(out, q.Public())
	}
	return respondList(c, out)
}

func (h *ProductHandler) PDFs(c echo.Context) error {
	f, err := contentFilter(c)
	if err != nil {
		return err
	}
	f.Company, f.Level = "", ""
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Content.ListPDFs(ctx, c.Param("productId"), f)
	if err != nil {
		return err
	}
	return respondList(c, items)
}

// SubmitQuiz records an attempt. The quiz must belong to the product in the
// path; access to that product has already been checked.
func (h *ProductHandler) SubmitQuiz(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	var req submitReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	q, err := h.Content.GetQuizInProduct(ctx, c.Param("productId"), c.Param("quizId"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errQuizNotFound
	case err != nil:
		return err
	}

	attempt := &model.QuizAttempt{
		UserID:         userID,
		QuizID:         q.ID,
		SelectedAnswer: req.SelectedAnswer,
		IsCorrect:      q.CorrectAnswer == req.SelectedAnswer,
		TimeTaken:      req.TimeTaken,
	}
	if err := h.Content.CreateAttempt(ctx, attempt); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", submitResult{
		IsCorrect:     attempt.IsCorrect,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	})
}

// contentFilter reads company, topic, level, page and limit. Missing paging
// values fall back to the defaults; limit is capped.
func contentFilter(c echo.Context) (repository.ContentFilter, error) {
	f := repository.ContentFilter{
		Company: c.QueryParam("company"),
		TopicID: c.QueryParam("topic"),
		Level:   c.QueryParam("level"),
		Page:    defaultPage,
		Limit:   defaultLimit,
	}
	var fields []apperr.FieldError
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 1:
			fields = append(fields, apperr.FieldError{Field: "page", Message: "Must be a positive integer", Code: "min"})
		case n > maxPage:
			fields = append(fields, apperr.FieldError{Field: "page", Message: "Must be at most " + strconv.Itoa(maxPage), Code: "max"})
		default:
			f.Page = n
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields = append(fields, apperr.FieldError{Field: "limit", Message: "Must be a positive integer", Code: "min"})
		} else {
			f.Limit = min(n, maxLimit)
		}
	}
	if len(fields) > 0 {
		return f, apperr.Validation(fields...)
	}
	return f, nil
}
