package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/middleware"
	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/repository"
	"github.com/iliyamo/learning-api/internal/service"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	UpdateName(ctx context.Context, id, name string) error
}

type LearnerStore interface {
	ListBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error)
	CreateBookmark(ctx context.Context, userID string, qnaID, pdfID *string) (model.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, bookmarkID string) error
	ListProgress(ctx context.Context, userID string) ([]model.Progress, error)
	UpsertProgress(ctx context.Context, p *model.Progress) error
	Stats(ctx context.Context, userID string) (model.UserStats, error)
}

// OwnerLookup resolves the product a piece of content belongs to.
type OwnerLookup interface {
	QnAProductID(ctx context.Context, qnaID string) (string, error)
	PDFProductID(ctx context.Context, pdfID string) (string, error)
}

type TopicOwnerLookup interface {
	TopicProductID(ctx context.Context, topicID string) (string, error)
}

// UserHandler serves /users: the caller's own profile, bookmarks, progress
// and stats.
type UserHandler struct {
	Users   ProfileStore
	Learner LearnerStore
	Content OwnerLookup
	Topics  TopicOwnerLookup
	Access  *service.AccessChecker
	Log     logrus.FieldLogger
	Timeout time.Duration
}

var (
	errQnANotFound       = apperr.New(apperr.KindNotFound, "Q&A item not found")
	errPDFNotFound       = apperr.New(apperr.KindNotFound, "PDF not found")
	errTopicNotFound     = apperr.New(apperr.KindNotFound, "Topic not found")
	errBookmarkTarget    = validationMessage("Either qnaId or pdfId is required")
	errBookmarkBoth      = validationMessage("Provide only one of qnaId or pdfId")
	errAlreadyBookmarked = apperr.New(apperr.KindDuplicate, "Already bookmarked")
)

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

type profileReq struct {
	Name string `json:"name" validate:"required,min=2"`
}

type bookmarkReq struct {
	QnAID *string `json:"qnaId" validate:"omitempty,uuid"`
	PDFID *string `json:"pdfId" validate:"omitempty,uuid"`
}

type progressReq struct {
	TopicID           string   `json:"topicId" validate:"required,uuid"`
	CompletionPercent *float64 `json:"completionPercent" validate:"required,gte=0,lte=100"`
	Score             *float64 `json:"score" validate:"omitempty,gte=0,lte=100"`
}

type batchBookmarkReq struct {
	Bookmarks []bookmarkReq `json:"bookmarks" validate:"required,min=1,dive"`
}

type batchBookmarkDeleteReq struct {
	BookmarkIDs []string `json:"bookmarkIds" validate:"required,min=1,dive,uuid"`
}

type batchProgressReq struct {
	ProgressUpdates []progressReq `json:"progressUpdates" validate:"required,min=1,dive"`
}

func (h *UserHandler) Profile(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if isNotFound(err) {
		return service.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", u.Safe())
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	var req profileReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Users.UpdateName(ctx, userID, req.Name); err != nil {
		if isNotFound(err) {
			return service.ErrUserNotFound
		}
		return err
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated successfully", u.Safe())
}

func (h *UserHandler) ListBookmarks(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Learner.ListBookmarks(ctx, userID)
	if err != nil {
		return err
	}
	return respondList(c, items)
}

// AddBookmark checks access to the product owning the target before
// writing, so a bookmark can never reference content the caller cannot read.
func (h *UserHandler) AddBookmark(c echo.Context) error {
	userID, role, _ := middleware.CurrentUser(c)
	var req bookmarkReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	b, err := h.addBookmark(ctx, userID, role, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Bookmark added successfully", b)
}

func (h *UserHandler) addBookmark(ctx context.Context, userID string, role model.Role, req bookmarkReq) (model.Bookmark, error) {
	qnaID, pdfID := blankToNil(req.QnAID), blankToNil(req.PDFID)
	switch {
	case qnaID == nil && pdfID == nil:
		return model.Bookmark{}, errBookmarkTarget
	case qnaID != nil && pdfID != nil:
		return model.Bookmark{}, errBookmarkBoth
	}

	var err error
	if qnaID != nil {
		_, err = h.Access.RequireOwnedResource(ctx, userID, role,
			func(ctx context.Context) (string, error) { return h.Content.QnAProductID(ctx, *qnaID) },
			isNotFound, errQnANotFound)
	} else {
		_, err = h.Access.RequireOwnedResource(ctx, userID, role,
			func(ctx context.Context) (string, error) { return h.Content.PDFProductID(ctx, *pdfID) },
			isNotFound, errPDFNotFound)
	}
	if err != nil {
		return model.Bookmark{}, err
	}

	b, err := h.Learner.CreateBookmark(ctx, userID, qnaID, pdfID)
	if errors.Is(err, repository.ErrDuplicate) {
		return model.Bookmark{}, errAlreadyBookmarked
	}
	return b, err
}

// BatchAddBookmarks adds each bookmark independently under the same rules
// as AddBookmark.
func (h *UserHandler) BatchAddBookmarks(c echo.Context) error {
	userID, role, _ := middleware.CurrentUser(c)
	var req batchBookmarkReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res := runBatch(ctx, h.Log, req.Bookmarks, func(ctx context.Context, b bookmarkReq) error {
		_, err := h.addBookmark(ctx, userID, role, b)
		return err
	})
	return respond(c, http.StatusCreated, fmt.Sprintf("Added %d bookmarks, %d failed", res.Successful, res.Failed), res)
}

// BatchRemoveBookmarks deletes the caller's own bookmarks; ids that are not
// theirs are ignored.
func (h *UserHandler) BatchRemoveBookmarks(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	var req batchBookmarkDeleteReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res := runBatch(ctx, h.Log, req.BookmarkIDs, func(ctx context.Context, id string) error {
		return h.Learner.DeleteBookmark(ctx, userID, id)
	})
	return respond(c, http.StatusOK, fmt.Sprintf("Removed %d bookmarks, %d failed", res.Successful, res.Failed), res)
}

func (h *UserHandler) RemoveBookmark(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Learner.DeleteBookmark(ctx, userID, c.Param("bookmarkId")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Bookmark removed successfully", nil)
}

func (h *UserHandler) ListProgress(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	items, err := h.Learner.ListProgress(ctx, userID)
	if err != nil {
		return err
	}
	return respondList(c, items)
}

func (h *UserHandler) UpdateProgress(c echo.Context) error {
	userID, role, _ := middleware.CurrentUser(c)
	var req progressReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	p, err := h.upsertProgress(ctx, userID, role, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Progress updated successfully", p)
}

func (h *UserHandler) upsertProgress(ctx context.Context, userID string, role model.Role, req progressReq) (*model.Progress, error) {
	productID, err := h.Access.RequireOwnedResource(ctx, userID, role,
		func(ctx context.Context) (string, error) { return h.Topics.TopicProductID(ctx, req.TopicID) },
		isNotFound, errTopicNotFound)
	if err != nil {
		return nil, err
	}

	p := &model.Progress{
		UserID:            userID,
		TopicID:           req.TopicID,
		ProductID:         productID,
		CompletionPercent: *req.CompletionPercent,
		Score:             req.Score,
	}
	if err := h.Learner.UpsertProgress(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *UserHandler) BatchUpdateProgress(c echo.Context) error {
	userID, role, _ := middleware.CurrentUser(c)
	var req batchProgressReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res := runBatch(ctx, h.Log, req.ProgressUpdates, func(ctx context.Context, p progressReq) error {
		_, err := h.upsertProgress(ctx, userID, role, p)
		return err
	})
	return respond(c, http.StatusOK, fmt.Sprintf("Updated %d progress records, %d failed", res.Successful, res.Failed), res)
}

func (h *UserHandler) Stats(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	s, err := h.Learner.Stats(ctx, userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", s)
}

func blankToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
