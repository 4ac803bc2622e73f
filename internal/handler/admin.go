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

type AccountStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	UpdateRole(ctx context.Context, id string, role model.Role) error
	Delete(ctx context.Context, id string) error
}

type GrantStore interface {
	Grant(ctx context.Context, userID, productID string) (model.UserProduct, error)
	Revoke(ctx context.Context, userID, productID string) error
	ListByUser(ctx context.Context, userID string) ([]model.Product, error)
}

// AdminHandler serves /admin. Grant changes apply to the next request the
// affected user makes, since access is never cached.
type AdminHandler struct {
	Users    AccountStore
	Grants   GrantStore
	Products service.ProductCreator
	Log      logrus.FieldLogger
	Timeout  time.Duration
}

var (
	errGrantTargetMissing = apperr.New(apperr.KindNotFound, "User or product not found")
	errGrantExists        = apperr.New(apperr.KindDuplicate, "User already has access to this product")
	errGrantMissing       = apperr.New(apperr.KindNotFound, "Product access not found")
	errSelfDelete         = apperr.New(apperr.KindForbidden, "Cannot delete your own account")
	errOutranked          = apperr.New(apperr.KindForbidden, "Cannot delete a user with an equal or higher role")
	errInvalidRole        = validationMessage("Invalid role")
	errSlugTaken          = apperr.New(apperr.KindDuplicate, "A product with this slug already exists")
)

type grantReq struct {
	UserID    string `json:"userId" validate:"required,uuid"`
	ProductID string `json:"productId" validate:"required,uuid"`
}

type batchGrantReq struct {
	Operations []grantReq `json:"operations" validate:"required,min=1,dive"`
}

type roleReq struct {
	Role string `json:"role" validate:"required"`
}

type productReq struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Slug        string `json:"slug" validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

func grantError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return errGrantExists
	case errors.Is(err, repository.ErrReferenceMissing):
		return errGrantTargetMissing
	}
	return err
}

func revokeError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errGrantMissing
	}
	return err
}

func (h *AdminHandler) GrantAccess(c echo.Context) error {
	var req grantReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	up, err := h.Grants.Grant(ctx, req.UserID, req.ProductID)
	if err != nil {
		return grantError(err)
	}
	h.Log.WithFields(logrus.Fields{"user_id": req.UserID, "product_id": req.ProductID}).Info("product access granted")
	return respond(c, http.StatusCreated, "Product access granted successfully", up)
}

func (h *AdminHandler) RevokeAccess(c echo.Context) error {
	var req grantReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Grants.Revoke(ctx, req.UserID, req.ProductID); err != nil {
		return revokeError(err)
	}
	h.Log.WithFields(logrus.Fields{"user_id": req.UserID, "product_id": req.ProductID}).Info("product access revoked")
	return respond(c, http.StatusOK, "Product access revoked successfully", nil)
}

func (h *AdminHandler) BatchGrant(c echo.Context) error {
	return h.batch(c, http.StatusCreated, "Granted access", func(ctx context.Context, op grantReq) error {
		_, err := h.Grants.Grant(ctx, op.UserID, op.ProductID)
		return grantError(err)
	})
}

func (h *AdminHandler) BatchRevoke(c echo.Context) error {
	return h.batch(c, http.StatusOK, "Revoked access", func(ctx context.Context, op grantReq) error {
		return revokeError(h.Grants.Revoke(ctx, op.UserID, op.ProductID))
	})
}

func (h *AdminHandler) batch(c echo.Context, status int, verb string, apply func(context.Context, grantReq) error) error {
	var req batchGrantReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res := runBatch(ctx, h.Log, req.Operations, apply)
	msg := fmt.Sprintf("%s: %d successful, %d failed", verb, res.Successful, res.Failed)
	return respond(c, status, msg, res)
}

func (h *AdminHandler) UserProducts(c echo.Context) error {
	userID := c.Param("userId")
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return service.ErrUserNotFound
		}
		return err
	}
	items, err := h.Grants.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	return respondList(c, items)
}

// UpdateRole changes a user's role. Access tokens already issued keep the
// old role until they expire; the next refresh picks up the new one.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	var req roleReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return errInvalidRole
	}
	userID := c.Param("userId")
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Users.UpdateRole(ctx, userID, role); err != nil {
		if isNotFound(err) {
			return service.ErrUserNotFound
		}
		return err
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	h.Log.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("user role updated")
	return respond(c, http.StatusOK, "User role updated successfully", u.Safe())
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	callerID, callerRole, _ := middleware.CurrentUser(c)
	userID := c.Param("userId")
	if userID == callerID {
		return errSelfDelete
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	target, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return service.ErrUserNotFound
		}
		return err
	}
	// only a strictly higher role may delete an account
	if callerRole.Rank() <= target.Role.Rank() {
		return errOutranked
	}
	if err := h.Users.Delete(ctx, userID); err != nil {
		if isNotFound(err) {
			return service.ErrUserNotFound
		}
		return err
	}
	h.Log.WithFields(logrus.Fields{"user_id": userID, "by": callerID}).Info("user deleted")
	return respond(c, http.StatusOK, "User deleted successfully", nil)
}

func (h *AdminHandler) CreateProduct(c echo.Context) error {
	var req productReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	p := &model.Product{Name: req.Name, Slug: req.Slug, Description: req.Description, IsActive: true}
	if err := h.Products.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return errSlugTaken
		}
		return err
	}
	return respond(c, http.StatusCreated, "Product created successfully", p)
}
