package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/model"
)

// ProductAuthorizer decides per request whether a user may read a product.
type ProductAuthorizer interface {
	RequireProduct(ctx context.Context, userID string, role model.Role, productID string) error
}

// RequireProductAccess guards every route carrying a product id in param.
// The check runs before the handler looks anything up, so an ungranted
// caller gets 403 whether or not the product exists.
func RequireProductAccess(authz ProductAuthorizer, param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, role, ok := CurrentUser(c)
			if !ok {
				return errAuthRequired
			}
			if err := authz.RequireProduct(c.Request().Context(), userID, role, c.Param(param)); err != nil {
				return err
			}
			return next(c)
		}
	}
}
