package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/model"
)

var errForbidden = apperr.New(apperr.KindForbidden, "Forbidden")

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after Authenticate.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl := ClaimsFrom(c)
			if cl == nil {
				return errAuthRequired
			}
			if !allowed[cl.Role] {
				return errForbidden
			}
			return next(c)
		}
	}
}

// RequireMinRole admits floor and every role ranked above it.
func RequireMinRole(floor model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl := ClaimsFrom(c)
			if cl == nil {
				return errAuthRequired
			}
			if !cl.Role.AtLeast(floor) {
				return errForbidden
			}
			return next(c)
		}
	}
}
