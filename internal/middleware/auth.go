package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/apperr"
	"github.com/iliyamo/learning-api/internal/model"
	"github.com/iliyamo/learning-api/internal/utils"
)

// Context keys set by Authenticate. user_id and role stay plain strings so
// the rate limiter and request logger can read them without importing utils.
const (
	ContextClaims = "claims"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

var (
	errAuthRequired = apperr.New(apperr.KindUnauthorized, "Authentication required")
	errInvalidToken = apperr.New(apperr.KindUnauthorized, "Invalid or expired token")
)

// AccessVerifier is the part of the token issuer Authenticate needs.
type AccessVerifier interface {
	VerifyAccess(token string) (*utils.Claims, error)
}

// Authenticate requires a valid access token in the Authorization header.
// Refresh tokens are rejected even when their signature is valid.
func Authenticate(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return errAuthRequired
			}
			raw, ok := bearer(auth)
			if !ok {
				return errAuthRequired
			}
			claims, err := v.VerifyAccess(raw)
			if err != nil {
				return errInvalidToken
			}
			c.Set(ContextClaims, claims)
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextRole, string(claims.Role))
			return next(c)
		}
	}
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFrom returns the claims stored by Authenticate, or nil on routes
// that are not authenticated.
func ClaimsFrom(c echo.Context) *utils.Claims {
	cl, _ := c.Get(ContextClaims).(*utils.Claims)
	return cl
}

// CurrentUser returns the caller's id and role. ok is false when the
// request did not pass through Authenticate.
func CurrentUser(c echo.Context) (userID string, role model.Role, ok bool) {
	cl := ClaimsFrom(c)
	if cl == nil {
		return "", "", false
	}
	return cl.UserID, cl.Role, true
}
