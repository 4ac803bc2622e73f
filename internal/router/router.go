package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/handler"
	"github.com/iliyamo/learning-api/internal/middleware"
	"github.com/iliyamo/learning-api/internal/service"
)

// Deps is everything the route table needs. RateLimit and Cache may be nil.
type Deps struct {
	Verifier  middleware.AccessVerifier
	Access    *service.AccessChecker
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Products  *handler.ProductHandler
	Admin     *handler.AdminHandler
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Metrics   http.Handler
}

// RegisterRoutes registers the unauthenticated service routes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/", handler.Root)
	e.GET("/health", handler.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}
}

// RegisterAPI mounts every area under /api/v1.
func RegisterAPI(e *echo.Echo, d Deps) {
	api := e.Group("/api/v1")
	authn := middleware.Authenticate(d.Verifier)

	registerAuth(api.Group("/auth"), d, authn)
	registerUsers(api.Group("/users", authn), d)
	registerProducts(api.Group("/products"), d, authn)
	registerAdmin(api.Group("/admin", authn, middleware.RequireRole(adminRoles...)), d)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
