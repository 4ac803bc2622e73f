package router

import "github.com/labstack/echo/v4"

// registerAuth mounts /auth. Every route is rate limited; logout also
// requires an access token.
func registerAuth(g *echo.Group, d Deps, authn echo.MiddlewareFunc) {
	g.Use(optional(d.RateLimit)...)

	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout, authn)
	g.POST("/forgot-password", d.Auth.ForgotPassword)
	g.POST("/reset-password", d.Auth.ResetPassword)
}
