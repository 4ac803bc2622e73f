package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/middleware"
)

// registerProducts mounts /products. The catalog is public and cached;
// anything scoped to one product goes through the access gate.
func registerProducts(g *echo.Group, d Deps, authn echo.MiddlewareFunc) {
	g.GET("", d.Products.List, optional(d.Cache)...)

	scoped := g.Group("/:productId", authn, middleware.RequireProductAccess(d.Access, "productId"))
	scoped.GET("/topics", d.Products.Topics)
	scoped.GET("/qna", d.Products.QnA)
	scoped.GET("/quizzes", d.Products.Quizzes)
	scoped.GET("/pdfs", d.Products.PDFs)
	scoped.POST("/quizzes/:quizId/submit", d.Products.SubmitQuiz)
}
