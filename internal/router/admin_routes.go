package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/middleware"
	"github.com/iliyamo/learning-api/internal/model"
)

var adminRoles = []model.Role{model.RoleAdmin, model.RoleMasterAdmin}

// registerAdmin mounts /admin for ADMIN and MASTER_ADMIN. Role changes and
// product creation are reserved for MASTER_ADMIN.
func registerAdmin(g *echo.Group, d Deps) {
	master := middleware.RequireRole(model.RoleMasterAdmin)

	g.POST("/users/grant-product-access", d.Admin.GrantAccess)
	g.POST("/users/revoke-product-access", d.Admin.RevokeAccess)
	g.POST("/batch/users/grant-product-access", d.Admin.BatchGrant)
	g.POST("/batch/users/revoke-product-access", d.Admin.BatchRevoke)

	g.GET("/users/:userId/products", d.Admin.UserProducts)
	g.PUT("/users/:userId/role", d.Admin.UpdateRole, master)
	g.DELETE("/users/:userId", d.Admin.DeleteUser)

	g.POST("/products", d.Admin.CreateProduct, master)
}
