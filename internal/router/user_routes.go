package router

import "github.com/labstack/echo/v4"

// registerUsers mounts /users; the group is already authenticated.
func registerUsers(g *echo.Group, d Deps) {
	g.GET("/profile", d.Users.Profile)
	g.PUT("/profile", d.Users.UpdateProfile)
	g.PUT("/change-password", d.Auth.ChangePassword)

	g.GET("/bookmarks", d.Users.ListBookmarks)
	g.POST("/bookmarks", d.Users.AddBookmark)
	g.DELETE("/bookmarks/:bookmarkId", d.Users.RemoveBookmark)

	g.GET("/progress", d.Users.ListProgress)
	g.POST("/progress", d.Users.UpdateProgress)
	g.GET("/stats", d.Users.Stats)

	g.POST("/batch/bookmarks", d.Users.BatchAddBookmarks)
	g.DELETE("/batch/bookmarks", d.Users.BatchRemoveBookmarks)
	g.POST("/batch/progress", d.Users.BatchUpdateProgress)
}
