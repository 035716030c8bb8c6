package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
)

// RegisterAdminRoutes sets up the admin-only routes
func RegisterAdminRoutes(e *echo.Echo, adminController *controllers.AdminController) {
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireAdmin())

	admin.GET("/summary", adminController.Summary)

	admin.GET("/donors", adminController.ListDonors)
	admin.GET("/organizations", adminController.ListOrganizations)

	// Verification decisions, same handler for both account kinds
	admin.PUT("/donors/:id/approve", adminController.Approve)
	admin.PUT("/donors/:id/reject", adminController.Reject)
	admin.PUT("/organizations/:id/approve", adminController.Approve)
	admin.PUT("/organizations/:id/reject", adminController.Reject)

	admin.PUT("/users/:id/block", adminController.Block)
	admin.PUT("/users/:id/unblock", adminController.Unblock)

	admin.POST("/broadcast", adminController.Broadcast)
}
