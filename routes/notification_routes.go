package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
)

// RegisterNotificationRoutes sets up the per-user notification feed
func RegisterNotificationRoutes(e *echo.Echo, notificationController *controllers.NotificationController) {
	n := e.Group("/api/notifications")
	n.Use(middleware.JWTMiddleware())

	n.GET("", notificationController.List)
	n.GET("/unread-count", notificationController.UnreadCount)
	n.PUT("/:id/read", notificationController.MarkRead)
	n.PUT("/read-all", notificationController.MarkAllRead)
}
