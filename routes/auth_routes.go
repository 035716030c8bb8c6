package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
)

// RegisterAuthRoutes sets up signup, login, logout and token validation
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController) {
	auth := e.Group("/api/auth")

	auth.POST("/signup", authController.Signup)
	auth.POST("/login", authController.Login)
	auth.GET("/validate", authController.Validate)

	// Logout needs the parsed token to blacklist it
	protected := e.Group("/api/auth")
	protected.Use(middleware.JWTMiddleware())
	protected.POST("/logout", authController.Logout)
}
