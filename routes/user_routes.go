package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/websocket"
)

// RegisterUserRoutes sets up the shared profile routes and the realtime
// notification socket
func RegisterUserRoutes(e *echo.Echo, userController *controllers.UserController, hub *websocket.Hub) {
	users := e.Group("/api/users")
	users.Use(middleware.JWTMiddleware())

	users.GET("/profile", userController.GetProfile)
	users.PUT("/profile", userController.UpdateProfile)
	users.PUT("/location", userController.UpdateLocation)
	users.PUT("/eligibility", userController.UpdateEligibility)

	ws := e.Group("/api/ws")
	ws.Use(middleware.JWTQueryMiddleware())
	ws.GET("", func(c echo.Context) error {
		userID, err := middleware.ExtractUserID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Unauthorized",
			})
		}

		objID, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid user ID",
			})
		}

		return websocket.HandleWebSocket(c, hub, objID)
	})
}
