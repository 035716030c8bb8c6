package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
)

// RegisterDonorRoutes sets up the donor-facing protected routes
func RegisterDonorRoutes(e *echo.Echo,
	requestController *controllers.RequestController,
	appointmentController *controllers.AppointmentController,
	campController *controllers.CampController) {

	r := e.Group("/api/donor")
	r.Use(middleware.JWTMiddleware())
	r.Use(middleware.RequireDonor())

	// Open requests the donor can serve
	r.GET("/requests/nearby", requestController.NearbyRequests)

	// Appointments
	r.POST("/appointments", appointmentController.Book)
	r.GET("/appointments", appointmentController.ListForDonor)
	r.PUT("/appointments/:id/cancel", appointmentController.Cancel)

	// Camps
	r.GET("/camps/nearby", campController.NearbyCamps)
	r.POST("/camps/:id/register", campController.Register)
	r.DELETE("/camps/:id/register", campController.Unregister)
}
