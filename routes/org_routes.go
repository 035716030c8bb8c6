package routes

import (
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
)

// RegisterOrgRoutes sets up the organization-facing protected routes. The
// capability middleware enforces the hospital/bank/both split so handlers
// never re-derive it.
func RegisterOrgRoutes(e *echo.Echo, db *mongo.Client,
	inventoryController *controllers.InventoryController,
	requestController *controllers.RequestController,
	appointmentController *controllers.AppointmentController,
	campController *controllers.CampController) {

	org := e.Group("/api/org")
	org.Use(middleware.JWTMiddleware())
	org.Use(middleware.RequireOrganization())

	// Inventory requires the bank side
	inventory := org.Group("/inventory", middleware.RequireCapability(db, middleware.CanManageInventory))
	inventory.POST("", inventoryController.AddUnit)
	inventory.GET("", inventoryController.ListInventory)
	inventory.GET("/expiring", inventoryController.ExpiringSoon)
	inventory.GET("/distribution", inventoryController.Distribution)
	inventory.GET("/units/:id/barcode", inventoryController.UnitBarcode)
	inventory.PUT("/units/:id/discard", inventoryController.DiscardUnit)

	// Request creation and lifecycle require the hospital side
	requests := org.Group("/requests", middleware.RequireCapability(db, middleware.CanCreateRequests))
	requests.POST("", requestController.CreateRequest)
	requests.GET("", requestController.ListRequests)
	requests.GET("/:id", requestController.GetRequest)
	requests.GET("/:id/matches", requestController.FindMatches)
	requests.PUT("/:id/assign", requestController.AssignResponder)
	requests.PUT("/:id/fulfill", requestController.FulfillRequest)
	requests.PUT("/:id/cancel", requestController.CancelRequest)

	// Banks view open requests around them and reserve their own stock
	incoming := org.Group("/requests", middleware.RequireCapability(db, middleware.CanViewIncoming))
	incoming.GET("/incoming", requestController.ListIncoming)
	reserve := org.Group("/requests", middleware.RequireCapability(db, middleware.CanManageInventory))
	reserve.POST("/:id/reserve", requestController.ReserveUnits)

	// Appointments and camps are open to every organization type
	anyOrg := org.Group("", middleware.RequireCapability(db, middleware.AnyOrganization))
	anyOrg.GET("/appointments", appointmentController.ListForOrganization)
	anyOrg.PUT("/appointments/:id/complete", appointmentController.Complete)
	anyOrg.PUT("/appointments/:id/cancel", appointmentController.Cancel)
	anyOrg.POST("/camps", campController.CreateCamp)
	anyOrg.GET("/camps", campController.ListCamps)
	anyOrg.PUT("/camps/:id/complete", campController.CompleteCamp)
	anyOrg.PUT("/camps/:id/cancel", campController.CancelCamp)
}
