package main

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/controllers"
	"github.com/liforce/liforce_backend/middleware"
	"github.com/liforce/liforce_backend/repositories"
	"github.com/liforce/liforce_backend/routes"
	"github.com/liforce/liforce_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis (optional, caches degrade gracefully without it)
	config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowedDomains: []string{"*"},
		AllowInlineJS:  false,
	}))

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "LiForce Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	userRepo := repositories.NewUserRepository(client)

	// Initialize controllers
	authController := controllers.NewAuthController(client, userRepo)
	userController := controllers.NewUserController(client)
	inventoryController := controllers.NewInventoryController(client)
	requestController := controllers.NewRequestController(client, wsHub)
	appointmentController := controllers.NewAppointmentController(client, wsHub, userRepo)
	campController := controllers.NewCampController(client)
	notificationController := controllers.NewNotificationController(client)
	adminController := controllers.NewAdminController(client, wsHub, userRepo)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterUserRoutes(e, userController, wsHub)
	routes.RegisterDonorRoutes(e, requestController, appointmentController, campController)
	routes.RegisterOrgRoutes(e, client, inventoryController, requestController, appointmentController, campController)
	routes.RegisterNotificationRoutes(e, notificationController)
	routes.RegisterAdminRoutes(e, adminController)

	// Purge expired blacklisted tokens
	go middleware.CleanupBlacklist()

	// Sweep expired blood units every hour
	go func() {
		for {
			controllers.MarkExpiredUnits(client)
			time.Sleep(1 * time.Hour)
		}
	}()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}
