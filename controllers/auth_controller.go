package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/liforce/liforce_backend/middleware"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/repositories"
	"github.com/liforce/liforce_backend/utils"
)

// AuthController contains authentication logic
type AuthController struct {
	DB       *mongo.Client
	userRepo *repositories.UserRepository
	logger   *log.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(db *mongo.Client, userRepo *repositories.UserRepository) *AuthController {
	return &AuthController{
		DB:       db,
		userRepo: userRepo,
		logger:   log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
}

// Signup registers a donor or organization account
func (ac *AuthController) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}

	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters",
		})
	}

	if req.FullName == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Full name is required",
		})
	}

	phone, err := utils.SanitizePhone(req.Phone)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid phone number",
		})
	}

	// Admin accounts are provisioned out of band, never via signup
	if req.Role != models.RoleDonor && req.Role != models.RoleOrganization {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Role must be donor or organization",
		})
	}

	if req.Role == models.RoleDonor && !models.IsValidBloodGroup(req.BloodGroup) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A valid blood group is required for donors",
		})
	}

	if req.Role == models.RoleOrganization {
		switch req.OrganizationType {
		case models.OrgTypeHospital, models.OrgTypeBank, models.OrgTypeBoth:
		default:
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "organizationType must be hospital, bank or both",
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := ac.userRepo.FindByEmail(ctx, email); err == nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "An account with this email already exists",
		})
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		ac.logger.Printf("Failed to hash password: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create account",
		})
	}

	now := time.Now()
	user := models.User{
		ID:                 primitive.NewObjectID(),
		Email:              email,
		Password:           hashedPassword,
		FullName:           utils.SanitizeInput(req.FullName),
		Phone:              phone,
		City:               utils.SanitizeInput(req.City),
		Role:               req.Role,
		VerificationStatus: models.VerificationPending,
		AccountStatus:      models.AccountActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if req.Lat != 0 || req.Lng != 0 {
		if err := utils.ValidateCoordinates(req.Lat, req.Lng); err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
			})
		}
		user.Location = models.NewGeoPoint(req.Lat, req.Lng)
	}

	switch req.Role {
	case models.RoleDonor:
		user.BloodGroup = req.BloodGroup
		user.Eligible = true
	case models.RoleOrganization:
		user.OrganizationType = req.OrganizationType
		user.Address = utils.SanitizeInput(req.Address)
	}

	if err := ac.userRepo.Create(ctx, &user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "An account with this email already exists",
			})
		}
		ac.logger.Printf("Failed to insert user: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create account",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		ac.logger.Printf("Failed to generate token: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Account created but failed to generate token, please log in",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Account created successfully",
		Data: models.LoginData{
			Token:        token,
			RefreshToken: refreshToken,
			User:         user,
		},
	})
}

// Login authenticates a user and returns a JWT pair
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := ac.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	if user.AccountStatus == models.AccountBlocked {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Account is blocked, contact support",
		})
	}

	token, refreshToken, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		ac.logger.Printf("Failed to generate token: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: models.LoginData{
			Token:        token,
			RefreshToken: refreshToken,
			User:         *user,
		},
	})
}

// Logout blacklists the presented token
func (ac *AuthController) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No token provided",
		})
	}

	claims := middleware.GetUserFromToken(c)
	expiry := time.Now().Add(72 * time.Hour)
	if claims != nil && claims.ExpiresAt > 0 {
		expiry = time.Unix(claims.ExpiresAt, 0)
	}
	middleware.BlacklistToken(tokenString, expiry)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully",
	})
}

// Validate reports whether the presented token is still usable
func (ac *AuthController) Validate(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		tokenString = ""
	}

	result, err := utils.ValidateToken(tokenString, ac.DB)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to validate token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token validation result",
		Data:    result,
	})
}
