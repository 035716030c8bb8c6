package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/utils"
)

// UserController handles profile endpoints shared by all roles
type UserController struct {
	db *mongo.Client
}

// NewUserController creates a new user controller
func NewUserController(db *mongo.Client) *UserController {
	return &UserController{db: db}
}

// GetProfile returns the caller's own profile. For organizations the derived
// capability set rides along so the client never re-derives it.
func (uc *UserController) GetProfile(ctx echo.Context) error {
	user, err := utils.CurrentUser(ctx, uc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	data := map[string]interface{}{"user": user}
	if user.Role == models.RoleOrganization {
		data["capabilities"] = models.OrgCapabilities(user.OrganizationType)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully",
		Data:    data,
	})
}

// UpdateProfile updates the caller's contact details
func (uc *UserController) UpdateProfile(ctx echo.Context) error {
	user, err := utils.CurrentUser(ctx, uc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req struct {
		FullName string `json:"fullName"`
		Phone    string `json:"phone"`
		City     string `json:"city"`
		Address  string `json:"address"`
	}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	update := bson.M{"updatedAt": time.Now()}
	if req.FullName != "" {
		update["fullName"] = utils.SanitizeInput(req.FullName)
	}
	if req.Phone != "" {
		phone, err := utils.SanitizePhone(req.Phone)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid phone number",
			})
		}
		update["phone"] = phone
	}
	if req.City != "" {
		update["city"] = utils.SanitizeInput(req.City)
	}
	if req.Address != "" && user.Role == models.RoleOrganization {
		update["address"] = utils.SanitizeInput(req.Address)
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = config.GetCollection(uc.db, "users").UpdateOne(reqCtx,
		bson.M{"_id": user.ID},
		bson.M{"$set": update},
	)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update profile",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated successfully",
	})
}

// UpdateLocation sets the caller's geo position, used by every $near lookup
func (uc *UserController) UpdateLocation(ctx echo.Context) error {
	user, err := utils.CurrentUser(ctx, uc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := utils.ValidateCoordinates(req.Lat, req.Lng); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = config.GetCollection(uc.db, "users").UpdateOne(reqCtx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{
			"location":  models.NewGeoPoint(req.Lat, req.Lng),
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update location",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Location updated successfully",
	})
}

// UpdateEligibility lets a donor pause themselves from matching (illness,
// travel, recent donation elsewhere)
func (uc *UserController) UpdateEligibility(ctx echo.Context) error {
	user, err := utils.CurrentUser(ctx, uc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	if user.Role != models.RoleDonor {
		return ctx.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Only donors can update eligibility",
		})
	}

	var req struct {
		Eligible bool `json:"eligible"`
	}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = config.GetCollection(uc.db, "users").UpdateOne(reqCtx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{
			"eligible":  req.Eligible,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update eligibility",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Eligibility updated successfully",
	})
}
