package controllers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/repositories"
	"github.com/liforce/liforce_backend/utils"
	"github.com/liforce/liforce_backend/websocket"
)

// AdminController handles platform administration endpoints
type AdminController struct {
	db       *mongo.Client
	hub      *websocket.Hub
	userRepo *repositories.UserRepository
}

// NewAdminController creates a new admin controller
func NewAdminController(db *mongo.Client, hub *websocket.Hub, userRepo *repositories.UserRepository) *AdminController {
	return &AdminController{db: db, hub: hub, userRepo: userRepo}
}

// AdminSummary is the dashboard snapshot returned by GET /api/admin/summary
type AdminSummary struct {
	TotalDonors          int64              `json:"totalDonors"`
	PendingDonors        int64              `json:"pendingDonors"`
	TotalOrganizations   int64              `json:"totalOrganizations"`
	PendingOrganizations int64              `json:"pendingOrganizations"`
	OpenRequests         int64              `json:"openRequests"`
	RequestsByUrgency    []models.StockCount `json:"requestsByUrgency"`
	StockByGroup         []models.StockCount `json:"stockByGroup"`
	UpcomingAppointments int64              `json:"upcomingAppointments"`
}

// Summary computes platform-wide counts, cached for 60 seconds
func (ac *AdminController) Summary(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var cached AdminSummary
	if config.CacheGet(reqCtx, "admin:summary", &cached) {
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Summary retrieved successfully",
			Data:    cached,
		})
	}

	users := config.GetCollection(ac.db, "users")
	requests := config.GetCollection(ac.db, "requests")
	appointments := config.GetCollection(ac.db, "appointments")
	units := config.GetCollection(ac.db, "bloodUnits")

	summary := AdminSummary{}
	var err error

	if summary.TotalDonors, err = users.CountDocuments(reqCtx, bson.M{"role": models.RoleDonor}); err != nil {
		return ac.summaryError(ctx, err)
	}
	if summary.PendingDonors, err = users.CountDocuments(reqCtx, bson.M{
		"role":               models.RoleDonor,
		"verificationStatus": models.VerificationPending,
	}); err != nil {
		return ac.summaryError(ctx, err)
	}
	if summary.TotalOrganizations, err = users.CountDocuments(reqCtx, bson.M{"role": models.RoleOrganization}); err != nil {
		return ac.summaryError(ctx, err)
	}
	if summary.PendingOrganizations, err = users.CountDocuments(reqCtx, bson.M{
		"role":               models.RoleOrganization,
		"verificationStatus": models.VerificationPending,
	}); err != nil {
		return ac.summaryError(ctx, err)
	}
	if summary.OpenRequests, err = requests.CountDocuments(reqCtx, bson.M{"status": models.RequestOpen}); err != nil {
		return ac.summaryError(ctx, err)
	}
	if summary.UpcomingAppointments, err = appointments.CountDocuments(reqCtx, bson.M{"status": models.AppointmentUpcoming}); err != nil {
		return ac.summaryError(ctx, err)
	}

	urgencyCursor, err := requests.Aggregate(reqCtx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.RequestOpen}}},
		{{Key: "$group", Value: bson.M{"_id": "$urgency", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return ac.summaryError(ctx, err)
	}
	if err := urgencyCursor.All(reqCtx, &summary.RequestsByUrgency); err != nil {
		urgencyCursor.Close(reqCtx)
		return ac.summaryError(ctx, err)
	}

	stockCursor, err := units.Aggregate(reqCtx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.UnitAvailable}}},
		{{Key: "$group", Value: bson.M{"_id": "$bloodGroup", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return ac.summaryError(ctx, err)
	}
	if err := stockCursor.All(reqCtx, &summary.StockByGroup); err != nil {
		stockCursor.Close(reqCtx)
		return ac.summaryError(ctx, err)
	}

	config.CacheSet(reqCtx, "admin:summary", summary, 60*time.Second)

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Summary retrieved successfully",
		Data:    summary,
	})
}

func (ac *AdminController) summaryError(ctx echo.Context, err error) error {
	log.Printf("Error building admin summary: %v", err)
	return ctx.JSON(http.StatusInternalServerError, models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Failed to build summary",
	})
}

// ListDonors returns donor accounts, optionally filtered by verification status
func (ac *AdminController) ListDonors(ctx echo.Context) error {
	return ac.listUsers(ctx, models.RoleDonor)
}

// ListOrganizations returns organization accounts, optionally filtered by
// verification status
func (ac *AdminController) ListOrganizations(ctx echo.Context) error {
	return ac.listUsers(ctx, models.RoleOrganization)
}

func (ac *AdminController) listUsers(ctx echo.Context, role string) error {
	filter := bson.M{"role": role}
	if status := ctx.QueryParam("verificationStatus"); status != "" {
		filter["verificationStatus"] = status
	}
	if status := ctx.QueryParam("accountStatus"); status != "" {
		filter["accountStatus"] = status
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"password": 0})
	cursor, err := config.GetCollection(ac.db, "users").Find(reqCtx, filter, opts)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch users",
		})
	}
	defer cursor.Close(reqCtx)

	users := []models.User{}
	if err := cursor.All(reqCtx, &users); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode users",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Users retrieved successfully",
		Data:    users,
	})
}

// setVerification applies an approve/reject decision and notifies the user
func (ac *AdminController) setVerification(ctx echo.Context, status string) error {
	userID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ac.userRepo.SetVerificationStatus(reqCtx, userID, status); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update verification status",
		})
	}

	message := "Your account has been approved, welcome to LiForce"
	if status == models.VerificationRejected {
		message = "Your account verification was rejected, contact support for details"
	}
	if err := utils.Notify(ac.db, ac.hub, userID,
		"Verification update", message,
		models.NotificationVerification, nil); err != nil {
		log.Printf("Failed to notify user %s: %v", userID.Hex(), err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Verification status updated",
	})
}

// Approve sets a user's verification status to approved
func (ac *AdminController) Approve(ctx echo.Context) error {
	return ac.setVerification(ctx, models.VerificationApproved)
}

// Reject sets a user's verification status to rejected
func (ac *AdminController) Reject(ctx echo.Context) error {
	return ac.setVerification(ctx, models.VerificationRejected)
}

func (ac *AdminController) setAccountStatus(ctx echo.Context, status string) error {
	userID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ac.userRepo.SetAccountStatus(reqCtx, userID, status); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update account status",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Account status updated",
	})
}

// Block suspends a user account
func (ac *AdminController) Block(ctx echo.Context) error {
	return ac.setAccountStatus(ctx, models.AccountBlocked)
}

// Unblock reactivates a user account
func (ac *AdminController) Unblock(ctx echo.Context) error {
	return ac.setAccountStatus(ctx, models.AccountActive)
}

// Broadcast fans out a notification to every user matching the filter and
// returns the recipient count. Zero recipients is a success with sent=0.
func (ac *AdminController) Broadcast(ctx echo.Context) error {
	var req models.BroadcastRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.Title == "" || req.Message == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "title and message are required",
		})
	}

	if req.BloodGroup != "" && !models.IsValidBloodGroup(req.BloodGroup) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid blood group filter",
		})
	}

	sent, err := utils.Broadcast(ac.db, ac.hub, utils.BroadcastCriteria{
		Role:       req.Role,
		City:       req.City,
		BloodGroup: req.BloodGroup,
	}, utils.SanitizeInput(req.Title), utils.SanitizeInput(req.Message), nil)
	if err != nil {
		log.Printf("Broadcast failed: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to send broadcast",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Broadcast sent",
		Data:    map[string]int{"sent": sent},
	})
}
