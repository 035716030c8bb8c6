package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/middleware"
	"github.com/liforce/liforce_backend/models"
)

// NotificationController handles in-app notification listing and read state
type NotificationController struct {
	db *mongo.Client
}

// NewNotificationController creates a new notification controller
func NewNotificationController(db *mongo.Client) *NotificationController {
	return &NotificationController{db: db}
}

func (nc *NotificationController) notifications() *mongo.Collection {
	return config.GetCollection(nc.db, "notifications")
}

func (nc *NotificationController) callerID(ctx echo.Context) (primitive.ObjectID, error) {
	userID, err := middleware.ExtractUserID(ctx)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return primitive.ObjectIDFromHex(userID)
}

// List returns the caller's notifications, newest first
func (nc *NotificationController) List(ctx echo.Context) error {
	userID, err := nc.callerID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(100)
	cursor, err := nc.notifications().Find(reqCtx, bson.M{"userId": userID}, opts)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch notifications",
		})
	}
	defer cursor.Close(reqCtx)

	notifications := []models.Notification{}
	if err := cursor.All(reqCtx, &notifications); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode notifications",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notifications retrieved successfully",
		Data:    notifications,
	})
}

// UnreadCount returns the caller's unread notification count
func (nc *NotificationController) UnreadCount(ctx echo.Context) error {
	userID, err := nc.callerID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := nc.notifications().CountDocuments(reqCtx, bson.M{
		"userId": userID,
		"isRead": false,
	})
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count notifications",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Unread count retrieved successfully",
		Data:    map[string]int64{"unread": count},
	})
}

// MarkRead flips a single notification to read. Only the owner may do so.
func (nc *NotificationController) MarkRead(ctx echo.Context) error {
	userID, err := nc.callerID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	notificationID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid notification ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := nc.notifications().UpdateOne(reqCtx,
		bson.M{"_id": notificationID, "userId": userID},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update notification",
		})
	}
	if res.MatchedCount == 0 {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Notification not found",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notification marked as read",
	})
}

// MarkAllRead flips all of the caller's notifications to read
func (nc *NotificationController) MarkAllRead(ctx echo.Context) error {
	userID, err := nc.callerID(ctx)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := nc.notifications().UpdateMany(reqCtx,
		bson.M{"userId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update notifications",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "All notifications marked as read",
		Data:    map[string]int64{"updated": res.ModifiedCount},
	})
}
