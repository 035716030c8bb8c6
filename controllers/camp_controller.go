package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/utils"
)

// CampController handles donation camp management and donor registration
type CampController struct {
	db *mongo.Client
}

// NewCampController creates a new camp controller
func NewCampController(db *mongo.Client) *CampController {
	return &CampController{db: db}
}

func (cc *CampController) camps() *mongo.Collection {
	return config.GetCollection(cc.db, "camps")
}

// CreateCamp schedules a new donation camp
func (cc *CampController) CreateCamp(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.CreateCampRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.Name == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Camp name is required",
		})
	}

	if req.Date.IsZero() || !req.Date.After(time.Now()) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Camp date must be in the future",
		})
	}

	if err := utils.ValidateCoordinates(req.Lat, req.Lng); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	now := time.Now()
	camp := models.Camp{
		ID:               primitive.NewObjectID(),
		OrganizationID:   org.ID,
		Name:             utils.SanitizeInput(req.Name),
		Address:          utils.SanitizeInput(req.Address),
		Location:         models.NewGeoPoint(req.Lat, req.Lng),
		Date:             req.Date,
		Status:           models.CampPlanned,
		RegisteredDonors: []primitive.ObjectID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := cc.camps().InsertOne(reqCtx, camp); err != nil {
		log.Printf("Error inserting camp: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create camp",
		})
	}

	return ctx.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Camp created successfully",
		Data:    camp,
	})
}

// ListCamps returns the organization's camps
func (cc *CampController) ListCamps(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	filter := bson.M{"organizationId": org.ID}
	if status := ctx.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := cc.camps().Find(reqCtx, filter, opts)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch camps",
		})
	}
	defer cursor.Close(reqCtx)

	camps := []models.Camp{}
	if err := cursor.All(reqCtx, &camps); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode camps",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Camps retrieved successfully",
		Data:    camps,
	})
}

// setCampStatus is the shared CAS transition for complete and cancel
func (cc *CampController) setCampStatus(ctx echo.Context, toStatus string) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	campID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid camp ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := cc.camps().FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":            campID,
			"organizationId": org.ID,
			"status":         models.CampPlanned,
		},
		bson.M{"$set": bson.M{
			"status":    toStatus,
			"updatedAt": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var camp models.Camp
	if err := res.Decode(&camp); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Camp not found or no longer planned",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update camp",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Camp updated successfully",
		Data:    camp,
	})
}

// CompleteCamp marks a planned camp as completed
func (cc *CampController) CompleteCamp(ctx echo.Context) error {
	return cc.setCampStatus(ctx, models.CampCompleted)
}

// CancelCamp marks a planned camp as cancelled
func (cc *CampController) CancelCamp(ctx echo.Context) error {
	return cc.setCampStatus(ctx, models.CampCancelled)
}

// NearbyCamps returns planned camps near a donor's position
func (cc *CampController) NearbyCamps(ctx echo.Context) error {
	latStr := ctx.QueryParam("lat")
	lngStr := ctx.QueryParam("lng")
	if latStr == "" || lngStr == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "lat and lng are required",
		})
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid latitude",
		})
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid longitude",
		})
	}
	if err := utils.ValidateCoordinates(lat, lng); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	km := 25.0
	if kmStr := ctx.QueryParam("km"); kmStr != "" {
		parsed, err := strconv.ParseFloat(kmStr, 64)
		if err != nil || parsed <= 0 {
			return ctx.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid km parameter",
			})
		}
		km = parsed
	}

	filter := bson.M{
		"status": models.CampPlanned,
		"date":   bson.M{"$gte": time.Now()},
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": km * 1000,
			},
		},
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := cc.camps().Find(reqCtx, filter)
	if err != nil {
		log.Printf("Error fetching nearby camps: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch nearby camps",
		})
	}
	defer cursor.Close(reqCtx)

	camps := []models.Camp{}
	if err := cursor.All(reqCtx, &camps); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode nearby camps",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Nearby camps retrieved successfully",
		Data:    camps,
	})
}

// Register adds the calling donor to a planned camp's roster. $addToSet keeps
// the roster free of duplicates on repeat calls.
func (cc *CampController) Register(ctx echo.Context) error {
	donor, err := utils.CurrentUser(ctx, cc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	campID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid camp ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := cc.camps().FindOneAndUpdate(reqCtx,
		bson.M{"_id": campID, "status": models.CampPlanned},
		bson.M{
			"$addToSet": bson.M{"registeredDonors": donor.ID},
			"$set":      bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var camp models.Camp
	if err := res.Decode(&camp); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Camp not found or no longer planned",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to register for camp",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Registered for camp successfully",
		Data:    camp,
	})
}

// Unregister removes the calling donor from a planned camp's roster
func (cc *CampController) Unregister(ctx echo.Context) error {
	donor, err := utils.CurrentUser(ctx, cc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	campID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid camp ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := cc.camps().FindOneAndUpdate(reqCtx,
		bson.M{"_id": campID, "status": models.CampPlanned},
		bson.M{
			"$pull": bson.M{"registeredDonors": donor.ID},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var camp models.Camp
	if err := res.Decode(&camp); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Camp not found or no longer planned",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to unregister from camp",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Unregistered from camp successfully",
		Data:    camp,
	})
}
