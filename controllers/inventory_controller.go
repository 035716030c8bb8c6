package controllers

import (
	"bytes"
	"context"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/models"
	"github.com/liforce/liforce_backend/utils"
)

// InventoryController handles blood-unit inventory endpoints for
// organizations that manage stock.
type InventoryController struct {
	db *mongo.Client
}

// NewInventoryController creates a new inventory controller
func NewInventoryController(db *mongo.Client) *InventoryController {
	return &InventoryController{db: db}
}

// orgFromContext returns the organization user loaded by the capability
// middleware.
func orgFromContext(ctx echo.Context) (*models.User, bool) {
	org, ok := ctx.Get("orgUser").(*models.User)
	return org, ok
}

func distributionCacheKey(orgID primitive.ObjectID) string {
	return "stock:distribution:" + orgID.Hex()
}

// AddUnit registers a new blood unit with status available
func (ic *InventoryController) AddUnit(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.AddUnitRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if !models.IsValidBloodGroup(req.BloodGroup) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid blood group",
		})
	}

	component := req.Component
	if component == "" {
		component = models.ComponentWholeBlood
	}
	if !models.IsValidComponent(component) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid blood component",
		})
	}

	if req.CollectionDate.IsZero() || req.ExpiryDate.IsZero() {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "collectionDate and expiryDate are required",
		})
	}

	if !req.ExpiryDate.After(req.CollectionDate) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "expiryDate must be after collectionDate",
		})
	}

	barcodeValue := strings.TrimSpace(req.Barcode)
	if barcodeValue == "" {
		barcodeValue = "LF-" + strings.ToUpper(uuid.New().String()[:13])
	}

	now := time.Now()
	unit := models.BloodUnit{
		ID:             primitive.NewObjectID(),
		OrganizationID: org.ID,
		BloodGroup:     req.BloodGroup,
		Component:      component,
		CollectionDate: req.CollectionDate,
		ExpiryDate:     req.ExpiryDate,
		Status:         models.UnitAvailable,
		Barcode:        barcodeValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := config.GetCollection(ic.db, "bloodUnits").InsertOne(reqCtx, unit)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "A unit with this barcode already exists",
			})
		}
		log.Printf("Error inserting blood unit: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to add blood unit",
		})
	}

	config.CacheDel(reqCtx, distributionCacheKey(org.ID), "admin:summary")

	return ctx.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Blood unit added successfully",
		Data:    unit,
	})
}

// ListInventory returns the organization's units, optionally filtered by status
func (ic *InventoryController) ListInventory(ctx echo.Context) error {
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
	if group := ctx.QueryParam("bloodGroup"); group != "" {
		filter["bloodGroup"] = group
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "expiryDate", Value: 1}})
	cursor, err := config.GetCollection(ic.db, "bloodUnits").Find(reqCtx, filter, opts)
	if err != nil {
		log.Printf("Error listing inventory: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch inventory",
		})
	}
	defer cursor.Close(reqCtx)

	units := []models.BloodUnit{}
	if err := cursor.All(reqCtx, &units); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode inventory",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Inventory retrieved successfully",
		Data:    units,
	})
}

// ExpiringSoon returns available units whose expiry date falls within the
// given number of days (default 7)
func (ic *InventoryController) ExpiringSoon(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	days := 7
	if daysStr := ctx.QueryParam("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 {
			return ctx.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid days parameter",
			})
		}
		days = parsed
	}

	now := time.Now()
	filter := bson.M{
		"organizationId": org.ID,
		"status":         models.UnitAvailable,
		"expiryDate": bson.M{
			"$gte": now,
			"$lte": now.AddDate(0, 0, days),
		},
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "expiryDate", Value: 1}})
	cursor, err := config.GetCollection(ic.db, "bloodUnits").Find(reqCtx, filter, opts)
	if err != nil {
		log.Printf("Error fetching expiring units: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch expiring units",
		})
	}
	defer cursor.Close(reqCtx)

	units := []models.BloodUnit{}
	if err := cursor.All(reqCtx, &units); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode expiring units",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Expiring units retrieved successfully",
		Data:    units,
	})
}

// Distribution returns the count of available units grouped by blood group,
// cached for 30 seconds as a display cache
func (ic *InventoryController) Distribution(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cacheKey := distributionCacheKey(org.ID)
	var cached []models.StockCount
	if config.CacheGet(reqCtx, cacheKey, &cached) {
		return ctx.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Stock distribution retrieved successfully",
			Data:    cached,
		})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"organizationId": org.ID,
			"status":         models.UnitAvailable,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$bloodGroup",
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := config.GetCollection(ic.db, "bloodUnits").Aggregate(reqCtx, pipeline)
	if err != nil {
		log.Printf("Error aggregating stock distribution: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute stock distribution",
		})
	}
	defer cursor.Close(reqCtx)

	distribution := []models.StockCount{}
	if err := cursor.All(reqCtx, &distribution); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode stock distribution",
		})
	}

	config.CacheSet(reqCtx, cacheKey, distribution, 30*time.Second)

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Stock distribution retrieved successfully",
		Data:    distribution,
	})
}

// UnitBarcode renders the unit's barcode as a code128 PNG for label printing
func (ic *InventoryController) UnitBarcode(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	unitID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid unit ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var unit models.BloodUnit
	err = config.GetCollection(ic.db, "bloodUnits").FindOne(reqCtx, bson.M{
		"_id":            unitID,
		"organizationId": org.ID,
	}).Decode(&unit)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Blood unit not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch blood unit",
		})
	}

	code, err := code128.Encode(unit.Barcode)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to encode barcode",
		})
	}

	scaled, err := barcode.Scale(code, 400, 120)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to scale barcode",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to render barcode",
		})
	}

	return ctx.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// DiscardUnit moves an available unit to expired (damaged or failed QC)
func (ic *InventoryController) DiscardUnit(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	unitID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid unit ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Compare-and-swap so a concurrently reserved unit cannot be discarded
	res := config.GetCollection(ic.db, "bloodUnits").FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":            unitID,
			"organizationId": org.ID,
			"status":         models.UnitAvailable,
		},
		bson.M{"$set": bson.M{
			"status":    models.UnitExpired,
			"updatedAt": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var unit models.BloodUnit
	if err := res.Decode(&unit); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Unit not found or not available",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to discard unit",
		})
	}

	config.CacheDel(reqCtx, distributionCacheKey(org.ID), "admin:summary")

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Unit discarded",
		Data:    unit,
	})
}

// MarkExpiredUnits transitions available units past their expiry date to
// expired and tells each affected organization how many it lost. Called
// periodically from main.
func MarkExpiredUnits(db *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	units := config.GetCollection(db, "bloodUnits")
	expiredFilter := bson.M{
		"status":     models.UnitAvailable,
		"expiryDate": bson.M{"$lt": time.Now()},
	}

	// Per-organization counts before flipping, for the alert below
	cursor, err := units.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: expiredFilter}},
		{{Key: "$group", Value: bson.M{"_id": "$organizationId", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		log.Printf("Error counting expired blood units: %v", err)
		return
	}
	var perOrg []struct {
		OrgID primitive.ObjectID `bson:"_id"`
		Count int                `bson:"count"`
	}
	if err := cursor.All(ctx, &perOrg); err != nil {
		log.Printf("Error decoding expired unit counts: %v", err)
		return
	}
	if len(perOrg) == 0 {
		return
	}

	res, err := units.UpdateMany(ctx, expiredFilter,
		bson.M{"$set": bson.M{
			"status":    models.UnitExpired,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		log.Printf("Error expiring blood units: %v", err)
		return
	}
	log.Printf("Marked %d blood units as expired", res.ModifiedCount)

	for _, row := range perOrg {
		err := utils.SaveNotification(db, row.OrgID,
			"Blood units expired",
			strconv.Itoa(row.Count)+" units in your inventory passed their expiry date and were removed from stock",
			models.NotificationInventoryAlert,
			map[string]int{"expiredUnits": row.Count})
		if err != nil {
			log.Printf("Failed to notify organization %s about expired units: %v", row.OrgID.Hex(), err)
		}
		config.CacheDel(ctx, distributionCacheKey(row.OrgID))
	}
	config.CacheDel(ctx, "admin:summary")
}
