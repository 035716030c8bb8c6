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
	"github.com/liforce/liforce_backend/websocket"
)

// criticalAlertRadiusMeters is how far around a critical request nearby
// donors are alerted.
const criticalAlertRadiusMeters = 25000

// RequestController handles the blood-request lifecycle
type RequestController struct {
	db  *mongo.Client
	hub *websocket.Hub
}

// NewRequestController creates a new request controller
func NewRequestController(db *mongo.Client, hub *websocket.Hub) *RequestController {
	return &RequestController{db: db, hub: hub}
}

func (rc *RequestController) requests() *mongo.Collection {
	return config.GetCollection(rc.db, "requests")
}

func (rc *RequestController) units() *mongo.Collection {
	return config.GetCollection(rc.db, "bloodUnits")
}

// CreateRequest persists a new open blood request
func (rc *RequestController) CreateRequest(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.CreateRequestBody
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.UnitsNeeded < 1 {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "unitsNeeded must be at least 1",
		})
	}

	if !models.IsValidBloodGroup(req.BloodGroup) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid blood group",
		})
	}

	if req.ContactName == "" || req.ContactPhone == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "contactName and contactPhone are required",
		})
	}

	contactPhone, err := utils.SanitizePhone(req.ContactPhone)
	if err != nil || contactPhone == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid contact phone number",
		})
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	if !models.IsValidUrgency(urgency) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid urgency level",
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

	now := time.Now()
	request := models.Request{
		ID:          primitive.NewObjectID(),
		CreatedBy:   org.ID,
		BloodGroup:  req.BloodGroup,
		Component:   component,
		UnitsNeeded: req.UnitsNeeded,
		Urgency:     urgency,
		Status:      models.RequestOpen,
		CaseDetails: utils.SanitizeInput(req.CaseDetails),
		Contact: models.Contact{
			Name:  utils.SanitizeInput(req.ContactName),
			Phone: contactPhone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Fall back to the organization's own location when none was sent
	if req.Lat != 0 || req.Lng != 0 {
		if err := utils.ValidateCoordinates(req.Lat, req.Lng); err != nil {
			return ctx.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: err.Error(),
			})
		}
		request.Location = models.NewGeoPoint(req.Lat, req.Lng)
	} else if org.Location != nil {
		request.Location = org.Location
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := rc.requests().InsertOne(reqCtx, request); err != nil {
		log.Printf("Error inserting request: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create request",
		})
	}

	if urgency == models.UrgencyCritical {
		go func(r models.Request) {
			sent, err := utils.NotifyNearbyDonors(rc.db, rc.hub, r, criticalAlertRadiusMeters)
			if err != nil {
				log.Printf("Failed to alert donors for request %s: %v", r.ID.Hex(), err)
				return
			}
			log.Printf("Alerted %d donors for critical request %s", sent, r.ID.Hex())
		}(request)
	}

	return ctx.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Request created successfully",
		Data:    request,
	})
}

// GetRequest returns a single request owned by the caller
func (rc *RequestController) GetRequest(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	requestID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var request models.Request
	err = rc.requests().FindOne(reqCtx, bson.M{"_id": requestID, "createdBy": org.ID}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Request not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch request",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request retrieved successfully",
		Data:    request,
	})
}

// ListRequests returns the caller's requests, optionally filtered by status
func (rc *RequestController) ListRequests(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	filter := bson.M{"createdBy": org.ID}
	if status := ctx.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := rc.requests().Find(reqCtx, filter, opts)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch requests",
		})
	}
	defer cursor.Close(reqCtx)

	requests := []models.Request{}
	if err := cursor.All(reqCtx, &requests); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode requests",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Requests retrieved successfully",
		Data:    requests,
	})
}

// ListIncoming returns open requests near a blood bank so it can offer stock
func (rc *RequestController) ListIncoming(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	filter := bson.M{
		"status":    models.RequestOpen,
		"createdBy": bson.M{"$ne": org.ID},
	}
	if group := ctx.QueryParam("bloodGroup"); group != "" {
		filter["bloodGroup"] = group
	}

	if org.Location != nil {
		km := 50.0
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
		filter["location"] = bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": org.Location.Coordinates,
				},
				"$maxDistance": km * 1000,
			},
		}
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := rc.requests().Find(reqCtx, filter)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch incoming requests",
		})
	}
	defer cursor.Close(reqCtx)

	requests := []models.Request{}
	if err := cursor.All(reqCtx, &requests); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode incoming requests",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Incoming requests retrieved successfully",
		Data:    requests,
	})
}

// FindMatches returns candidate donors and blood banks for a request, ranked
// by ascending distance. Matching is exact blood-group equality unless
// compatible=true widens it to the ABO/Rh-compatible donor groups.
func (rc *RequestController) FindMatches(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	requestID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	km := 50.0
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

	reqCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var request models.Request
	err = rc.requests().FindOne(reqCtx, bson.M{"_id": requestID, "createdBy": org.ID}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Request not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch request",
		})
	}

	if request.Location == nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Request has no location to match against",
		})
	}

	groupFilter := bson.M{"$eq": request.BloodGroup}
	if ctx.QueryParam("compatible") == "true" {
		groupFilter = bson.M{"$in": models.CompatibleDonorGroups(request.BloodGroup)}
	}

	donors, err := rc.matchDonors(reqCtx, request, groupFilter, km*1000)
	if err != nil {
		log.Printf("Error matching donors: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to find matching donors",
		})
	}

	orgs, err := rc.matchOrganizations(reqCtx, request, groupFilter, km*1000)
	if err != nil {
		log.Printf("Error matching organizations: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to find matching organizations",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Matches retrieved successfully",
		Data: models.MatchResult{
			Donors:        donors,
			Organizations: orgs,
		},
	})
}

// matchDonors runs a $geoNear over approved, active, eligible donors.
// $geoNear sorts by distance, so the order is the ranking.
func (rc *RequestController) matchDonors(ctx context.Context, request models.Request, groupFilter bson.M, maxMeters float64) ([]models.MatchedDonor, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": request.Location.Coordinates,
			},
			"distanceField": "distanceMeters",
			"maxDistance":   maxMeters,
			"query": bson.M{
				"role":               models.RoleDonor,
				"verificationStatus": models.VerificationApproved,
				"accountStatus":      models.AccountActive,
				"eligible":           true,
				"bloodGroup":         groupFilter,
			},
		}}},
		{{Key: "$project", Value: bson.M{
			"fullName":         1,
			"bloodGroup":       1,
			"phone":            1,
			"city":             1,
			"distanceMeters":   1,
			"lastDonationDate": 1,
		}}},
	}

	cursor, err := config.GetCollection(rc.db, "users").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID               primitive.ObjectID `bson:"_id"`
		FullName         string             `bson:"fullName"`
		BloodGroup       string             `bson:"bloodGroup"`
		Phone            string             `bson:"phone"`
		City             string             `bson:"city"`
		DistanceMeters   float64            `bson:"distanceMeters"`
		LastDonationDate *time.Time         `bson:"lastDonationDate"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	donors := make([]models.MatchedDonor, 0, len(rows))
	for _, row := range rows {
		donors = append(donors, models.MatchedDonor{
			UserID:           row.ID,
			FullName:         row.FullName,
			BloodGroup:       row.BloodGroup,
			Phone:            row.Phone,
			City:             row.City,
			DistanceMeters:   row.DistanceMeters,
			LastDonationDate: row.LastDonationDate,
		})
	}
	return donors, nil
}

// matchOrganizations finds nearby inventory-holding organizations and counts
// their available units for the request's blood group. Organizations without
// matching stock are dropped.
func (rc *RequestController) matchOrganizations(ctx context.Context, request models.Request, groupFilter bson.M, maxMeters float64) ([]models.MatchedOrganization, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": request.Location.Coordinates,
			},
			"distanceField": "distanceMeters",
			"maxDistance":   maxMeters,
			"query": bson.M{
				"role":               models.RoleOrganization,
				"organizationType":   bson.M{"$in": []string{models.OrgTypeBank, models.OrgTypeBoth}},
				"verificationStatus": models.VerificationApproved,
				"accountStatus":      models.AccountActive,
				"_id":                bson.M{"$ne": request.CreatedBy},
			},
		}}},
		{{Key: "$project", Value: bson.M{
			"fullName":       1,
			"phone":          1,
			"city":           1,
			"distanceMeters": 1,
		}}},
	}

	cursor, err := config.GetCollection(rc.db, "users").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID             primitive.ObjectID `bson:"_id"`
		FullName       string             `bson:"fullName"`
		Phone          string             `bson:"phone"`
		City           string             `bson:"city"`
		DistanceMeters float64            `bson:"distanceMeters"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return []models.MatchedOrganization{}, nil
	}

	orgIDs := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		orgIDs = append(orgIDs, row.ID)
	}

	countCursor, err := rc.units().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"organizationId": bson.M{"$in": orgIDs},
			"bloodGroup":     groupFilter,
			"status":         models.UnitAvailable,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$organizationId",
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer countCursor.Close(ctx)

	var counts []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int                `bson:"count"`
	}
	if err := countCursor.All(ctx, &counts); err != nil {
		return nil, err
	}

	countByOrg := make(map[primitive.ObjectID]int, len(counts))
	for _, c := range counts {
		countByOrg[c.ID] = c.Count
	}

	orgs := make([]models.MatchedOrganization, 0, len(rows))
	for _, row := range rows {
		available := countByOrg[row.ID]
		if available == 0 {
			continue
		}
		orgs = append(orgs, models.MatchedOrganization{
			UserID:         row.ID,
			FullName:       row.FullName,
			Phone:          row.Phone,
			City:           row.City,
			DistanceMeters: row.DistanceMeters,
			AvailableUnits: available,
		})
	}
	return orgs, nil
}

// AssignResponder transitions an open request to assigned, attaching a donor
// or blood bank as responder
func (rc *RequestController) AssignResponder(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	requestID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	var body struct {
		ResponderID string `json:"responderId"`
	}
	if err := ctx.Bind(&body); err != nil || body.ResponderID == "" {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "responderId is required",
		})
	}

	responderID, err := primitive.ObjectIDFromHex(body.ResponderID)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid responder ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var responder models.User
	err = config.GetCollection(rc.db, "users").FindOne(reqCtx, bson.M{
		"_id":                responderID,
		"role":               bson.M{"$in": []string{models.RoleDonor, models.RoleOrganization}},
		"verificationStatus": models.VerificationApproved,
		"accountStatus":      models.AccountActive,
	}).Decode(&responder)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Responder not found or not eligible",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch responder",
		})
	}

	// CAS on status so an already fulfilled or cancelled request rejects the
	// assignment with a conflict
	res := rc.requests().FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":       requestID,
			"createdBy": org.ID,
			"status":    models.RequestOpen,
		},
		bson.M{"$set": bson.M{
			"status": models.RequestAssigned,
			"responder": models.Responder{
				UserID:   responder.ID,
				Role:     responder.Role,
				FullName: responder.FullName,
			},
			"updatedAt": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var request models.Request
	if err := res.Decode(&request); err != nil {
		if err == mongo.ErrNoDocuments {
			return rc.transitionConflict(ctx, reqCtx, requestID, org.ID)
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to assign responder",
		})
	}

	if err := utils.Notify(rc.db, rc.hub, responder.ID,
		"You were assigned to a blood request",
		"You have been assigned to a "+request.BloodGroup+" blood request",
		models.NotificationRequestAssigned,
		map[string]string{"requestId": request.ID.Hex()}); err != nil {
		log.Printf("Failed to notify responder: %v", err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Responder assigned successfully",
		Data:    request,
	})
}

// ReserveUnits earmarks available units from the calling blood bank's own
// inventory for a request, one compare-and-swap per unit. A shortfall rolls
// back everything reserved in this call.
func (rc *RequestController) ReserveUnits(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	requestID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var request models.Request
	err = rc.requests().FindOne(reqCtx, bson.M{"_id": requestID}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Request not found",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch request",
		})
	}

	if request.Status != models.RequestOpen && request.Status != models.RequestAssigned {
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Request is already " + request.Status,
		})
	}

	if request.UnitsReserved > 0 {
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Units are already reserved for this request",
		})
	}

	// Reserve unit by unit; each update only succeeds against an available
	// unit, so two staff reserving concurrently can never take the same unit
	// and the reserved count can never exceed the available count.
	reserved := make([]primitive.ObjectID, 0, request.UnitsNeeded)
	for i := 0; i < request.UnitsNeeded; i++ {
		res := rc.units().FindOneAndUpdate(reqCtx,
			bson.M{
				"organizationId": org.ID,
				"bloodGroup":     request.BloodGroup,
				"status":         models.UnitAvailable,
				"expiryDate":     bson.M{"$gt": time.Now()},
			},
			bson.M{"$set": bson.M{
				"status":    models.UnitReserved,
				"requestId": requestID,
				"updatedAt": time.Now(),
			}},
			options.FindOneAndUpdate().
				SetSort(bson.D{{Key: "expiryDate", Value: 1}}). // oldest stock first
				SetReturnDocument(options.After),
		)

		var unit models.BloodUnit
		if err := res.Decode(&unit); err != nil {
			if err == mongo.ErrNoDocuments {
				break
			}
			rc.releaseUnits(reqCtx, reserved)
			return ctx.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to reserve units",
			})
		}
		reserved = append(reserved, unit.ID)
	}

	if len(reserved) < request.UnitsNeeded {
		rc.releaseUnits(reqCtx, reserved)
		return ctx.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Insufficient inventory: only " + strconv.Itoa(len(reserved)) + " of " +
				strconv.Itoa(request.UnitsNeeded) + " " + request.BloodGroup + " units available",
		})
	}

	// Record the reservation on the request; the status guard catches a
	// concurrent fulfill/cancel and the unitsReserved guard a concurrent
	// reserve. On a lost race the units go back.
	res := rc.requests().FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":           requestID,
			"status":        bson.M{"$in": []string{models.RequestOpen, models.RequestAssigned}},
			"unitsReserved": 0,
		},
		bson.M{"$set": bson.M{
			"unitsReserved": len(reserved),
			"updatedAt":     time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.Request
	if err := res.Decode(&updated); err != nil {
		rc.releaseUnits(reqCtx, reserved)
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Request state changed while reserving, units released",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to record reservation",
		})
	}

	config.CacheDel(reqCtx, distributionCacheKey(org.ID), "admin:summary")

	if err := utils.Notify(rc.db, rc.hub, request.CreatedBy,
		"Units reserved for your request",
		org.FullName+" reserved "+strconv.Itoa(len(reserved))+" "+request.BloodGroup+" units",
		models.NotificationRequestAssigned,
		map[string]string{"requestId": requestID.Hex()}); err != nil {
		log.Printf("Failed to notify requester: %v", err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Units reserved successfully",
		Data:    updated,
	})
}

// releaseUnits puts reserved units back to available, clearing the request tag
func (rc *RequestController) releaseUnits(ctx context.Context, unitIDs []primitive.ObjectID) {
	if len(unitIDs) == 0 {
		return
	}
	_, err := rc.units().UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": unitIDs}, "status": models.UnitReserved},
		bson.M{
			"$set":   bson.M{"status": models.UnitAvailable, "updatedAt": time.Now()},
			"$unset": bson.M{"requestId": ""},
		},
	)
	if err != nil {
		log.Printf("Error releasing reserved units: %v", err)
	}
}

// FulfillRequest moves a request to fulfilled and issues its reserved units.
// The status CAS makes the operation idempotent: a second call finds no
// open/assigned document and reports a conflict instead of issuing twice.
func (rc *RequestController) FulfillRequest(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	requestID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	var body models.FulfillRequestBody
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if body.UnitsReceived < 0 {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "unitsReceived cannot be negative",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := rc.requests().FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":       requestID,
			"createdBy": org.ID,
			"status":    bson.M{"$in": []string{models.RequestOpen, models.RequestAssigned}},
		},
		bson.M{"$set": bson.M{
			"status":        models.RequestFulfilled,
			"unitsReceived": body.UnitsReceived,
			"notes":         utils.SanitizeInput(body.Notes),
			"updatedAt":     time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var request models.Request
	if err := res.Decode(&request); err != nil {
		if err == mongo.ErrNoDocuments {
			return rc.transitionConflict(ctx, reqCtx, requestID, org.ID)
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fulfill request",
		})
	}

	// Issue the units tagged with this request. The status filter means a
	// retry after a crash here issues only what is still reserved.
	issued, err := rc.units().UpdateMany(reqCtx,
		bson.M{"requestId": requestID, "status": models.UnitReserved},
		bson.M{"$set": bson.M{"status": models.UnitIssued, "updatedAt": time.Now()}},
	)
	if err != nil {
		log.Printf("Error issuing units for request %s: %v", requestID.Hex(), err)
	} else if issued.ModifiedCount > 0 {
		log.Printf("Issued %d units for request %s", issued.ModifiedCount, requestID.Hex())
	}

	config.CacheDel(reqCtx, "admin:summary")

	if request.Responder != nil {
		if err := utils.Notify(rc.db, rc.hub, request.Responder.UserID,
			"Request fulfilled",
			"The "+request.BloodGroup+" request you responded to has been fulfilled, thank you",
			models.NotificationRequestFulfilled,
			map[string]string{"requestId": request.ID.Hex()}); err != nil {
			log.Printf("Failed to notify responder: %v", err)
		}
	}

	data := map[string]interface{}{
		"request":   request,
		"shortfall": request.UnitsReceived < request.UnitsNeeded,
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request fulfilled successfully",
		Data:    data,
	})
}

// CancelRequest moves an open or assigned request to cancelled and releases
// any reserved units
func (rc *RequestController) CancelRequest(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	requestID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request ID",
		})
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := rc.requests().FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":       requestID,
			"createdBy": org.ID,
			"status":    bson.M{"$in": []string{models.RequestOpen, models.RequestAssigned}},
		},
		bson.M{"$set": bson.M{
			"status":       models.RequestCancelled,
			"cancelReason": utils.SanitizeInput(body.Reason),
			"updatedAt":    time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var request models.Request
	if err := res.Decode(&request); err != nil {
		if err == mongo.ErrNoDocuments {
			return rc.transitionConflict(ctx, reqCtx, requestID, org.ID)
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to cancel request",
		})
	}

	// Return reserved stock to the pool
	released, err := rc.units().UpdateMany(reqCtx,
		bson.M{"requestId": requestID, "status": models.UnitReserved},
		bson.M{
			"$set":   bson.M{"status": models.UnitAvailable, "updatedAt": time.Now()},
			"$unset": bson.M{"requestId": ""},
		},
	)
	if err != nil {
		log.Printf("Error releasing units for cancelled request %s: %v", requestID.Hex(), err)
	} else if released.ModifiedCount > 0 {
		log.Printf("Released %d units for cancelled request %s", released.ModifiedCount, requestID.Hex())
	}

	if request.Responder != nil {
		if err := utils.Notify(rc.db, rc.hub, request.Responder.UserID,
			"Request cancelled",
			"The "+request.BloodGroup+" request you responded to was cancelled",
			models.NotificationRequestCancelled,
			map[string]string{"requestId": request.ID.Hex(), "reason": request.CancelReason}); err != nil {
			log.Printf("Failed to notify responder: %v", err)
		}
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request cancelled successfully",
		Data:    request,
	})
}

// transitionConflict distinguishes a missing request from an illegal status
// transition after a CAS update matched nothing
func (rc *RequestController) transitionConflict(ctx echo.Context, reqCtx context.Context, requestID, orgID primitive.ObjectID) error {
	var request models.Request
	err := rc.requests().FindOne(reqCtx, bson.M{"_id": requestID, "createdBy": orgID}).Decode(&request)
	if err != nil {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Request not found",
		})
	}
	return ctx.JSON(http.StatusConflict, models.Response{
		Status:  http.StatusConflict,
		Message: "Request is already " + request.Status,
	})
}

// NearbyRequests returns open requests near a donor's position. Matching is
// exact on the donor's blood group unless compatible=true includes every
// group the donor can serve.
func (rc *RequestController) NearbyRequests(ctx echo.Context) error {
	donor, err := utils.CurrentUser(ctx, rc.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

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

	groupFilter := bson.M{"$eq": donor.BloodGroup}
	if ctx.QueryParam("compatible") == "true" {
		// Requests whose recipients this donor's group can serve
		servable := make([]string, 0, len(models.BloodGroups))
		for _, g := range models.BloodGroups {
			if models.CanDonateTo(donor.BloodGroup, g) {
				servable = append(servable, g)
			}
		}
		groupFilter = bson.M{"$in": servable}
	}

	filter := bson.M{
		"status":     models.RequestOpen,
		"bloodGroup": groupFilter,
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

	cursor, err := rc.requests().Find(reqCtx, filter)
	if err != nil {
		log.Printf("Error fetching nearby requests: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch nearby requests",
		})
	}
	defer cursor.Close(reqCtx)

	requests := []models.Request{}
	if err := cursor.All(reqCtx, &requests); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode nearby requests",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Nearby requests retrieved successfully",
		Data:    requests,
	})
}
