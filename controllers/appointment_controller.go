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

// AppointmentController handles donation appointment booking and completion
type AppointmentController struct {
	db       *mongo.Client
	hub      *websocket.Hub
	userRepo *repositories.UserRepository
}

// NewAppointmentController creates a new appointment controller
func NewAppointmentController(db *mongo.Client, hub *websocket.Hub, userRepo *repositories.UserRepository) *AppointmentController {
	return &AppointmentController{db: db, hub: hub, userRepo: userRepo}
}

func (ac *AppointmentController) appointments() *mongo.Collection {
	return config.GetCollection(ac.db, "appointments")
}

// Book creates an upcoming appointment between the calling donor and an
// organization, optionally tied to a request
func (ac *AppointmentController) Book(ctx echo.Context) error {
	donor, err := utils.CurrentUser(ctx, ac.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.BookAppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.DateTime.IsZero() || !req.DateTime.After(time.Now()) {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "dateTime must be in the future",
		})
	}

	orgID, err := primitive.ObjectIDFromHex(req.OrganizationID)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid organization ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	org, err := ac.userRepo.FindByID(reqCtx, orgID)
	if err != nil || org.Role != models.RoleOrganization {
		return ctx.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Organization not found",
		})
	}

	now := time.Now()
	appointment := models.Appointment{
		ID:             primitive.NewObjectID(),
		DonorID:        donor.ID,
		OrganizationID: org.ID,
		DateTime:       req.DateTime,
		Status:         models.AppointmentUpcoming,
		Notes:          utils.SanitizeInput(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.RequestID != "" {
		requestID, err := primitive.ObjectIDFromHex(req.RequestID)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid request ID",
			})
		}
		count, err := config.GetCollection(ac.db, "requests").CountDocuments(reqCtx, bson.M{"_id": requestID})
		if err != nil || count == 0 {
			return ctx.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Linked request not found",
			})
		}
		appointment.RequestID = &requestID
	}

	if _, err := ac.appointments().InsertOne(reqCtx, appointment); err != nil {
		log.Printf("Error inserting appointment: %v", err)
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to book appointment",
		})
	}

	if err := utils.Notify(ac.db, ac.hub, org.ID,
		"New appointment booked",
		donor.FullName+" booked a donation appointment for "+req.DateTime.Format("Jan 2, 2006 15:04"),
		models.NotificationAppointment,
		map[string]string{"appointmentId": appointment.ID.Hex()}); err != nil {
		log.Printf("Failed to notify organization: %v", err)
	}

	// Confirmation email is a courtesy; failure never blocks the booking
	go utils.SendEmail(donor.Email,
		"Your donation appointment is booked",
		"Your appointment with "+org.FullName+" is confirmed for "+req.DateTime.Format("Jan 2, 2006 15:04")+".")

	return ctx.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Appointment booked successfully",
		Data:    appointment,
	})
}

// Complete transitions an upcoming appointment to completed and records the
// donation against the donor's statistics
func (ac *AppointmentController) Complete(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	appointmentID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid appointment ID",
		})
	}

	var req models.CompleteAppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if req.UnitsCollected < 0 {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "unitsCollected cannot be negative",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// CAS on status: completing twice or completing a cancelled appointment
	// is a conflict, so donor statistics are bumped exactly once
	res := ac.appointments().FindOneAndUpdate(reqCtx,
		bson.M{
			"_id":            appointmentID,
			"organizationId": org.ID,
			"status":         models.AppointmentUpcoming,
		},
		bson.M{"$set": bson.M{
			"status":             models.AppointmentCompleted,
			"unitsCollected":     req.UnitsCollected,
			"donationSuccessful": req.DonationSuccessful,
			"updatedAt":          time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var appointment models.Appointment
	if err := res.Decode(&appointment); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Appointment not found or not upcoming",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to complete appointment",
		})
	}

	if req.DonationSuccessful {
		if err := ac.userRepo.RecordDonation(reqCtx, appointment.DonorID, appointment.DateTime); err != nil {
			log.Printf("Failed to record donation for donor %s: %v", appointment.DonorID.Hex(), err)
		}
	}

	if err := utils.Notify(ac.db, ac.hub, appointment.DonorID,
		"Thank you for donating",
		"Your appointment with "+org.FullName+" was completed",
		models.NotificationAppointment,
		map[string]string{"appointmentId": appointment.ID.Hex()}); err != nil {
		log.Printf("Failed to notify donor: %v", err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Appointment completed successfully",
		Data:    appointment,
	})
}

// Cancel transitions an upcoming appointment to cancelled. Either the donor
// or the organization side may cancel.
func (ac *AppointmentController) Cancel(ctx echo.Context) error {
	user, err := utils.CurrentUser(ctx, ac.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	appointmentID, err := primitive.ObjectIDFromHex(ctx.Param("id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid appointment ID",
		})
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":    appointmentID,
		"status": models.AppointmentUpcoming,
		"$or": []bson.M{
			{"donorId": user.ID},
			{"organizationId": user.ID},
		},
	}

	res := ac.appointments().FindOneAndUpdate(reqCtx,
		filter,
		bson.M{"$set": bson.M{
			"status":    models.AppointmentCancelled,
			"updatedAt": time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var appointment models.Appointment
	if err := res.Decode(&appointment); err != nil {
		if err == mongo.ErrNoDocuments {
			return ctx.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Appointment not found or not upcoming",
			})
		}
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to cancel appointment",
		})
	}

	// Tell the other party
	counterparty := appointment.OrganizationID
	if user.ID == appointment.OrganizationID {
		counterparty = appointment.DonorID
	}
	if err := utils.Notify(ac.db, ac.hub, counterparty,
		"Appointment cancelled",
		"The donation appointment on "+appointment.DateTime.Format("Jan 2, 2006 15:04")+" was cancelled",
		models.NotificationAppointment,
		map[string]string{"appointmentId": appointment.ID.Hex()}); err != nil {
		log.Printf("Failed to notify counterparty: %v", err)
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Appointment cancelled successfully",
		Data:    appointment,
	})
}

// ListForDonor returns the calling donor's appointments
func (ac *AppointmentController) ListForDonor(ctx echo.Context) error {
	donor, err := utils.CurrentUser(ctx, ac.db)
	if err != nil {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	return ac.list(ctx, bson.M{"donorId": donor.ID})
}

// ListForOrganization returns the calling organization's appointments
func (ac *AppointmentController) ListForOrganization(ctx echo.Context) error {
	org, ok := orgFromContext(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	return ac.list(ctx, bson.M{"organizationId": org.ID})
}

func (ac *AppointmentController) list(ctx echo.Context, filter bson.M) error {
	if status := ctx.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "dateTime", Value: -1}})
	cursor, err := ac.appointments().Find(reqCtx, filter, opts)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to fetch appointments",
		})
	}
	defer cursor.Close(reqCtx)

	appointments := []models.Appointment{}
	if err := cursor.All(reqCtx, &appointments); err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode appointments",
		})
	}

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Appointments retrieved successfully",
		Data:    appointments,
	})
}
