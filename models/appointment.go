// models/appointment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment statuses. "completed" is the canonical terminal state for a
// donation that happened; the legacy "collected" value is not written anywhere.
const (
	AppointmentUpcoming  = "upcoming"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Appointment model
type Appointment struct {
	ID                 primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	DonorID            primitive.ObjectID  `json:"donorId" bson:"donorId"`
	OrganizationID     primitive.ObjectID  `json:"organizationId" bson:"organizationId"`
	RequestID          *primitive.ObjectID `json:"requestId,omitempty" bson:"requestId,omitempty"`
	DateTime           time.Time           `json:"dateTime" bson:"dateTime"`
	Status             string              `json:"status" bson:"status"`
	UnitsCollected     int                 `json:"unitsCollected" bson:"unitsCollected"`
	DonationSuccessful bool                `json:"donationSuccessful" bson:"donationSuccessful"`
	Notes              string              `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt          time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// BookAppointmentRequest is the request body for booking an appointment.
type BookAppointmentRequest struct {
	OrganizationID string    `json:"organizationId" validate:"required"`
	DateTime       time.Time `json:"dateTime" validate:"required"`
	RequestID      string    `json:"requestId"`
	Notes          string    `json:"notes"`
}

// CompleteAppointmentRequest is the request body for completing an appointment.
type CompleteAppointmentRequest struct {
	UnitsCollected     int  `json:"unitsCollected"`
	DonationSuccessful bool `json:"donationSuccessful"`
}
