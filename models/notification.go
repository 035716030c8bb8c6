// models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types
const (
	NotificationRequestCreated   = "request_created"
	NotificationRequestAssigned  = "request_assigned"
	NotificationRequestFulfilled = "request_fulfilled"
	NotificationRequestCancelled = "request_cancelled"
	NotificationAppointment      = "appointment_update"
	NotificationInventoryAlert   = "inventory_alert"
	NotificationVerification     = "verification_update"
	NotificationBroadcast        = "broadcast"
)

// Notification model
type Notification struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Type      string             `json:"type" bson:"type"`
	Data      interface{}        `json:"data,omitempty" bson:"data,omitempty"`
	IsRead    bool               `json:"isRead" bson:"isRead"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// BroadcastRequest is the request body for POST /api/admin/broadcast. Empty
// filter fields match everyone.
type BroadcastRequest struct {
	Role       string `json:"role"`
	City       string `json:"city"`
	BloodGroup string `json:"bloodGroup"`
	Title      string `json:"title" validate:"required"`
	Message    string `json:"message" validate:"required"`
}
