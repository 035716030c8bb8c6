// models/camp.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Camp statuses
const (
	CampPlanned   = "planned"
	CampCompleted = "completed"
	CampCancelled = "cancelled"
)

// Camp is an organization-run donation event with a donor roster.
type Camp struct {
	ID               primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	OrganizationID   primitive.ObjectID   `json:"organizationId" bson:"organizationId"`
	Name             string               `json:"name" bson:"name"`
	Address          string               `json:"address" bson:"address"`
	Location         *GeoPoint            `json:"location,omitempty" bson:"location,omitempty"`
	Date             time.Time            `json:"date" bson:"date"`
	Status           string               `json:"status" bson:"status"`
	RegisteredDonors []primitive.ObjectID `json:"registeredDonors" bson:"registeredDonors"`
	CreatedAt        time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// CreateCampRequest is the request body for creating a camp.
type CreateCampRequest struct {
	Name    string    `json:"name" validate:"required"`
	Address string    `json:"address"`
	Date    time.Time `json:"date" validate:"required"`
	Lat     float64   `json:"lat"`
	Lng     float64   `json:"lng"`
}
