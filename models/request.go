// models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request statuses
const (
	RequestOpen      = "open"
	RequestAssigned  = "assigned"
	RequestFulfilled = "fulfilled"
	RequestCancelled = "cancelled"
)

// Urgency levels
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// IsValidUrgency reports whether s is a recognized urgency level.
func IsValidUrgency(s string) bool {
	switch s {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// requestTransitions holds the legal status transitions. Fulfilled and
// cancelled are terminal.
var requestTransitions = map[string][]string{
	RequestOpen:     {RequestAssigned, RequestFulfilled, RequestCancelled},
	RequestAssigned: {RequestFulfilled, RequestCancelled},
}

// CanTransitionRequest reports whether a request may move from one status to
// another. Every mutation of request status goes through a compare-and-swap
// update whose filter encodes the same rule, so this function is the single
// place the lifecycle is written down.
func CanTransitionRequest(from, to string) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Responder identifies the donor or blood bank attached to a request.
type Responder struct {
	UserID   primitive.ObjectID `json:"userId" bson:"userId"`
	Role     string             `json:"role" bson:"role"`
	FullName string             `json:"fullName" bson:"fullName"`
}

// Contact holds the reachable person for a request.
type Contact struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

// Request model
type Request struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	CreatedBy     primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	BloodGroup    string             `json:"bloodGroup" bson:"bloodGroup"`
	Component     string             `json:"component" bson:"component"`
	UnitsNeeded   int                `json:"unitsNeeded" bson:"unitsNeeded"`
	Urgency       string             `json:"urgency" bson:"urgency"`
	Status        string             `json:"status" bson:"status"`
	Location      *GeoPoint          `json:"location,omitempty" bson:"location,omitempty"`
	CaseDetails   string             `json:"caseDetails,omitempty" bson:"caseDetails,omitempty"`
	Contact       Contact            `json:"contact" bson:"contact"`
	Responder     *Responder         `json:"responder,omitempty" bson:"responder,omitempty"`
	UnitsReserved int                `json:"unitsReserved" bson:"unitsReserved"`
	UnitsReceived int                `json:"unitsReceived" bson:"unitsReceived"`
	Notes         string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CancelReason  string             `json:"cancelReason,omitempty" bson:"cancelReason,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CreateRequestBody is the request body for POST /api/org/requests
type CreateRequestBody struct {
	BloodGroup   string  `json:"bloodGroup" validate:"required"`
	Component    string  `json:"component"`
	UnitsNeeded  int     `json:"unitsNeeded" validate:"required"`
	Urgency      string  `json:"urgency"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	CaseDetails  string  `json:"caseDetails"`
	ContactName  string  `json:"contactName" validate:"required"`
	ContactPhone string  `json:"contactPhone" validate:"required"`
}

// FulfillRequestBody is the request body for PUT /api/org/requests/:id/fulfill
type FulfillRequestBody struct {
	UnitsReceived int    `json:"unitsReceived"`
	Notes         string `json:"notes"`
}

// MatchedDonor is one donor row returned by the match lookup.
type MatchedDonor struct {
	UserID           primitive.ObjectID `json:"userId"`
	FullName         string             `json:"fullName"`
	BloodGroup       string             `json:"bloodGroup"`
	Phone            string             `json:"phone,omitempty"`
	City             string             `json:"city,omitempty"`
	DistanceMeters   float64            `json:"distanceMeters"`
	LastDonationDate *time.Time         `json:"lastDonationDate,omitempty"`
}

// MatchedOrganization is one blood-bank row returned by the match lookup.
type MatchedOrganization struct {
	UserID         primitive.ObjectID `json:"userId"`
	FullName       string             `json:"fullName"`
	Phone          string             `json:"phone,omitempty"`
	City           string             `json:"city,omitempty"`
	DistanceMeters float64            `json:"distanceMeters"`
	AvailableUnits int                `json:"availableUnits"`
}

// MatchResult groups both candidate kinds for a request.
type MatchResult struct {
	Donors        []MatchedDonor        `json:"donors"`
	Organizations []MatchedOrganization `json:"organizations"`
}
