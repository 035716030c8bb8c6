// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleDonor        = "donor"
	RoleOrganization = "organization"
	RoleAdmin        = "admin"
)

// Organization types
const (
	OrgTypeHospital = "hospital"
	OrgTypeBank     = "bank"
	OrgTypeBoth     = "both"
)

// Verification statuses
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Account statuses
const (
	AccountActive  = "active"
	AccountBlocked = "blocked"
)

// User model covers all three roles; donor-only and organization-only fields
// are omitempty and stay unset for the other roles.
type User struct {
	ID       primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email    string             `json:"email" bson:"email"`
	Password string             `json:"-" bson:"password"`
	FullName string             `json:"fullName" bson:"fullName"`
	Phone    string             `json:"phone,omitempty" bson:"phone,omitempty"`
	City     string             `json:"city,omitempty" bson:"city,omitempty"`
	Role     string             `json:"role" bson:"role"`
	Location *GeoPoint          `json:"location,omitempty" bson:"location,omitempty"`

	// Donor fields
	BloodGroup       string     `json:"bloodGroup,omitempty" bson:"bloodGroup,omitempty"`
	Eligible         bool       `json:"eligible" bson:"eligible"`
	LastDonationDate *time.Time `json:"lastDonationDate,omitempty" bson:"lastDonationDate,omitempty"`
	TotalDonations   int        `json:"totalDonations" bson:"totalDonations"`
	LivesSaved       int        `json:"livesSaved" bson:"livesSaved"`

	// Organization fields
	OrganizationType string `json:"organizationType,omitempty" bson:"organizationType,omitempty"`
	Address          string `json:"address,omitempty" bson:"address,omitempty"`

	VerificationStatus string    `json:"verificationStatus" bson:"verificationStatus"`
	AccountStatus      string    `json:"accountStatus" bson:"accountStatus"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt" bson:"updatedAt"`
}

// GeoPoint is a GeoJSON point, coordinates ordered [lng, lat] as MongoDB expects.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from latitude and longitude.
func NewGeoPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
	}
}

// Lng returns the longitude of the point.
func (p *GeoPoint) Lng() float64 {
	if p == nil || len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the latitude of the point.
func (p *GeoPoint) Lat() float64 {
	if p == nil || len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Capabilities is the permission set derived once from organizationType,
// passed explicitly instead of re-checking the type in every handler.
type Capabilities struct {
	CanCreateRequests  bool `json:"canCreateRequests"`
	CanManageInventory bool `json:"canManageInventory"`
	CanViewIncoming    bool `json:"canViewIncoming"`
}

// OrgCapabilities maps an organization type to its capability set.
// Hospitals create requests, banks hold inventory and serve incoming
// requests, combined entities do both.
func OrgCapabilities(orgType string) Capabilities {
	switch orgType {
	case OrgTypeHospital:
		return Capabilities{CanCreateRequests: true}
	case OrgTypeBank:
		return Capabilities{CanManageInventory: true, CanViewIncoming: true}
	case OrgTypeBoth:
		return Capabilities{CanCreateRequests: true, CanManageInventory: true, CanViewIncoming: true}
	}
	return Capabilities{}
}

// SignupRequest is the request body for POST /api/auth/signup
type SignupRequest struct {
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8"`
	FullName         string  `json:"fullName" validate:"required"`
	Phone            string  `json:"phone"`
	City             string  `json:"city"`
	Role             string  `json:"role" validate:"required"`
	BloodGroup       string  `json:"bloodGroup"`
	OrganizationType string  `json:"organizationType"`
	Address          string  `json:"address"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

// LoginRequest is the request body for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginData carries tokens plus the signed-in user back to the client.
type LoginData struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Response is the standard API response envelope
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
