// models/blood.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Blood groups
const (
	BloodAPos  = "A+"
	BloodANeg  = "A-"
	BloodBPos  = "B+"
	BloodBNeg  = "B-"
	BloodABPos = "AB+"
	BloodABNeg = "AB-"
	BloodOPos  = "O+"
	BloodONeg  = "O-"
)

// BloodGroups lists every recognized group.
var BloodGroups = []string{
	BloodAPos, BloodANeg,
	BloodBPos, BloodBNeg,
	BloodABPos, BloodABNeg,
	BloodOPos, BloodONeg,
}

// IsValidBloodGroup reports whether s is a recognized blood group.
func IsValidBloodGroup(s string) bool {
	for _, g := range BloodGroups {
		if g == s {
			return true
		}
	}
	return false
}

// compatibleDonors maps a recipient group to the donor groups whose blood it
// can receive, per the standard ABO/Rh table.
var compatibleDonors = map[string][]string{
	BloodONeg:  {BloodONeg},
	BloodOPos:  {BloodONeg, BloodOPos},
	BloodANeg:  {BloodONeg, BloodANeg},
	BloodAPos:  {BloodONeg, BloodOPos, BloodANeg, BloodAPos},
	BloodBNeg:  {BloodONeg, BloodBNeg},
	BloodBPos:  {BloodONeg, BloodOPos, BloodBNeg, BloodBPos},
	BloodABNeg: {BloodONeg, BloodANeg, BloodBNeg, BloodABNeg},
	BloodABPos: BloodGroups,
}

// CompatibleDonorGroups returns the donor blood groups a recipient of the
// given group can receive from. Unknown groups return nil.
func CompatibleDonorGroups(recipient string) []string {
	donors, ok := compatibleDonors[recipient]
	if !ok {
		return nil
	}
	out := make([]string, len(donors))
	copy(out, donors)
	return out
}

// CanDonateTo reports whether blood of the donor group can be transfused to a
// recipient of the recipient group.
func CanDonateTo(donor, recipient string) bool {
	for _, g := range compatibleDonors[recipient] {
		if g == donor {
			return true
		}
	}
	return false
}

// Blood components
const (
	ComponentWholeBlood = "whole_blood"
	ComponentRBC        = "rbc"
	ComponentPlasma     = "plasma"
	ComponentPlatelets  = "platelets"
)

// IsValidComponent reports whether s is a recognized blood component.
func IsValidComponent(s string) bool {
	switch s {
	case ComponentWholeBlood, ComponentRBC, ComponentPlasma, ComponentPlatelets:
		return true
	}
	return false
}

// Blood unit statuses
const (
	UnitAvailable = "available"
	UnitReserved  = "reserved"
	UnitIssued    = "issued"
	UnitExpired   = "expired"
)

// BloodUnit model. RequestID is set while the unit is reserved or issued for
// a request, and cleared when the reservation is released.
type BloodUnit struct {
	ID             primitive.ObjectID  `json:"id,omitempty" bson:"_id,omitempty"`
	OrganizationID primitive.ObjectID  `json:"organizationId" bson:"organizationId"`
	BloodGroup     string              `json:"bloodGroup" bson:"bloodGroup"`
	Component      string              `json:"component" bson:"component"`
	CollectionDate time.Time           `json:"collectionDate" bson:"collectionDate"`
	ExpiryDate     time.Time           `json:"expiryDate" bson:"expiryDate"`
	Status         string              `json:"status" bson:"status"`
	Barcode        string              `json:"barcode" bson:"barcode"`
	RequestID      *primitive.ObjectID `json:"requestId,omitempty" bson:"requestId,omitempty"`
	CreatedAt      time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// AddUnitRequest is the request body for inventory intake.
type AddUnitRequest struct {
	BloodGroup     string    `json:"bloodGroup" validate:"required"`
	Component      string    `json:"component"`
	CollectionDate time.Time `json:"collectionDate" validate:"required"`
	ExpiryDate     time.Time `json:"expiryDate" validate:"required"`
	Barcode        string    `json:"barcode"`
}

// StockCount is one row of the blood-stock distribution chart.
type StockCount struct {
	BloodGroup string `json:"bloodGroup" bson:"_id"`
	Count      int    `json:"count" bson:"count"`
}
