package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrgCapabilities(t *testing.T) {
	hospital := OrgCapabilities(OrgTypeHospital)
	assert.True(t, hospital.CanCreateRequests)
	assert.False(t, hospital.CanManageInventory)
	assert.False(t, hospital.CanViewIncoming)

	bank := OrgCapabilities(OrgTypeBank)
	assert.False(t, bank.CanCreateRequests)
	assert.True(t, bank.CanManageInventory)
	assert.True(t, bank.CanViewIncoming)

	both := OrgCapabilities(OrgTypeBoth)
	assert.True(t, both.CanCreateRequests)
	assert.True(t, both.CanManageInventory)
	assert.True(t, both.CanViewIncoming)
}

func TestOrgCapabilitiesUnknownType(t *testing.T) {
	caps := OrgCapabilities("clinic")
	assert.False(t, caps.CanCreateRequests)
	assert.False(t, caps.CanManageInventory)
	assert.False(t, caps.CanViewIncoming)

	assert.Equal(t, Capabilities{}, OrgCapabilities(""))
}

func TestGeoPointRoundTrip(t *testing.T) {
	p := NewGeoPoint(33.8938, 35.5018)

	assert.Equal(t, "Point", p.Type)
	// GeoJSON stores coordinates as [lng, lat]
	assert.Equal(t, []float64{35.5018, 33.8938}, p.Coordinates)
	assert.Equal(t, 33.8938, p.Lat())
	assert.Equal(t, 35.5018, p.Lng())
}

func TestGeoPointNilSafe(t *testing.T) {
	var p *GeoPoint
	assert.Equal(t, 0.0, p.Lat())
	assert.Equal(t, 0.0, p.Lng())

	empty := &GeoPoint{Type: "Point"}
	assert.Equal(t, 0.0, empty.Lat())
	assert.Equal(t, 0.0, empty.Lng())
}
