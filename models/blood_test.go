package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidBloodGroup(t *testing.T) {
	for _, g := range BloodGroups {
		assert.True(t, IsValidBloodGroup(g), g)
	}

	assert.False(t, IsValidBloodGroup(""))
	assert.False(t, IsValidBloodGroup("C+"))
	assert.False(t, IsValidBloodGroup("a+"))
	assert.False(t, IsValidBloodGroup("AB"))
}

func TestCompatibleDonorGroups(t *testing.T) {
	tests := []struct {
		recipient string
		donors    []string
	}{
		{BloodONeg, []string{BloodONeg}},
		{BloodOPos, []string{BloodONeg, BloodOPos}},
		{BloodANeg, []string{BloodONeg, BloodANeg}},
		{BloodAPos, []string{BloodONeg, BloodOPos, BloodANeg, BloodAPos}},
		{BloodBNeg, []string{BloodONeg, BloodBNeg}},
		{BloodBPos, []string{BloodONeg, BloodOPos, BloodBNeg, BloodBPos}},
		{BloodABNeg, []string{BloodONeg, BloodANeg, BloodBNeg, BloodABNeg}},
		{BloodABPos, BloodGroups},
	}

	for _, tt := range tests {
		t.Run(tt.recipient, func(t *testing.T) {
			assert.ElementsMatch(t, tt.donors, CompatibleDonorGroups(tt.recipient))
		})
	}

	assert.Nil(t, CompatibleDonorGroups("C+"))
	assert.Nil(t, CompatibleDonorGroups(""))
}

func TestCanDonateTo(t *testing.T) {
	// O- donates to everyone
	for _, recipient := range BloodGroups {
		assert.True(t, CanDonateTo(BloodONeg, recipient), recipient)
	}

	// AB+ receives from everyone but donates only to AB+
	for _, donor := range BloodGroups {
		assert.True(t, CanDonateTo(donor, BloodABPos), donor)
	}
	for _, recipient := range BloodGroups {
		if recipient == BloodABPos {
			continue
		}
		assert.False(t, CanDonateTo(BloodABPos, recipient), recipient)
	}

	// Rh-negative recipients never accept Rh-positive blood
	assert.False(t, CanDonateTo(BloodOPos, BloodONeg))
	assert.False(t, CanDonateTo(BloodAPos, BloodANeg))
	assert.False(t, CanDonateTo(BloodBPos, BloodABNeg))

	// Every group can receive its own
	for _, g := range BloodGroups {
		assert.True(t, CanDonateTo(g, g), g)
	}
}

func TestCompatibleDonorGroupsReturnsCopy(t *testing.T) {
	donors := CompatibleDonorGroups(BloodOPos)
	donors[0] = "mutated"

	assert.Equal(t, []string{BloodONeg, BloodOPos}, CompatibleDonorGroups(BloodOPos))
}

func TestIsValidComponent(t *testing.T) {
	assert.True(t, IsValidComponent(ComponentWholeBlood))
	assert.True(t, IsValidComponent(ComponentRBC))
	assert.True(t, IsValidComponent(ComponentPlasma))
	assert.True(t, IsValidComponent(ComponentPlatelets))

	assert.False(t, IsValidComponent(""))
	assert.False(t, IsValidComponent("serum"))
}
