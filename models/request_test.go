package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionRequest(t *testing.T) {
	allowed := []struct{ from, to string }{
		{RequestOpen, RequestAssigned},
		{RequestOpen, RequestFulfilled},
		{RequestOpen, RequestCancelled},
		{RequestAssigned, RequestFulfilled},
		{RequestAssigned, RequestCancelled},
	}
	for _, tt := range allowed {
		assert.True(t, CanTransitionRequest(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	statuses := []string{RequestOpen, RequestAssigned, RequestFulfilled, RequestCancelled}

	for _, to := range statuses {
		assert.False(t, CanTransitionRequest(RequestFulfilled, to), "fulfilled -> %s", to)
		assert.False(t, CanTransitionRequest(RequestCancelled, to), "cancelled -> %s", to)
	}
}

func TestCanTransitionRequestRejectsUnknown(t *testing.T) {
	assert.False(t, CanTransitionRequest("", RequestOpen))
	assert.False(t, CanTransitionRequest(RequestOpen, ""))
	assert.False(t, CanTransitionRequest(RequestOpen, RequestOpen))
	assert.False(t, CanTransitionRequest(RequestAssigned, RequestAssigned))
	assert.False(t, CanTransitionRequest(RequestAssigned, RequestOpen))
}

func TestIsValidUrgency(t *testing.T) {
	for _, u := range []string{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical} {
		assert.True(t, IsValidUrgency(u), u)
	}

	assert.False(t, IsValidUrgency(""))
	assert.False(t, IsValidUrgency("urgent"))
	assert.False(t, IsValidUrgency("CRITICAL"))
}
