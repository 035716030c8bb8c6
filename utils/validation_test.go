package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput("  hello  "))
	assert.Equal(t, "&lt;script&gt;", SanitizeInput("<script>"))
	assert.Equal(t, "ab", SanitizeInput("a\x00b"))
}

func TestSanitizeEmail(t *testing.T) {
	email, err := SanitizeEmail("  Donor@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "donor@example.com", email)

	for _, bad := range []string{"", "not-an-email", "a@b", "@example.com", "user@.com"} {
		_, err := SanitizeEmail(bad)
		assert.Error(t, err, bad)
	}
}

func TestSanitizePhone(t *testing.T) {
	phone, err := SanitizePhone("+961 71 123 456")
	require.NoError(t, err)
	assert.Equal(t, "+96171123456", phone)

	// Missing plus prefix gets one
	phone, err = SanitizePhone("96171123456")
	require.NoError(t, err)
	assert.Equal(t, "+96171123456", phone)

	// Empty is allowed, phone is optional
	phone, err = SanitizePhone("   ")
	require.NoError(t, err)
	assert.Equal(t, "", phone)

	_, err = SanitizePhone("+123")
	assert.Error(t, err)

	_, err = SanitizePhone("+1234567890123456789")
	assert.Error(t, err)
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(0, 0))
	assert.NoError(t, ValidateCoordinates(90, 180))
	assert.NoError(t, ValidateCoordinates(-90, -180))
	assert.NoError(t, ValidateCoordinates(33.8938, 35.5018))

	assert.Error(t, ValidateCoordinates(90.1, 0))
	assert.Error(t, ValidateCoordinates(-91, 0))
	assert.Error(t, ValidateCoordinates(0, 180.5))
	assert.Error(t, ValidateCoordinates(0, -181))
}
