package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liforce/liforce_backend/models"
)

func runWithRole(t *testing.T, role string, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != "" {
		c.Set("role", role)
	}

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec
}

func TestRequireRoleAllowsMatch(t *testing.T) {
	rec := runWithRole(t, models.RoleDonor, RequireRole(models.RoleDonor))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleAllowsAnyListed(t *testing.T) {
	rec := runWithRole(t, models.RoleOrganization, RequireRole(models.RoleAdmin, models.RoleOrganization))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	rec := runWithRole(t, models.RoleDonor, RequireRole(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	rec := runWithRole(t, "", RequireRole(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCapabilityPredicates(t *testing.T) {
	bank := models.OrgCapabilities(models.OrgTypeBank)
	hospital := models.OrgCapabilities(models.OrgTypeHospital)

	assert.True(t, CanManageInventory(bank))
	assert.True(t, CanViewIncoming(bank))
	assert.False(t, CanCreateRequests(bank))

	assert.True(t, CanCreateRequests(hospital))
	assert.False(t, CanManageInventory(hospital))

	assert.True(t, AnyOrganization(bank))
	assert.True(t, AnyOrganization(hospital))
	assert.True(t, AnyOrganization(models.Capabilities{}))
}
