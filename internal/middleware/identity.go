package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/model"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// Echo context keys set by the middlewares in this package.
const (
	ctxTenant = "tenant"
	ctxUser   = "user"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// TenantFrom returns the client attached by ResolveClient.
func TenantFrom(c echo.Context) (*tenant.Tenant, bool) {
	t, ok := c.Get(ctxTenant).(*tenant.Tenant)
	return t, ok && t != nil
}

// UserFrom returns the user attached by JWTAuth.
func UserFrom(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(ctxUser).(*model.User)
	return u, ok && u != nil
}

// SetTenant attaches t to c.  Exposed for handler tests.
func SetTenant(c echo.Context, t *tenant.Tenant) { c.Set(ctxTenant, t) }

// SetUser attaches u to c.  Exposed for handler tests.
func SetUser(c echo.Context, u *model.User) {
	c.Set(ctxUser, u)
	c.Set(ctxUserID, u.ID)
	c.Set(ctxRole, u.Role)
}

// currentUserID returns the authenticated user's id, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// currentClientID returns the resolved client id, or "none".
func currentClientID(c echo.Context) string {
	if t, ok := TenantFrom(c); ok {
		return t.ID
	}
	return "none"
}
