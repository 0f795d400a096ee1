// Package handler contains the HTTP handlers of the storefront API.  Every
// handler under /api runs after the client resolver, so the resolved tenant
// (its configuration and database) is read from the echo context.
package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/middleware"
	"github.com/iliyamo/jewelry-storefront/internal/model"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// requestTimeout bounds database and hashing work done for one request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func currentTenant(c echo.Context) (*tenant.Tenant, error) {
	t, ok := middleware.TenantFrom(c)
	if !ok {
		return nil, apperr.ErrMissingClientContext
	}
	return t, nil
}

// tenantWithDB is currentTenant for handlers that need the client database.
func tenantWithDB(c echo.Context) (*tenant.Tenant, error) {
	t, err := currentTenant(c)
	if err != nil {
		return nil, err
	}
	if t.DB == nil {
		return nil, apperr.ErrDatabaseUnavailable
	}
	return t, nil
}

func currentUser(c echo.Context) (*model.User, error) {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}
	return u, nil
}

// bindAndValidate decodes the body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.ErrInvalidBody.Wrap(err)
	}
	return c.Validate(req)
}
