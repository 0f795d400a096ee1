package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/handler"
	"github.com/iliyamo/jewelry-storefront/internal/middleware"
	"github.com/iliyamo/jewelry-storefront/internal/model"
)

// RegisterAdmin registers admin-only endpoints under /admin.  They require
// a valid token and the admin role within the resolved client.
func RegisterAdmin(g *echo.Group, o *handler.OrderHandler) {
	a := g.Group("/admin", middleware.JWTAuth(), middleware.RequireRole(model.RoleAdmin))
	a.PATCH("/orders/:id/status", o.UpdateStatus)
}
