package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/handler"
	"github.com/iliyamo/jewelry-storefront/internal/middleware"
)

// RegisterCustomer registers the signed-in shopper's endpoints: the
// server-side cart and read access to their own orders.
func RegisterCustomer(g *echo.Group, c *handler.CartHandler, o *handler.OrderHandler) {
	carts := g.Group("/cart", middleware.JWTAuth())
	carts.GET("", c.Get)
	carts.DELETE("", c.Clear)
	carts.POST("/items", c.AddItem)
	carts.PUT("/items/:productId", c.UpdateItem)
	carts.DELETE("/items/:productId", c.RemoveItem)
	carts.POST("/toggle", c.Toggle)

	orders := g.Group("/orders", middleware.JWTAuth())
	orders.GET("", o.List)
	orders.GET("/:id", o.Get)
}
