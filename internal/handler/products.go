package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/catalog"
)

// ProductHandler serves the catalog of the resolved client.
type ProductHandler struct{}

func NewProductHandler() *ProductHandler { return &ProductHandler{} }

// List returns the whole catalog as a JSON array.  There is no server-side
// pagination or filtering.
func (h *ProductHandler) List(c echo.Context) error {
	t, err := currentTenant(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	products, err := catalog.For(t).List(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, products)
}

// Get returns one product.
func (h *ProductHandler) Get(c echo.Context) error {
	t, err := currentTenant(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := catalog.For(t).Get(ctx, c.Param("id"))
	if errors.Is(err, catalog.ErrNotFound) {
		return apperr.ErrProductNotFound
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, p)
}
