package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/model"
	"github.com/iliyamo/jewelry-storefront/internal/repository"
)

// OrderHandler serves read access to orders plus the admin status change.
// Orders are never created over HTTP.
type OrderHandler struct{}

func NewOrderHandler() *OrderHandler { return &OrderHandler{} }

const (
	defaultOrderPage = 10
	maxOrderPage     = 100
)

type orderPage struct {
	Orders     []model.Order `json:"orders"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

// List returns the caller's orders, newest first.  ?page and ?limit
// select a window.
func (h *OrderHandler) List(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", defaultOrderPage)
	if limit > maxOrderPage {
		limit = maxOrderPage
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	orders, err := repository.NewOrderRepo(t.DB).ListForUser(ctx, u.ID)
	if err != nil {
		return apperr.Internal(err)
	}

	total := len(orders)
	// Compare before multiplying so a huge page cannot overflow.
	from := total
	if page-1 <= total/limit {
		from = min((page-1)*limit, total)
	}
	to := from + limit
	if to > total {
		to = total
	}
	return c.JSON(http.StatusOK, orderPage{
		Orders:     orders[from:to],
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	})
}

// Get returns one of the caller's orders.  Another user's order is
// reported as not found.
func (h *OrderHandler) Get(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	o, err := repository.NewOrderRepo(t.DB).GetForUser(ctx, u.ID, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrOrderNotFound
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, o)
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus moves an order along its lifecycle.  Admin only.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	var req statusReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	to := model.OrderStatus(req.Status)
	if !to.Valid() {
		return apperr.Validation("Invalid input data", []string{"status is invalid"})
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	orders := repository.NewOrderRepo(t.DB)
	id := c.Param("id")

	err = orders.UpdateStatus(ctx, id, to)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.ErrOrderNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return apperr.ErrInvalidTransition.Wrap(err)
	case err != nil:
		return apperr.Internal(err)
	}
	o, err := orders.Get(ctx, id)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, o)
}

// queryInt reads a positive integer query parameter.
func queryInt(c echo.Context, name string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}
