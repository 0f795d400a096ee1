package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/cart"
	"github.com/iliyamo/jewelry-storefront/internal/catalog"
	"github.com/iliyamo/jewelry-storefront/internal/model"
)

// CartHandler exposes the cart state machine over HTTP.  Every endpoint
// loads the caller's cart, applies one transition and saves the result.
type CartHandler struct {
	Store cart.Store
	Now   func() time.Time
}

func NewCartHandler(store cart.Store) *CartHandler {
	return &CartHandler{Store: store, Now: time.Now}
}

type addItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity"`
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

// Get returns the caller's cart.
func (h *CartHandler) Get(c echo.Context) error {
	return h.apply(c, func(context.Context, cart.Cart) (cart.Cart, error) {
		return cart.Cart{}, errNoChange
	})
}

// AddItem adds a catalog product.  The quantity defaults to one; a
// non-positive quantity leaves the cart unchanged.
func (h *CartHandler) AddItem(c echo.Context) error {
	var req addItemReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	return h.apply(c, func(ctx context.Context, cur cart.Cart) (cart.Cart, error) {
		if qty <= 0 {
			return cur, nil
		}
		p, err := h.product(ctx, c, req.ProductID)
		if err != nil {
			return cart.Cart{}, err
		}
		if err := checkStock(p, cur.Quantity(p.ID), qty); err != nil {
			return cart.Cart{}, err
		}
		return cart.Add(cur, p, qty, h.Now().UTC()), nil
	})
}

// UpdateItem sets a line's quantity; zero or less removes the line.
func (h *CartHandler) UpdateItem(c echo.Context) error {
	var req updateItemReq
	if err := c.Bind(&req); err != nil {
		return apperr.ErrInvalidBody.Wrap(err)
	}
	id := c.Param("productId")
	return h.apply(c, func(ctx context.Context, cur cart.Cart) (cart.Cart, error) {
		if req.Quantity > 0 {
			p, err := h.product(ctx, c, id)
			if err != nil {
				return cart.Cart{}, err
			}
			if err := checkStock(p, 0, req.Quantity); err != nil {
				return cart.Cart{}, err
			}
		}
		return cart.UpdateQuantity(cur, id, req.Quantity), nil
	})
}

// RemoveItem drops a line.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	id := c.Param("productId")
	return h.apply(c, func(_ context.Context, cur cart.Cart) (cart.Cart, error) {
		return cart.Remove(cur, id), nil
	})
}

// Clear empties the cart and keeps its open flag.
func (h *CartHandler) Clear(c echo.Context) error {
	return h.apply(c, func(_ context.Context, cur cart.Cart) (cart.Cart, error) {
		return cart.Clear(cur), nil
	})
}

// Toggle flips the cart drawer's open flag.
func (h *CartHandler) Toggle(c echo.Context) error {
	return h.apply(c, func(_ context.Context, cur cart.Cart) (cart.Cart, error) {
		return cart.Toggle(cur), nil
	})
}

// errNoChange tells apply to return the loaded cart without saving.
var errNoChange = errors.New("cart unchanged")

func (h *CartHandler) apply(c echo.Context, fn func(context.Context, cart.Cart) (cart.Cart, error)) error {
	t, err := currentTenant(c)
	if err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	key := cart.Key(t.ID, u.ID)
	cur, err := h.Store.Load(ctx, key)
	if err != nil {
		return apperr.Internal(err)
	}
	next, err := fn(ctx, cur)
	if errors.Is(err, errNoChange) {
		return c.JSON(http.StatusOK, cur)
	}
	if err != nil {
		return err
	}
	// An empty closed cart is what Load returns for a missing key, so it
	// is not stored.
	if next.State() == cart.EmptyClosed {
		err = h.Store.Delete(ctx, key)
	} else {
		err = h.Store.Save(ctx, key, next)
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, next)
}

// product looks id up in the client's catalog so prices come from the
// server, never from the request.
func (h *CartHandler) product(ctx context.Context, c echo.Context, id string) (model.Product, error) {
	t, err := currentTenant(c)
	if err != nil {
		return model.Product{}, err
	}
	p, err := catalog.For(t).Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return model.Product{}, apperr.ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, apperr.Internal(err)
	}
	return p, nil
}

// checkStock reports whether have+add units of p are in stock.  The sum is
// never formed, so a huge add cannot wrap around.
func checkStock(p model.Product, have, add int) error {
	if p.Available() && add <= p.Stock && have <= p.Stock-add {
		return nil
	}
	requested := add
	if have <= math.MaxInt-add {
		requested = have + add
	}
	return apperr.New(http.StatusBadRequest, apperr.CodeInsufficientStock, "Insufficient stock for "+p.Name).
		WithDetails(echo.Map{"productId": p.ID, "available": p.Stock, "requested": requested})
}
