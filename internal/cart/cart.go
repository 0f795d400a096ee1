// Package cart models a shopping cart as a value with pure transition
// functions.  Every transition returns a new Cart whose summary has been
// recomputed from its lines; nothing is accumulated incrementally.
package cart

import (
	"math"
	"time"

	"github.com/iliyamo/jewelry-storefront/internal/model"
)

// Pricing rules.
const (
	TaxRateBasisPoints    = 1000  // 10%
	FreeShippingOverCents = 10000 // subtotal strictly above $100 ships free
	ShippingCents         = 1000
)

// Line is one product in the cart.
type Line struct {
	Product  model.Product `json:"product"`
	Quantity int           `json:"quantity"`
	AddedAt  time.Time     `json:"addedAt"`
}

// Summary holds the derived money totals.
type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Cart is the full cart state.  The zero value is an empty, closed cart.
type Cart struct {
	Items     []Line  `json:"items"`
	Summary   Summary `json:"summary"`
	ItemCount int     `json:"itemCount"`
	IsOpen    bool    `json:"isOpen"`
}

// State names the four states a cart can be in.
type State string

const (
	EmptyClosed     State = "empty_closed"
	EmptyOpen       State = "empty_open"
	PopulatedClosed State = "populated_closed"
	PopulatedOpen   State = "populated_open"
)

// State reports which of the four states c is in.
func (c Cart) State() State {
	switch {
	case len(c.Items) == 0 && !c.IsOpen:
		return EmptyClosed
	case len(c.Items) == 0:
		return EmptyOpen
	case !c.IsOpen:
		return PopulatedClosed
	}
	return PopulatedOpen
}

// Add merges quantity into the line for p, or appends a new line.  A
// non-positive quantity, or a merge that would overflow the line,
// leaves the cart unchanged.
func Add(c Cart, p model.Product, quantity int, now time.Time) Cart {
	if quantity <= 0 || c.Quantity(p.ID) > math.MaxInt-quantity {
		return recompute(c)
	}
	items := make([]Line, 0, len(c.Items)+1)
	merged := false
	for _, l := range c.Items {
		if l.Product.ID == p.ID {
			l.Quantity += quantity
			merged = true
		}
		items = append(items, l)
	}
	if !merged {
		items = append(items, Line{Product: p, Quantity: quantity, AddedAt: now})
	}
	c.Items = items
	return recompute(c)
}

// Remove drops the line for productID.
func Remove(c Cart, productID string) Cart {
	items := make([]Line, 0, len(c.Items))
	for _, l := range c.Items {
		if l.Product.ID != productID {
			items = append(items, l)
		}
	}
	c.Items = items
	return recompute(c)
}

// UpdateQuantity sets the quantity of productID's line.  A quantity of
// zero or less is the same as Remove.
func UpdateQuantity(c Cart, productID string, quantity int) Cart {
	if quantity <= 0 {
		return Remove(c, productID)
	}
	items := make([]Line, len(c.Items))
	copy(items, c.Items)
	for i := range items {
		if items[i].Product.ID == productID {
			items[i].Quantity = quantity
		}
	}
	c.Items = items
	return recompute(c)
}

// Clear empties the cart.  The open flag is kept.
func Clear(c Cart) Cart {
	c.Items = nil
	return recompute(c)
}

// Toggle flips the open flag.
func Toggle(c Cart) Cart {
	c.IsOpen = !c.IsOpen
	return recompute(c)
}

// Open sets the open flag.
func Open(c Cart) Cart {
	c.IsOpen = true
	return recompute(c)
}

// Close clears the open flag.
func Close(c Cart) Cart {
	c.IsOpen = false
	return recompute(c)
}

// Quantity returns how many of productID are in the cart.
func (c Cart) Quantity(productID string) int {
	for _, l := range c.Items {
		if l.Product.ID == productID {
			return l.Quantity
		}
	}
	return 0
}

// Summarize computes the money totals of lines from scratch.
func Summarize(lines []Line) Summary {
	var subtotal int64
	for _, l := range lines {
		subtotal += model.Cents(l.Product.Price) * int64(l.Quantity)
	}
	tax := (subtotal*TaxRateBasisPoints + 5000) / 10000
	var shipping int64
	if subtotal <= FreeShippingOverCents {
		shipping = ShippingCents
	}
	if len(lines) == 0 {
		shipping = 0
	}
	return Summary{
		Subtotal: model.Amount(subtotal),
		Tax:      model.Amount(tax),
		Shipping: model.Amount(shipping),
		Total:    model.Amount(subtotal + tax + shipping),
	}
}

func recompute(c Cart) Cart {
	if c.Items == nil {
		c.Items = []Line{}
	}
	c.Summary = Summarize(c.Items)
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	c.ItemCount = n
	return c
}

// Normalize recomputes derived fields.  Stores call it after decoding.
func Normalize(c Cart) Cart { return recompute(c) }
