package model

import "time"

// Product mirrors the 'products' table.  The static catalog decodes into
// the same type.
type Product struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	IsActive    bool      `json:"isActive"`
	SKU         string    `json:"sku,omitempty"`
	IsAvailable bool      `json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Available reports whether the product can be sold right now.
func (p Product) Available() bool { return p.IsActive && p.Stock > 0 }

// WithDerived returns p with IsAvailable filled in.  Every read path calls
// it before a product leaves the repository or catalog.
func (p Product) WithDerived() Product {
	p.IsAvailable = p.Available()
	return p
}
