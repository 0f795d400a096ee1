// Package catalog serves a client's products either from the built-in
// fixture or from the client's products table, depending on the client's
// CATALOG_SOURCE.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/jewelry-storefront/internal/model"
	"github.com/iliyamo/jewelry-storefront/internal/repository"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// ErrNotFound is returned by Get for unknown or inactive products.
var ErrNotFound = errors.New("product not found")

// Source lists and looks up products.
type Source interface {
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id string) (model.Product, error)
}

//go:embed products.json
var fixture []byte

// Static serves an in-memory product list.
type Static struct {
	items []model.Product
	byID  map[string]int
}

// NewStatic decodes a JSON array of products.
func NewStatic(data []byte) (*Static, error) {
	var items []model.Product
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	loaded := time.Now().UTC().Truncate(time.Second)
	s := &Static{items: make([]model.Product, 0, len(items)), byID: make(map[string]int, len(items))}
	for _, p := range items {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = loaded
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		s.byID[p.ID] = len(s.items)
		s.items = append(s.items, p.WithDerived())
	}
	return s, nil
}

var builtin = mustStatic(fixture)

func mustStatic(data []byte) *Static {
	s, err := NewStatic(data)
	if err != nil {
		panic("catalog: bad built-in fixture: " + err.Error())
	}
	return s
}

// Builtin returns the fixture catalog shared by every static client.
func Builtin() *Static { return builtin }

// List returns a copy of the active products.
func (s *Static) List(context.Context) ([]model.Product, error) {
	out := make([]model.Product, 0, len(s.items))
	for _, p := range s.items {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns one active product.
func (s *Static) Get(_ context.Context, id string) (model.Product, error) {
	i, ok := s.byID[id]
	if !ok || !s.items[i].IsActive {
		return model.Product{}, ErrNotFound
	}
	return s.items[i], nil
}

// Database reads the client's products table.
type Database struct {
	repo *repository.ProductRepo
}

// NewDatabase wraps a client database.
func NewDatabase(db *sql.DB) *Database {
	return &Database{repo: repository.NewProductRepo(db)}
}

func (d *Database) List(ctx context.Context) ([]model.Product, error) {
	return d.repo.ListActive(ctx)
}

func (d *Database) Get(ctx context.Context, id string) (model.Product, error) {
	p, err := d.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Product{}, ErrNotFound
	}
	return p, err
}

// For picks the source configured for t.
func For(t *tenant.Tenant) Source {
	if t.Config.CatalogSource == tenant.CatalogDatabase && t.DB != nil {
		return NewDatabase(t.DB)
	}
	return builtin
}
