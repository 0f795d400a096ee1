package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/iliyamo/jewelry-storefront/internal/model"
)

type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id,name,description,price,image_url,stock,COALESCE(category,''),tags,is_active,COALESCE(sku,''),created_at,updated_at"

func scanProduct(row interface{ Scan(...any) error }) (model.Product, error) {
	var (
		p    model.Product
		tags []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Stock,
		&p.Category, &tags, &p.IsActive, &p.SKU, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Product{}, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return model.Product{}, errors.Wrapf(err, "decode tags of product %s", p.ID)
		}
	}
	return p.WithDerived(), nil
}

// ListActive returns every active product, newest first.
func (r *ProductRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active=1 ORDER BY created_at DESC, id")
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	defer rows.Close()

	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate products")
}

// GetByID returns one active product.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? AND is_active=1 LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrNotFound
	}
	if err != nil {
		return model.Product{}, errors.Wrap(err, "query product")
	}
	return p, nil
}
