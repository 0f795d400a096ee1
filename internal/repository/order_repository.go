package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/iliyamo/jewelry-storefront/internal/model"
)

type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

const orderColumns = "id,user_id,status,subtotal,tax,shipping,discount,total_amount,shipping_address,payment_method," +
	"COALESCE(tracking_number,''),estimated_delivery,COALESCE(notes,''),created_at,updated_at"

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o        model.Order
		status   string
		addr     []byte
		payment  []byte
		estimate sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.UserID, &status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.TotalAmount,
		&addr, &payment, &o.TrackingNumber, &estimate, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	if estimate.Valid {
		t := estimate.Time
		o.EstimatedDelivery = &t
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return model.Order{}, errors.Wrapf(err, "decode shipping address of order %s", o.ID)
	}
	if err := json.Unmarshal(payment, &o.PaymentMethod); err != nil {
		return model.Order{}, errors.Wrapf(err, "decode payment method of order %s", o.ID)
	}
	o.Items = []model.OrderItem{}
	return o, nil
}

// ListForUser returns the user's orders, newest first, with their items.
func (r *OrderRepo) ListForUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	var (
		out   = []model.Order{}
		index = map[string]int{}
		ids   []any
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan order")
		}
		index[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.DB.QueryContext(ctx,
		"SELECT order_id,product_id,name,price,quantity,image_url FROM order_items WHERE order_id IN ("+placeholders(len(ids))+") ORDER BY order_id,position",
		ids...)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer items.Close()
	for items.Next() {
		var (
			orderID string
			it      model.OrderItem
		)
		if err := items.Scan(&orderID, &it.ProductID, &it.Name, &it.Price, &it.Quantity, &it.ImageURL); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		if i, ok := index[orderID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, errors.Wrap(items.Err(), "iterate order items")
}

// GetForUser returns one order owned by userID.  Orders of other users
// are reported as ErrNotFound.
func (r *OrderRepo) GetForUser(ctx context.Context, userID, orderID string) (model.Order, error) {
	return r.getOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=? AND user_id=? LIMIT 1", orderID, userID)
}

// Get returns one order regardless of owner.  Used by admin endpoints.
func (r *OrderRepo) Get(ctx context.Context, orderID string) (model.Order, error) {
	return r.getOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id=? LIMIT 1", orderID)
}

func (r *OrderRepo) getOne(ctx context.Context, query string, args ...any) (model.Order, error) {
	o, err := scanOrder(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	if err != nil {
		return model.Order{}, errors.Wrap(err, "query order")
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT product_id,name,price,quantity,image_url FROM order_items WHERE order_id=? ORDER BY position", o.ID)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "query order items")
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Price, &it.Quantity, &it.ImageURL); err != nil {
			return model.Order{}, errors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return model.Order{}, errors.Wrap(err, "iterate order items")
	}
	return o, nil
}

// Create validates o, computes its totals and writes it with its items in
// one transaction.  The HTTP API does not create orders.
func (r *OrderRepo) Create(ctx context.Context, o model.Order) (model.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.OrderPending
	}
	o.ComputeTotals()
	if err := o.Validate(); err != nil {
		return model.Order{}, err
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "encode shipping address")
	}
	payment, err := json.Marshal(o.PaymentMethod)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "encode payment method")
	}
	now := time.Now().UTC().Truncate(time.Second)
	o.CreatedAt, o.UpdatedAt = now, now

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO orders (id,user_id,status,subtotal,tax,shipping,discount,total_amount,shipping_address,payment_method,tracking_number,estimated_delivery,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		o.ID, o.UserID, string(o.Status), o.Subtotal, o.Tax, o.Shipping, o.Discount, o.TotalAmount, addr, payment,
		nullString(o.TrackingNumber), o.EstimatedDelivery, nullString(o.Notes), o.CreatedAt, o.UpdatedAt); err != nil {
		return model.Order{}, errors.Wrap(err, "insert order")
	}
	for i, it := range o.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id,position,product_id,name,price,quantity,image_url) VALUES (?,?,?,?,?,?,?)",
			o.ID, i, it.ProductID, it.Name, it.Price, it.Quantity, it.ImageURL); err != nil {
			return model.Order{}, errors.Wrap(err, "insert order item")
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Order{}, errors.Wrap(err, "commit order")
	}
	return o, nil
}

// UpdateStatus moves an order to a new status if the lifecycle allows it.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, to model.OrderStatus) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var from string
	err = tx.QueryRowContext(ctx, "SELECT status FROM orders WHERE id=? FOR UPDATE", orderID).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "lock order")
	}
	if !model.CanTransition(model.OrderStatus(from), to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE orders SET status=?, updated_at=? WHERE id=?", string(to), time.Now().UTC(), orderID); err != nil {
		return errors.Wrap(err, "update order status")
	}
	return errors.Wrap(tx.Commit(), "commit order status")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
