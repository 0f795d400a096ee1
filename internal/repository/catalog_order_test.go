package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/jewelry-storefront/internal/model"
)

var productCols = []string{"id", "name", "description", "price", "image_url", "stock", "category", "tags", "is_active", "sku", "created_at", "updated_at"}

var orderCols = []string{"id", "user_id", "status", "subtotal", "tax", "shipping", "discount", "total_amount",
	"shipping_address", "payment_method", "tracking_number", "estimated_delivery", "notes", "created_at", "updated_at"}

func TestProductRepo_ListActiveDerivesAvailability(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .* FROM products WHERE is_active=1").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow("p1", "Ring", "Gold ring", 120.5, "/img/ring.jpg", 3, "rings", []byte(`["gold","ring"]`), true, "RG-1", now, now).
			AddRow("p2", "Chain", "Silver", 40.0, "/img/chain.jpg", 0, "", nil, true, "", now, now))

	items, err := NewProductRepo(db).ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"gold", "ring"}, items[0].Tags)
	assert.True(t, items[0].IsAvailable)
	assert.False(t, items[1].IsAvailable)
}

func TestProductRepo_GetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT .* FROM products WHERE id=\\?").WithArgs("nope").WillReturnRows(sqlmock.NewRows(productCols))

	_, err = NewProductRepo(db).GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepo_ListForUserAttachesItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Now().UTC()
	addr := []byte(`{"street":"Calle 1","city":"Bogotá","state":"DC","zipCode":"110111","country":"Colombia"}`)
	pay := []byte(`{"type":"stripe","details":{"last4":"4242"}}`)
	mock.ExpectQuery("SELECT .* FROM orders WHERE user_id=\\?").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("o-2", "u-1", "shipped", 50.0, 5.0, 10.0, 0.0, 65.0, addr, pay, "TRK", nil, "", now, now).
			AddRow("o-1", "u-1", "pending", 200.0, 20.0, 0.0, 0.0, 220.0, addr, pay, "", nil, "", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items WHERE order_id IN (?,?)")).
		WithArgs("o-2", "o-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_id", "name", "price", "quantity", "image_url"}).
			AddRow("o-1", "p1", "Ring", 100.0, 2, "/r.jpg").
			AddRow("o-2", "p2", "Chain", 50.0, 1, "/c.jpg"))

	orders, err := NewOrderRepo(db).ListForUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, model.OrderShipped, orders[0].Status)
	assert.Equal(t, "Chain", orders[0].Items[0].Name)
	assert.Equal(t, 2, orders[1].Items[0].Quantity)
	assert.Equal(t, "Bogotá", orders[1].ShippingAddress.City)
	assert.Equal(t, "stripe", orders[1].PaymentMethod.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_GetForUserOtherOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT .* FROM orders WHERE id=\\? AND user_id=\\?").
		WithArgs("o-1", "intruder").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err = NewOrderRepo(db).GetForUser(context.Background(), "intruder", "o-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepo_CreateComputesTotalsBeforeInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(sqlmock.AnyArg(), "u-1", "pending", 100.0, 10.0, 10.0, 5.0, 115.0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(sqlmock.AnyArg(), 0, "p1", "Ring", 50.0, 2, "/r.jpg").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err := NewOrderRepo(db).Create(context.Background(), model.Order{
		UserID:        "u-1",
		Items:         []model.OrderItem{{ProductID: "p1", Name: "Ring", Price: 50, Quantity: 2, ImageURL: "/r.jpg"}},
		PaymentMethod: model.PaymentMethod{Type: model.PaymentStripe, Details: map[string]interface{}{}},
		Subtotal:      100, Tax: 10, Shipping: 10, Discount: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 115.0, o.TotalAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_CreateRejectsEmptyOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewOrderRepo(db).Create(context.Background(), model.Order{UserID: "u-1", PaymentMethod: model.PaymentMethod{Type: model.PaymentPayPal}})
	assert.ErrorContains(t, err, "at least one item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM orders WHERE id=? FOR UPDATE")).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status=?")).
		WithArgs("confirmed", sqlmock.AnyArg(), "o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, NewOrderRepo(db).UpdateStatus(context.Background(), "o-1", model.OrderConfirmed))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM orders")).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("shipped"))
	mock.ExpectRollback()
	err = NewOrderRepo(db).UpdateStatus(context.Background(), "o-1", model.OrderCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}
