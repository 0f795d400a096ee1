package handler

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/model"
)

var orderCols = []string{"id", "user_id", "status", "subtotal", "tax", "shipping", "discount", "total_amount",
	"shipping_address", "payment_method", "tracking_number", "estimated_delivery", "notes", "created_at", "updated_at"}

var itemCols = []string{"product_id", "name", "price", "quantity", "image_url"}

var (
	orderAddr = []byte(`{"street":"Calle 1","city":"Bogotá","state":"DC","zipCode":"110111","country":"Colombia"}`)
	orderPay  = []byte(`{"type":"stripe"}`)
)

func orderFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	h := NewOrderHandler()
	f.api.GET("/orders", h.List)
	f.api.GET("/orders/:id", h.Get)
	f.api.PATCH("/admin/orders/:id/status", h.UpdateStatus)
	f.login(model.User{ID: "u-1", Email: "ana@x.com", Role: model.RoleUser})
	return f
}

func orderRows(ids ...string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows(orderCols)
	for _, id := range ids {
		rows.AddRow(id, "u-1", "pending", 24.99, 2.5, 10.0, 0.0, 37.49, orderAddr, orderPay, "", nil, "", now, now)
	}
	return rows
}

func TestOrders_ListPaginates(t *testing.T) {
	f := orderFixture(t)
	f.mock.ExpectQuery("SELECT .* FROM orders WHERE user_id=\\?").WithArgs("u-1").WillReturnRows(orderRows("o-3", "o-2", "o-1"))
	f.mock.ExpectQuery("SELECT .* FROM order_items WHERE order_id IN").
		WillReturnRows(sqlmock.NewRows(append([]string{"order_id"}, itemCols...)).
			AddRow("o-2", "1", "Anillo", 24.99, 1, "/img/1.jpg"))

	rec := f.do(http.MethodGet, "/api/orders?page=2&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["page"])
	assert.EqualValues(t, 2, body["totalPages"])
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].(map[string]any)["_id"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrders_ListHugePageIsEmpty(t *testing.T) {
	f := orderFixture(t)
	f.mock.ExpectQuery("SELECT .* FROM orders WHERE user_id=\\?").WithArgs("u-1").WillReturnRows(orderRows("o-2", "o-1"))
	f.mock.ExpectQuery("SELECT .* FROM order_items WHERE order_id IN").
		WillReturnRows(sqlmock.NewRows(append([]string{"order_id"}, itemCols...)))

	rec := f.do(http.MethodGet, "/api/orders?page=4611686018427387905&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Empty(t, body["orders"])
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["totalPages"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrders_ListEmpty(t *testing.T) {
	f := orderFixture(t)
	f.mock.ExpectQuery("SELECT .* FROM orders WHERE user_id=\\?").WithArgs("u-1").WillReturnRows(orderRows())

	rec := f.do(http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Empty(t, body["orders"])
	assert.EqualValues(t, 0, body["totalPages"])
}

func TestOrders_GetOwnOnly(t *testing.T) {
	f := orderFixture(t)
	f.mock.ExpectQuery("SELECT .* FROM orders WHERE id=\\? AND user_id=\\?").WithArgs("o-1", "u-1").WillReturnRows(orderRows("o-1"))
	f.mock.ExpectQuery("SELECT .* FROM order_items WHERE order_id=\\?").WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows(itemCols).AddRow("1", "Anillo", 24.99, 1, "/img/1.jpg"))

	rec := f.do(http.MethodGet, "/api/orders/o-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "pending", body["status"])
	assert.Len(t, body["items"], 1)

	f.mock.ExpectQuery("SELECT .* FROM orders WHERE id=\\? AND user_id=\\?").WithArgs("o-9", "u-1").WillReturnRows(sqlmock.NewRows(orderCols))
	rec = f.do(http.MethodGet, "/api/orders/o-9", "")
	assertError(t, rec, http.StatusNotFound, apperr.CodeOrderNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOrders_UpdateStatus(t *testing.T) {
	f := orderFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM orders WHERE id=? FOR UPDATE")).WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	f.mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status=?")).WithArgs("confirmed", sqlmock.AnyArg(), "o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	now := time.Now().UTC()
	f.mock.ExpectQuery("SELECT .* FROM orders WHERE id=\\? LIMIT 1").WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "u-1", "confirmed", 24.99, 2.5, 10.0, 0.0, 37.49, orderAddr, orderPay, "", nil, "", now, now))
	f.mock.ExpectQuery("SELECT .* FROM order_items WHERE order_id=\\?").WithArgs("o-1").WillReturnRows(sqlmock.NewRows(itemCols))

	rec := f.do(http.MethodPatch, "/api/admin/orders/o-1/status", `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode(t, rec)["status"])

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM orders WHERE id=? FOR UPDATE")).WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("delivered"))
	f.mock.ExpectRollback()
	rec = f.do(http.MethodPatch, "/api/admin/orders/o-1/status", `{"status":"pending"}`)
	assertError(t, rec, http.StatusConflict, apperr.CodeInvalidTransition)

	rec = f.do(http.MethodPatch, "/api/admin/orders/o-1/status", `{"status":"lost"}`)
	assertError(t, rec, http.StatusBadRequest, apperr.CodeValidation)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM orders WHERE id=? FOR UPDATE")).WithArgs("o-9").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	f.mock.ExpectRollback()
	rec = f.do(http.MethodPatch, "/api/admin/orders/o-9/status", `{"status":"confirmed"}`)
	assertError(t, rec, http.StatusNotFound, apperr.CodeOrderNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
