package router

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/cart"
	"github.com/iliyamo/jewelry-storefront/internal/config"
	"github.com/iliyamo/jewelry-storefront/internal/handler"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
	"github.com/iliyamo/jewelry-storefront/internal/validation"
)

type staticResolver map[string]*tenant.Tenant

func (s staticResolver) Resolve(_ context.Context, id string) (*tenant.Tenant, error) {
	if t, ok := s[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", tenant.ErrClientNotFound, id)
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Validator = validation.New()
	e.HTTPErrorHandler = apperr.Handler(zap.NewNop(), false)
	RegisterRoutes(e, "v1")
	RegisterAPI(e, Deps{
		Resolver: staticResolver{
			"shop1": {ID: "shop1", Config: tenant.ClientConfig{ID: "shop1", Name: "Shop One", JWTSecret: "s1"}},
		},
		ReservedSubdomains: []string{"www", "api"},
		Log:                zap.NewNop(),
		Auth:               handler.NewAuthHandler(config.Config{BcryptCost: 4}, nil, nil),
		Products:           handler.NewProductHandler(),
		Cart:               handler.NewCartHandler(cart.NewMemoryStore()),
		Orders:             handler.NewOrderHandler(),
		Uploads:            handler.Uploads{MaxFileSize: 1024, AllowedFileTypes: []string{"image/png"}},
	})
	return e
}

func serve(e *echo.Echo, method, target, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if host != "" {
		req.Host = host
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Registered(t *testing.T) {
	e := newServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health", "GET /healthz", "GET /metrics",
		"POST /api/auth/register", "POST /api/auth/login", "POST /api/auth/logout",
		"GET /api/auth/profile", "PUT /api/auth/profile", "POST /api/auth/addresses",
		"PUT /api/auth/change-password", "POST /api/auth/change-password",
		"GET /api/products", "GET /api/products/:id", "GET /api/client",
		"GET /api/cart", "DELETE /api/cart", "POST /api/cart/items",
		"PUT /api/cart/items/:productId", "DELETE /api/cart/items/:productId", "POST /api/cart/toggle",
		"GET /api/orders", "GET /api/orders/:id", "PATCH /api/admin/orders/:id/status",
		"GET /api/c/:clientId/products", "POST /api/c/:clientId/auth/login",
	} {
		assert.True(t, have[want], want)
	}
}

func TestRoutes_ClientSelection(t *testing.T) {
	e := newServer(t)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/c/shop1/products", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/products", "shop1.example.com").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/products?clientId=shop1", "").Code)

	rec := serve(e, http.MethodGet, "/api/products", "www.example.com")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodGet, "/api/c/ghost/client", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_ProtectedNeedToken(t *testing.T) {
	e := newServer(t)
	for _, target := range []string{"/api/c/shop1/cart", "/api/c/shop1/orders", "/api/c/shop1/auth/profile"} {
		rec := serve(e, http.MethodGet, target, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.Contains(t, rec.Body.String(), apperr.CodeMissingToken, target)
	}
	rec := serve(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutes_UnknownPathIsNotFound(t *testing.T) {
	e := newServer(t)
	rec := serve(e, http.MethodGet, "/api/nope?clientId=shop1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRoutes_ClientDescriptorCarriesUploadLimits(t *testing.T) {
	e := newServer(t)
	rec := serve(e, http.MethodGet, "/api/c/shop1/client", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uploads":{"maxFileSize":1024,"allowedFileTypes":["image/png"]}`)
}
