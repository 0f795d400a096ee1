package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// clientInfo is the public part of a client's configuration.  Secrets and
// connection strings never leave the server.
type clientInfo struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	StorageProvider  string   `json:"storageProvider"`
	CatalogSource    string   `json:"catalogSource"`
	PaymentProviders []string `json:"paymentProviders"`
	WelcomeEmail     bool     `json:"welcomeEmail"`
	Uploads          Uploads  `json:"uploads"`
}

// Uploads are the process-wide limits the frontend checks before it
// sends a file to the client's storage provider.
type Uploads struct {
	MaxFileSize      int64    `json:"maxFileSize"`
	AllowedFileTypes []string `json:"allowedFileTypes"`
}

// Client describes the resolved client to the frontend.
func Client(uploads Uploads) echo.HandlerFunc {
	return func(c echo.Context) error {
		return describeClient(c, uploads)
	}
}

func describeClient(c echo.Context, uploads Uploads) error {
	t, err := currentTenant(c)
	if err != nil {
		return err
	}
	cfg := t.Config
	storage := cfg.StorageProvider
	if storage == "" {
		storage = tenant.StorageLocal
	}
	source := cfg.CatalogSource
	if source == "" {
		source = tenant.CatalogStatic
	}
	return c.JSON(http.StatusOK, clientInfo{
		ID:               t.ID,
		Name:             cfg.Name,
		StorageProvider:  storage,
		CatalogSource:    source,
		PaymentProviders: cfg.PaymentProviders(),
		WelcomeEmail:     cfg.WelcomeEmail && cfg.HasSMTP(),
		Uploads:          uploads,
	})
}
