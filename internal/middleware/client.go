package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// ClientHeader carries the client id explicitly.
const ClientHeader = "X-Client-ID"

// Resolver turns a client id into a client with a live connection.
// *tenant.Pool implements it.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*tenant.Tenant, error)
}

// ClientID extracts the client id from a request.  Precedence: the
// X-Client-ID header, the subdomain (unless reserved), the clientId query
// parameter, the clientId path parameter.  It returns "" when none is set.
func ClientID(c echo.Context, reserved map[string]bool) string {
	if id := norm(c.Request().Header.Get(ClientHeader)); id != "" {
		return id
	}
	if sub := subdomain(c.Request().Host); sub != "" && !reserved[sub] {
		return sub
	}
	if id := norm(c.QueryParam("clientId")); id != "" {
		return id
	}
	return norm(c.Param("clientId"))
}

// subdomain returns the first label of host when host has at least three
// labels.  IP addresses have no subdomain.
func subdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return norm(labels[0])
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ResolveClient identifies the client of every request and attaches its
// configuration and database connection to the context.
func ResolveClient(r Resolver, reservedSubdomains []string, log *zap.Logger) echo.MiddlewareFunc {
	reserved := make(map[string]bool, len(reservedSubdomains))
	for _, s := range reservedSubdomains {
		reserved[norm(s)] = true
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ClientID(c, reserved)
			if id == "" {
				return apperr.ErrMissingClientID
			}

			t, err := r.Resolve(c.Request().Context(), id)
			if err != nil {
				var verr *tenant.ValidationError
				switch {
				case errors.Is(err, tenant.ErrClientNotFound):
					return apperr.ClientNotFound(id)
				case errors.As(err, &verr):
					log.Error("client configuration invalid", zap.String("client", id), zap.Error(err))
					return apperr.New(http.StatusInternalServerError, apperr.CodeClientConfigInvalid, "Client configuration is invalid").Wrap(err)
				case errors.Is(err, tenant.ErrDatabaseUnavailable):
					log.Error("client database unavailable", zap.String("client", id), zap.Error(err))
					return apperr.ErrDatabaseUnavailable.Wrap(err)
				}
				return apperr.Internal(err)
			}

			SetTenant(c, t)
			c.Response().Header().Set(ClientHeader, t.ID)
			return next(c)
		}
	}
}

// RequireClient fails with MISSING_CLIENT_CONTEXT when no client has been
// resolved.  Handlers mounted outside ResolveClient use it as a guard.
func RequireClient() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := TenantFrom(c); !ok {
				return apperr.ErrMissingClientContext
			}
			return next(c)
		}
	}
}
