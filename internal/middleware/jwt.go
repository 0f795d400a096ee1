package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/auth"
	"github.com/iliyamo/jewelry-storefront/internal/repository"
)

// TokenCookie is the cookie checked when no Authorization header is sent.
const TokenCookie = "token"

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// token cookie.
func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if ck, err := c.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}

// JWTAuth validates the access token against the resolved client's secret,
// checks that the token was issued for this client and loads the user
// from the client's database.  It must run after ResolveClient.
func JWTAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			t, ok := TenantFrom(c)
			if !ok {
				return apperr.ErrMissingClientContext
			}
			raw := bearerToken(c)
			if raw == "" {
				return apperr.ErrMissingToken
			}

			claims, err := auth.Parse(t.Config.JWTSecret, raw)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				return apperr.ErrTokenExpired
			case err != nil:
				return apperr.ErrInvalidToken
			}
			// A token signed by another client with a shared secret still
			// names that client.
			if claims.ClientID != t.ID {
				return apperr.ErrInvalidClientToken
			}

			if t.DB == nil {
				return apperr.ErrDatabaseUnavailable
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := repository.NewUserRepo(t.DB).GetByID(ctx, claims.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.ErrUserNotFound
			}
			if err != nil {
				return apperr.Internal(err)
			}

			SetUser(c, &u)
			return next(c)
		}
	}
}
