package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/auth"
	"github.com/iliyamo/jewelry-storefront/internal/config"
	"github.com/iliyamo/jewelry-storefront/internal/middleware"
	"github.com/iliyamo/jewelry-storefront/internal/model"
	"github.com/iliyamo/jewelry-storefront/internal/queue"
	"github.com/iliyamo/jewelry-storefront/internal/repository"
	"github.com/iliyamo/jewelry-storefront/internal/tenant"
)

// EventPublisher receives domain events raised by the auth endpoints.
type EventPublisher interface {
	UserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
}

// AuthHandler bundles dependencies for auth endpoints.  Repositories are
// built per request on the resolved client's database.
type AuthHandler struct {
	Cfg    config.Config
	Events EventPublisher
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, events EventPublisher, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Cfg: cfg, Events: events, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"min=2,max=50"`
	Email    string `json:"email" validate:"shopemail"`
	Password string `json:"password" validate:"min=6"`
	Phone    string `json:"phone" validate:"phone"`
}

type loginReq struct {
	Email    string `json:"email" validate:"shopemail"`
	Password string `json:"password"`
}

type profileReq struct {
	Name  string `json:"name" validate:"omitempty,min=2,max=50"`
	Phone string `json:"phone" validate:"phone"`
}

type addressReq struct {
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Country   string `json:"country"`
	IsDefault bool   `json:"isDefault"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"min=6"`
}

// Register creates a user in the client's database and returns a token
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.ErrInvalidBody.Wrap(err)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = model.NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperr.ErrMissingFields
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	users := repository.NewUserRepo(t.DB)

	exists, err := users.EmailExists(ctx, req.Email)
	if err != nil {
		return apperr.Internal(err)
	}
	if exists {
		return apperr.ErrUserExists
	}
	u, err := users.Create(ctx, model.User{Name: req.Name, Email: req.Email, Phone: req.Phone}, req.Password, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		// Lost a race with a concurrent registration.
		return apperr.ErrUserExists
	}
	if err != nil {
		return apperr.Internal(err)
	}

	at, err := h.issue(c, t, u)
	if err != nil {
		return err
	}
	h.publishRegistered(t.ID, u)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully",
		"user":    u,
		"token":   at.Token,
	})
}

// Login verifies credentials.  An unknown email and a wrong password are
// indistinguishable to the caller, in body and in timing.
func (h *AuthHandler) Login(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.ErrInvalidBody.Wrap(err)
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperr.ErrMissingFields
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	users := repository.NewUserRepo(t.DB)

	u, err := users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		auth.BurnCompare(req.Password)
		return apperr.ErrInvalidCredentials
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !auth.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.ErrInvalidCredentials
	}
	full, err := users.GetByID(ctx, u.ID)
	if err != nil {
		return apperr.Internal(err)
	}

	at, err := h.issue(c, t, full)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful",
		"user":    full,
		"token":   at.Token,
	})
}

// Logout is stateless: the client drops its token.  The token cookie, if
// any, is expired.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.Cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful"})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile retrieved successfully", "user": u})
}

// UpdateProfile changes name and phone of the authenticated user only.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return apperr.ErrInvalidBody.Wrap(err)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	users := repository.NewUserRepo(t.DB)
	if err := users.UpdateProfile(ctx, u.ID, req.Name, req.Phone); err != nil {
		return apperr.Internal(err)
	}
	updated, err := users.GetByID(ctx, u.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": updated})
}

// AddAddress appends an address; a new default replaces the old one.
func (h *AuthHandler) AddAddress(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req addressReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	users := repository.NewUserRepo(t.DB)
	addr := model.Address{
		Street: req.Street, City: req.City, State: req.State,
		ZipCode: req.ZipCode, Country: req.Country, IsDefault: req.IsDefault,
	}
	if _, err := users.AddAddress(ctx, u.ID, addr); err != nil {
		return apperr.Internal(err)
	}
	updated, err := users.GetByID(ctx, u.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Address added successfully", "user": updated})
}

// ChangePassword requires the current password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	t, err := tenantWithDB(c)
	if err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return apperr.ErrInvalidBody.Wrap(err)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperr.ErrMissingPasswords
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return apperr.ErrInvalidCurrentPassword
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	err = repository.NewUserRepo(t.DB).UpdatePassword(ctx, u.ID, req.NewPassword, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(http.StatusNotFound, apperr.CodeUserNotFound, "User not found")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

// issue signs a token for u with the client's secret and mirrors it into
// an HttpOnly cookie.
func (h *AuthHandler) issue(c echo.Context, t *tenant.Tenant, u model.User) (auth.AccessToken, error) {
	at, err := auth.Issue(t.Config.JWTSecret, t.ID, auth.Subject{UserID: u.ID, Email: u.Email, Role: u.Role}, h.Cfg.JWTExpiresIn)
	if err != nil {
		return auth.AccessToken{}, apperr.Internal(err)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    at.Token,
		Path:     "/",
		Expires:  at.Exp,
		HttpOnly: true,
		Secure:   !h.Cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	return at, nil
}

// publishRegistered emits user.registered in the background.  Failures are
// logged by the publisher and never reach the client.
func (h *AuthHandler) publishRegistered(clientID string, u model.User) {
	if h.Events == nil {
		return
	}
	ev := queue.UserRegisteredEvent{ClientID: clientID, UserID: u.ID, Name: u.Name, Email: u.Email, RegisteredAt: u.CreatedAt}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := h.Events.UserRegistered(ctx, ev); err != nil {
			h.Log.Debug("user.registered not published", zap.String("client", clientID), zap.Error(err))
		}
	}()
}
