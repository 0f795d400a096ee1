// Package apperr defines the error shape returned by every API endpoint:
// a human readable message plus a machine readable code, rendered as
// {"message": ..., "error": CODE}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine readable error codes.
const (
	CodeMissingFields          = "MISSING_FIELDS"
	CodeValidation             = "VALIDATION_ERROR"
	CodeUserExists             = "USER_EXISTS"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeMissingToken           = "MISSING_TOKEN"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeInvalidClientToken     = "INVALID_CLIENT_TOKEN"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeNotAuthenticated       = "NOT_AUTHENTICATED"
	CodeInsufficientPerms      = "INSUFFICIENT_PERMISSIONS"
	CodeMissingPasswords       = "MISSING_PASSWORDS"
	CodeInvalidCurrentPassword = "INVALID_CURRENT_PASSWORD"
	CodeMissingClientID        = "MISSING_CLIENT_ID"
	CodeClientNotFound         = "CLIENT_NOT_FOUND"
	CodeClientConfigInvalid    = "CLIENT_CONFIG_INVALID"
	CodeMissingClientContext   = "MISSING_CLIENT_CONTEXT"
	CodeDatabaseUnavailable    = "DATABASE_UNAVAILABLE"
	CodeProductNotFound        = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound          = "ORDER_NOT_FOUND"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	CodeInvalidBody            = "INVALID_BODY"
	CodeNotFound               = "NOT_FOUND"
	CodeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeInternal               = "INTERNAL_ERROR"
)

// Error is an API error.  Status is the HTTP status; Err, when set, is the
// internal cause and is never sent to clients outside development mode.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error without an internal cause.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap attaches an internal cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// Internal wraps an unexpected failure as a generic 500.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Internal server error", Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Frequently used errors.  Handlers return these directly or via WithDetails.
var (
	ErrMissingFields          = New(http.StatusBadRequest, CodeMissingFields, "Required fields are missing")
	ErrUserExists             = New(http.StatusBadRequest, CodeUserExists, "User already exists with this email")
	ErrInvalidCredentials     = New(http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials")
	ErrMissingToken           = New(http.StatusUnauthorized, CodeMissingToken, "Access token is required")
	ErrInvalidToken           = New(http.StatusUnauthorized, CodeInvalidToken, "Invalid token")
	ErrTokenExpired           = New(http.StatusUnauthorized, CodeTokenExpired, "Token has expired")
	ErrInvalidClientToken     = New(http.StatusUnauthorized, CodeInvalidClientToken, "Invalid token for this client")
	ErrUserNotFound           = New(http.StatusUnauthorized, CodeUserNotFound, "User not found")
	ErrNotAuthenticated       = New(http.StatusUnauthorized, CodeNotAuthenticated, "Authentication required")
	ErrInsufficientPerms      = New(http.StatusForbidden, CodeInsufficientPerms, "Insufficient permissions")
	ErrMissingPasswords       = New(http.StatusBadRequest, CodeMissingPasswords, "Current password and new password are required")
	ErrInvalidCurrentPassword = New(http.StatusBadRequest, CodeInvalidCurrentPassword, "Current password is incorrect")
	ErrMissingClientID        = New(http.StatusBadRequest, CodeMissingClientID, "Client ID is required")
	ErrMissingClientContext   = New(http.StatusBadRequest, CodeMissingClientContext, "Client context is required")
	ErrDatabaseUnavailable    = New(http.StatusServiceUnavailable, CodeDatabaseUnavailable, "Client database is unavailable")
	ErrProductNotFound        = New(http.StatusNotFound, CodeProductNotFound, "Product not found")
	ErrOrderNotFound          = New(http.StatusNotFound, CodeOrderNotFound, "Order not found")
	ErrInvalidBody            = New(http.StatusBadRequest, CodeInvalidBody, "Invalid request body")
	ErrInvalidTransition      = New(http.StatusConflict, CodeInvalidTransition, "Order status change is not allowed")
)

// ClientNotFound names the unknown client in the message.
func ClientNotFound(id string) *Error {
	return New(http.StatusNotFound, CodeClientNotFound, "Client not found: "+id)
}

// Validation reports field level problems.
func Validation(message string, details any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}
