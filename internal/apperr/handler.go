package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// body is the JSON error envelope.
type body struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Handler returns an echo.HTTPErrorHandler rendering every error as the JSON
// envelope.  In development the internal cause (with its stack trace when it
// was wrapped by github.com/pkg/errors) is included under "stack".
func Handler(log *zap.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ae := normalize(err)

		if ae.Status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("code", ae.Code),
				zap.Error(err),
			)
		}

		out := body{Message: ae.Message, Error: ae.Code, Details: ae.Details}
		if development && ae.Err != nil {
			out.Stack = fmt.Sprintf("%+v", ae.Err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(ae.Status)
		} else {
			werr = c.JSON(ae.Status, out)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

// normalize maps any error onto an *Error.
func normalize(err error) *Error {
	if ae, ok := As(err); ok {
		return ae
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return &Error{Status: he.Code, Code: codeForStatus(he.Code), Message: msg, Err: he.Internal}
	}
	return Internal(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusRequestEntityTooLarge:
		return CodePayloadTooLarge
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	case http.StatusUnauthorized:
		return CodeNotAuthenticated
	case http.StatusForbidden:
		return CodeInsufficientPerms
	case http.StatusBadRequest:
		return CodeInvalidBody
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return http.StatusText(status)
}
