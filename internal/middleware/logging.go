package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iliyamo/jewelry-storefront/internal/metrics"
)

// RequestLogger writes one log line per request and records request
// metrics.  Errors are passed to Echo's error handler first so the logged
// status is the one the client sees.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			client := ""
			if t, ok := TenantFrom(c); ok {
				client = t.ID
			}
			metrics.ObserveRequest(client, req.Method, route, res.Status, elapsed)

			level := zapcore.InfoLevel
			switch {
			case res.Status >= 500:
				level = zapcore.ErrorLevel
			case res.Status >= 400:
				level = zapcore.WarnLevel
			}
			if ce := log.Check(level, "request"); ce != nil {
				ce.Write(
					zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
					zap.String("client", client),
					zap.String("method", req.Method),
					zap.String("route", route),
					zap.String("uri", req.RequestURI),
					zap.Int("status", res.Status),
					zap.Duration("latency", elapsed),
					zap.String("remote_ip", c.RealIP()),
					zap.Int64("bytes_out", res.Size),
				)
			}
			return nil
		}
	}
}
