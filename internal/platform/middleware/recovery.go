package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// AuditEmitter emits compliance audit events from the request path.
type AuditEmitter interface {
	Log(ctx context.Context, eventType string, details compliance.Detailer, correlationID string) string
}

// Recovery converts panics into 500 responses and records a system.error
// audit event alongside the structured log entry.
func Recovery(logger zerolog.Logger, audit AuditEmitter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)
					cid, _ := c.Get("correlation_id").(string)

					logger.Error().
						Str("correlation_id", cid).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					if audit != nil {
						audit.Log(c.Request().Context(), "system.error", compliance.SystemDetails{
							Component: "http",
							Message:   fmt.Sprintf("panic: %v", r),
							Extra: map[string]any{
								"method": c.Request().Method,
								"path":   c.Request().URL.Path,
							},
						}, cid)
					}

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}
