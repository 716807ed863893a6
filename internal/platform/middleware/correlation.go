package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// CorrelationHeader carries the request correlation ID on the wire.
const CorrelationHeader = "X-Correlation-ID"

// Correlation assigns every request a correlation ID, honoring one supplied
// by the caller so multi-service flows share a single trace. The ID is placed
// on the request context for audit emission and echoed in the response.
func Correlation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cid := c.Request().Header.Get(CorrelationHeader)
			if cid == "" {
				cid = compliance.NewCorrelationID()
			}

			ctx := compliance.WithCorrelationID(c.Request().Context(), cid)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("correlation_id", cid)
			c.Response().Header().Set(CorrelationHeader, cid)

			return next(c)
		}
	}
}
