package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DefaultMaxBodyBytes caps request bodies at 2 MB, enough for the largest
// structured report payloads with embedded measurement tables.
const DefaultMaxBodyBytes int64 = 2 << 20

// BodyLimit rejects request bodies larger than maxBytes with 413. A declared
// Content-Length over the limit is rejected before the body is read; chunked
// requests are capped while reading.
func BodyLimit(maxBytes int64) echo.MiddlewareFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.ContentLength > maxBytes {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
			}
			req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes)
			return next(c)
		}
	}
}
