package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// AccessAudit emits an access.* audit event for every API request after the
// handler runs. The event type reflects what actually happened: rejected
// credentials produce access.unauthorized regardless of the HTTP verb.
func AccessAudit(audit AuditEmitter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			ctx := c.Request().Context()
			cid, _ := c.Get("correlation_id").(string)
			audit.Log(ctx, accessEventType(c.Request().Method, status), compliance.AccessDetails{
				UserID:   auth.UserIDFromContext(ctx),
				Method:   c.Request().Method,
				Path:     c.Path(),
				RemoteIP: c.RealIP(),
				Status:   status,
			}, cid)

			return err
		}
	}
}

func accessEventType(method string, status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "access.unauthorized"
	case method == http.MethodDelete:
		return "access.delete"
	case method == http.MethodGet || method == http.MethodHead:
		return "access.read"
	default:
		return "access.write"
	}
}
