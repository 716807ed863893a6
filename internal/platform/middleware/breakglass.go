package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// BreakGlassHeader carries the emergency-access justification.
const BreakGlassHeader = "X-Break-Glass"

const breakGlassMaxPerHour = 10

// breakGlassLimiter enforces a per-user rolling one-hour cap on emergency
// overrides.
type breakGlassLimiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func (rl *breakGlassLimiter) allow(userID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-time.Hour)
	kept := rl.entries[userID][:0]
	for _, ts := range rl.entries[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= breakGlassMaxPerHour {
		rl.entries[userID] = kept
		return false
	}
	rl.entries[userID] = append(kept, now)
	return true
}

// BreakGlass implements the emergency override for clinical data access.
// A request carrying the X-Break-Glass header with a justification bypasses
// role checks for that request, is rate limited per user, and always produces
// a warn-severity access.break_glass audit event. Must run after
// authentication and before role enforcement.
func BreakGlass(logger zerolog.Logger, audit AuditEmitter) echo.MiddlewareFunc {
	rl := &breakGlassLimiter{entries: make(map[string][]time.Time)}
	log := logger.With().Str("component", "break-glass").Logger()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reason := c.Request().Header.Get(BreakGlassHeader)
			if reason == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			userID := auth.UserIDFromContext(ctx)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "break-glass requires authentication")
			}
			if !rl.allow(userID, time.Now().UTC()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "break-glass rate limit exceeded")
			}

			cid, _ := c.Get("correlation_id").(string)
			log.Warn().
				Str("user_id", userID).
				Str("reason", reason).
				Str("path", c.Request().URL.Path).
				Msg("break-glass override invoked")
			audit.Log(ctx, "access.break_glass", compliance.AccessDetails{
				UserID:   userID,
				Method:   c.Request().Method,
				Path:     c.Request().URL.Path,
				RemoteIP: c.RealIP(),
				Extra:    map[string]any{"reason": reason},
			}, cid)

			c.SetRequest(c.Request().WithContext(auth.WithBreakGlass(ctx)))
			return next(c)
		}
	}
}
