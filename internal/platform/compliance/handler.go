package compliance

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/pkg/pagination"
)

// Handler exposes the compliance audit trail over HTTP. Output is always the
// stored (already redacted) form; nothing here re-touches raw details.
type Handler struct {
	store  EventStore
	logger *Logger
}

// NewHandler creates a handler over the given store and emitting logger.
func NewHandler(store EventStore, logger *Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes registers compliance audit routes on the API group.
// Reading the audit trail is restricted to compliance officers and admins.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/audit-events", auth.RequireRole("admin", "compliance"))
	g.GET("", h.SearchEvents)
	g.GET("/:id", h.GetEvent)

	api.GET("/admin/audit-stats", h.GetStats, auth.RequireRole("admin", "compliance"))
}

// SearchEvents handles GET /api/v1/audit-events.
func (h *Handler) SearchEvents(c echo.Context) error {
	p := pagination.FromContext(c)
	q := SearchQuery{
		EventType:     c.QueryParam("event_type"),
		CorrelationID: c.QueryParam("correlation_id"),
		Limit:         p.Limit,
		Offset:        p.Offset,
	}
	if sev := c.QueryParam("severity"); sev != "" {
		q.Severity = Severity(sev)
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		q.From = &t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		q.To = &t
	}

	events, total, err := h.store.Search(c.Request().Context(), q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, p.Limit, p.Offset))
}

// GetEvent handles GET /api/v1/audit-events/:id.
func (h *Handler) GetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	e, err := h.store.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit event not found")
	}
	return c.JSON(http.StatusOK, e)
}

// GetStats handles GET /api/v1/admin/audit-stats. The dropped counters here
// are the operational signal for buffer exhaustion and sink failures.
func (h *Handler) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.logger.Stats())
}
