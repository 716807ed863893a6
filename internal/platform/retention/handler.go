package retention

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// Handler exposes admin endpoints for retention policies and on-demand
// export cycles.
type Handler struct {
	policies *Service
	exporter *Exporter
}

func NewHandler(policies *Service, exporter *Exporter) *Handler {
	return &Handler{policies: policies, exporter: exporter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/admin", auth.RequireRole("admin", "compliance"))
	admin.GET("/retention-policies", h.ListPolicies)
	admin.GET("/retention-policies/:class", h.GetPolicy)
	admin.POST("/retention/export", h.RunExport)
	admin.POST("/retention/enforce", h.RunEnforce)
}

func (h *Handler) ListPolicies(c echo.Context) error {
	policies := h.policies.AllPolicies()
	return c.JSON(http.StatusOK, map[string]any{
		"policies": policies,
		"total":    len(policies),
	})
}

func (h *Handler) GetPolicy(c echo.Context) error {
	class := compliance.RecordClass(c.Param("class"))
	p := h.policies.GetPolicy(class)
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no retention policy for record class: "+string(class))
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RunExport(c echo.Context) error {
	exported, err := h.exporter.ExportOnce(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"exported": exported})
}

func (h *Handler) RunEnforce(c echo.Context) error {
	purged, err := h.exporter.EnforceRetention(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"purged": purged})
}
