package report

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "radiologist", "physician"))
	g.POST("/reports", h.Create)
	g.GET("/reports", h.List)
	g.GET("/reports/:id", h.Get)
	g.GET("/reports/:id/versions/:version", h.GetVersion)
	g.GET("/reports/:id/snapshot", h.Snapshot)
	g.PUT("/reports/:id", h.Amend)
	g.POST("/reports/:id/finalize", h.Finalize)
}

func (h *Handler) Create(c echo.Context) error {
	var rep Report
	if err := c.Bind(&rep); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &rep); err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) GetVersion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var version int
	if err := echo.PathParamsBinder(c).Int("version", &version).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid version")
	}
	rep, err := h.svc.GetVersion(c.Request().Context(), id, version)
	if err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Snapshot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var version int
	if err := echo.QueryParamsBinder(c).Int("version", &version).BindError(); err != nil || version < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "version is required")
	}
	payload, err := h.svc.Snapshot(c.Request().Context(), id, version)
	if err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusOK, payload)
}

func (h *Handler) Amend(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body Report
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rep, err := h.svc.Amend(c.Request().Context(), id, func(r *Report) {
		r.Technique = body.Technique
		r.FindingsText = body.FindingsText
		r.Impression = body.Impression
		r.Sections = body.Sections
		r.Measurements = body.Measurements
		r.TemplateID = body.TemplateID
		r.TemplateVersion = body.TemplateVersion
	})
	if err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Finalize(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.Finalize(c.Request().Context(), id)
	if err != nil {
		return reportHTTPError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func reportHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrStaleVersion):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
