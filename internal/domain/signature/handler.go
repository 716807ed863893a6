package signature

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radpacs/radpacs/internal/platform/auth"
	"github.com/radpacs/radpacs/internal/platform/compliance"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	signGroup := api.Group("", auth.RequireRole("admin", "radiologist", "physician"))
	signGroup.POST("/signatures", h.Create)
	signGroup.POST("/signatures/:id/verify", h.Verify)
	signGroup.POST("/signatures/:id/revoke", h.Revoke)
	signGroup.POST("/signatures/:id/invalidate", h.Invalidate)

	readGroup := api.Group("", auth.RequireRole("admin", "radiologist", "physician", "compliance"))
	readGroup.GET("/signatures/:id", h.Get)
	readGroup.GET("/signatures/:id/manifestation", h.Manifestation)
	readGroup.GET("/reports/:reportId/signatures", h.ListByReport)
}

type createSignatureRequest struct {
	ReportID      uuid.UUID      `json:"report_id"`
	ReportVersion int            `json:"report_version"`
	Meaning       Meaning        `json:"meaning"`
	Payload       map[string]any `json:"payload"`
}

func (h *Handler) Create(c echo.Context) error {
	var body createSignatureRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	req := CreateRequest{
		ReportID:      body.ReportID,
		ReportVersion: body.ReportVersion,
		Meaning:       body.Meaning,
		Payload:       body.Payload,
		SignerID:      auth.UserIDFromContext(ctx),
		SignerName:    auth.UserNameFromContext(ctx),
		SignerRole:    primaryRole(auth.RolesFromContext(ctx)),
		Metadata: Metadata{
			IPAddress:  c.RealIP(),
			DeviceInfo: c.Request().UserAgent(),
		},
	}

	sig, err := h.registry.Create(ctx, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sig)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sig, err := h.registry.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sig)
}

func (h *Handler) ListByReport(c echo.Context) error {
	reportID, err := uuid.Parse(c.Param("reportId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reportId")
	}
	sigs, err := h.registry.ListByReport(c.Request().Context(), reportID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": sigs,
		"total": len(sigs),
	})
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res, err := h.registry.Verify(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Revoke(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body revokeRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actorID := auth.UserIDFromContext(c.Request().Context())
	if err := h.registry.Revoke(c.Request().Context(), id, body.Reason, actorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Invalidate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body revokeRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actorID := auth.UserIDFromContext(c.Request().Context())
	if err := h.registry.Invalidate(c.Request().Context(), id, actorID, body.Reason); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Manifestation(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sig, err := h.registry.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sig.Manifestation())
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation),
		errors.Is(err, compliance.ErrMalformedPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateSignature),
		errors.Is(err, ErrAlreadyRevoked),
		errors.Is(err, ErrAlreadyInvalid):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func primaryRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	return roles[0]
}
