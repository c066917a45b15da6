package vitals

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/errs"
	"github.com/telecare/telecare/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Devices and clinical staff submit readings; clinical staff read them.
	ingest := api.Group("/patients/:id/measurements", auth.RequireRole("admin", "device", "nurse", "physician"))
	ingest.POST("", h.ingest)

	read := api.Group("/patients/:id", auth.RequireRole("admin", "physician", "nurse", "supervisor"))
	read.GET("/measurements", h.list)
	read.GET("/trends", h.trends)
}

type ingestRequest struct {
	Readings []VitalSet `json:"readings"`
}

type ingestResponse struct {
	Results []IngestResult `json:"results"`
}

func (h *Handler) ingest(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Readings) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one reading is required")
	}

	results, err := h.service.IngestBatch(c.Request().Context(), patientID, req.Readings)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ingestResponse{Results: results})
}

func (h *Handler) list(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)
	items, total, err := h.service.ListMeasurements(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list measurements")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) trends(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	summary, err := h.service.Trends(c.Request().Context(), patientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func mapError(err error) error {
	var ve *errs.ValidationError
	var nf *errs.NotFoundError
	var sc *errs.StateConflictError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error())
	case errors.As(err, &sc):
		return echo.NewHTTPError(http.StatusConflict, sc.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
