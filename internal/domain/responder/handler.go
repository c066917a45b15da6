package responder

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/responders", auth.RequireRole("admin", "physician", "nurse", "supervisor"))
	read.GET("", h.list)
	read.GET("/:id", h.get)

	write := api.Group("/responders", auth.RequireRole("admin", "supervisor"))
	write.POST("", h.create)
	write.PUT("/:id", h.update)

	// Responders manage their own availability.
	self := api.Group("/responders", auth.RequireRole("admin", "physician", "nurse", "supervisor", "on_call_doctor", "emergency_team"))
	self.PUT("/:id/availability", h.setAvailability)
}

func (h *Handler) create(c echo.Context) error {
	var res Responder
	if err := c.Bind(&res); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.service.Create(c.Request().Context(), &res); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid responder id")
	}
	res, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "responder not found")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid responder id")
	}
	var res Responder
	if err := c.Bind(&res); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res.ID = id
	if err := h.service.Update(c.Request().Context(), &res); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) list(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.service.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list responders")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (h *Handler) setAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid responder id")
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.service.SetAvailability(c.Request().Context(), id, req.Available); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
