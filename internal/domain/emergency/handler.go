package emergency

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
	cases := api.Group("/cases", auth.RequireRole("admin", "physician", "nurse", "supervisor", "on_call_doctor", "emergency_team"))
	cases.GET("", h.listActive)
	cases.POST("", h.create)
	cases.GET("/:id", h.get)
	cases.GET("/:id/timeline", h.timeline)
	cases.POST("/:id/acknowledge", h.acknowledge)
	cases.POST("/:id/assign", h.assign)
	cases.POST("/:id/respond", h.respond)
	cases.POST("/:id/resolve", h.resolve)
}

func (h *Handler) create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.service.Create(c.Request().Context(), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ec, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ec)
}

func (h *Handler) listActive(c echo.Context) error {
	var filter ListFilter
	if v := c.QueryParam("severity"); v != "" {
		filter.Severity = &v
	}
	if v := c.QueryParam("priority"); v != "" {
		filter.Priority = &v
	}
	if v := c.QueryParam("assigned_to"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid assigned_to")
		}
		filter.AssignedTo = &id
	}
	p := pagination.FromContext(c)
	items, total, err := h.service.ListActive(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list cases")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) timeline(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	events, err := h.service.Timeline(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, events)
}

type acknowledgeRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Note   *string   `json:"note,omitempty"`
}

func (h *Handler) acknowledge(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req acknowledgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	ec, err := h.service.Acknowledge(c.Request().Context(), id, req.UserID, req.Note)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ec)
}

type assignRequest struct {
	ResponderID uuid.UUID `json:"responder_id"`
}

func (h *Handler) assign(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ResponderID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "responder_id is required")
	}
	ec, err := h.service.Assign(c.Request().Context(), id, req.ResponderID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ec)
}

type respondRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *Handler) respond(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ec, err := h.service.Respond(c.Request().Context(), id, req.UserID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ec)
}

func (h *Handler) resolve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ResolveInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.UserID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	ec, err := h.service.Resolve(c.Request().Context(), id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ec)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	return id, nil
}

// mapError translates the error taxonomy onto HTTP statuses.
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
