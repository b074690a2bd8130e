package ordering

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(admin *echo.Group) {
	g := admin.Group("/ordering", auth.RequireRole("admin"))
	g.GET("/:kind", h.List)
	g.POST("/:kind/move", h.Move)
	g.POST("/:kind/reorder", h.Reorder)
	g.PUT("/:kind", h.SetOrder)
}

type moveRequest struct {
	ID        uuid.UUID  `json:"id"`
	Direction string     `json:"direction"`
	GroupID   *uuid.UUID `json:"groupId"`
}

type reorderRequest struct {
	From    int        `json:"from"`
	To      int        `json:"to"`
	GroupID *uuid.UUID `json:"groupId"`
}

type setOrderRequest struct {
	IDs     []uuid.UUID `json:"ids"`
	GroupID *uuid.UUID  `json:"groupId"`
}

func (h *Handler) List(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var groupID *uuid.UUID
	if v := c.QueryParam("groupId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid groupId")
		}
		groupID = &id
	}
	items, err := h.svc.List(c.Request().Context(), kind, groupID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Move(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ID == uuid.Nil {
		return apperr.HTTPError(apperr.Missing("id"))
	}
	dir, err := ParseDirection(req.Direction)
	if err != nil {
		return apperr.HTTPError(err)
	}
	items, err := h.svc.Move(c.Request().Context(), kind, req.GroupID, req.ID, dir)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Reorder(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	items, err := h.svc.Reorder(c.Request().Context(), kind, req.GroupID, req.From, req.To)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SetOrder(c echo.Context) error {
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req setOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	items, err := h.svc.SetOrder(c.Request().Context(), kind, req.GroupID, req.IDs)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}
