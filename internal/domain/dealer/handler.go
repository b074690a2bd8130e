package dealer

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
	g := admin.Group("", auth.RequireRole("admin"))
	g.GET("/dealers", h.ListDealers)
	g.GET("/dealers/:id", h.GetDealer)
	g.POST("/dealers", h.CreateDealer)
	g.PUT("/dealers/:id", h.UpdateDealer)
	g.DELETE("/dealers/:id", h.DeleteDealer)
}

type dealerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	IsActive *bool  `json:"isActive"`
}

func (r dealerRequest) apply(d *Dealer) {
	d.Name = r.Name
	d.Email = r.Email
	d.Phone = r.Phone
	d.Address = r.Address
	if r.IsActive != nil {
		d.IsActive = *r.IsActive
	}
}

func (h *Handler) CreateDealer(c echo.Context) error {
	var req dealerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := &Dealer{IsActive: true}
	req.apply(d)
	if err := h.svc.Create(c.Request().Context(), d); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDealer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDealers(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Dealer{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateDealer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req dealerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.apply(d)
	if err := h.svc.Update(ctx, d); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDealer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
