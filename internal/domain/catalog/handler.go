package catalog

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/metrics"
)

type Handler struct {
	svc     *Service
	images  blobstore.BlobStore
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewHandler(svc *Service, images blobstore.BlobStore, logger zerolog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, images: images, logger: logger, metrics: m}
}

func (h *Handler) RegisterRoutes(admin *echo.Group) {
	g := admin.Group("", auth.RequireRole("admin"))
	g.GET("/catalog", h.GetCatalog)

	g.GET("/groups/:id", h.GetGroup)
	g.POST("/groups", h.CreateGroup)
	g.PUT("/groups/:id", h.UpdateGroup)
	g.DELETE("/groups/:id", h.DeleteGroup)

	g.GET("/tests/:id", h.GetTest)
	g.POST("/tests", h.CreateTest)
	g.PUT("/tests/:id", h.UpdateTest)
	g.DELETE("/tests/:id", h.DeleteTest)

	g.GET("/packages/:id", h.GetPackage)
	g.POST("/packages", h.CreatePackage)
	g.PUT("/packages/:id", h.UpdatePackage)
	g.DELETE("/packages/:id", h.DeletePackage)
	g.POST("/packages/:id/image", h.UploadPackageImage)

	g.GET("/dealer-prices", h.GetDealerPrices)
	g.PUT("/dealer-prices", h.SetDealerPrices)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryDealer(c echo.Context) (*uuid.UUID, error) {
	v := c.QueryParam("dealerId")
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid dealerId")
	}
	return &id, nil
}

// GetCatalog returns the full catalog with cost prices, priced for
// ?dealerId= when given.
func (h *Handler) GetCatalog(c echo.Context) error {
	dealerID, err := queryDealer(c)
	if err != nil {
		return err
	}
	cat, err := h.svc.LoadCatalog(c.Request().Context(), dealerID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cat)
}

// -- Group Handlers --

type groupRequest struct {
	Title string `json:"title"`
}

func (h *Handler) CreateGroup(c echo.Context) error {
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g := &TestGroup{Title: req.Title}
	if err := h.svc.CreateGroup(c.Request().Context(), g); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetGroup(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	g, err := h.svc.GetGroup(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) UpdateGroup(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	g, err := h.svc.GetGroup(ctx, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	var req groupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g.Title = req.Title
	if err := h.svc.UpdateGroup(ctx, g); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteGroup(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteGroup(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Test Handlers --

type testRequest struct {
	GroupID   uuid.UUID `json:"groupId"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	BasePrice int64     `json:"basePrice"`
	CostPrice int64     `json:"costPrice"`
}

func (r testRequest) apply(t *Test) {
	t.GroupID = r.GroupID
	t.Name = r.Name
	t.Category = r.Category
	t.BasePrice = r.BasePrice
	t.CostPrice = r.CostPrice
}

func (h *Handler) CreateTest(c echo.Context) error {
	var req testRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t := &Test{}
	req.apply(t)
	if err := h.svc.CreateTest(c.Request().Context(), t); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTest(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetTest(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTest(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req testRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t := &Test{ID: id}
	req.apply(t)
	if err := h.svc.UpdateTest(c.Request().Context(), t); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTest(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTest(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Package Handlers --

func (h *Handler) CreatePackage(c echo.Context) error {
	var in PackageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CreatePackage(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPackage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPackage(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePackage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in PackageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpdatePackage(c.Request().Context(), id, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePackage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePackage(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadPackageImage stores the multipart "file" field and points the
// package at it.
func (h *Handler) UploadPackageImage(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.GetPackage(ctx, id); err != nil {
		return apperr.HTTPError(err)
	}
	obj, err := blobstore.UploadForm(c, h.images, blobstore.PurposePackageImage)
	if err != nil {
		h.metrics.UploadFailed(blobstore.PurposePackageImage)
		h.logger.Warn().Err(err).Str("package_id", id.String()).Msg("package image upload failed")
		return err
	}
	if err := h.svc.SetPackageImage(ctx, id, obj.URL); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, obj)
}

// -- Dealer Price Handlers --

func (h *Handler) GetDealerPrices(c echo.Context) error {
	dealerID, err := queryDealer(c)
	if err != nil {
		return err
	}
	if dealerID == nil {
		return apperr.HTTPError(apperr.Missing("dealerId"))
	}
	prices, err := h.svc.DealerPrices(c.Request().Context(), *dealerID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if prices == nil {
		prices = []DealerPrice{}
	}
	return c.JSON(http.StatusOK, prices)
}

type dealerPricesRequest struct {
	DealerID uuid.UUID     `json:"dealerId"`
	Prices   []PriceUpdate `json:"prices"`
}

func (h *Handler) SetDealerPrices(c echo.Context) error {
	var req dealerPricesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := h.svc.SetDealerPrices(ctx, req.DealerID, req.Prices); err != nil {
		return apperr.HTTPError(err)
	}
	prices, err := h.svc.DealerPrices(ctx, req.DealerID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if prices == nil {
		prices = []DealerPrice{}
	}
	return c.JSON(http.StatusOK, prices)
}
