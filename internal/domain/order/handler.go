package order

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/auth"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/export"
	"github.com/labdesk/labdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

// NewHandler renders export dates in loc (UTC when nil).
func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc}
}

// RegisterRoutes mounts the public order form under api and the back-office
// routes under admin.
func (h *Handler) RegisterRoutes(api, admin *echo.Group) {
	api.GET("/order/:dealer/catalog", h.GetOrderCatalog)
	api.POST("/order/:dealer/quote", h.QuoteOrder)
	api.POST("/order/:dealer/applications", h.SubmitApplication)

	g := admin.Group("", auth.RequireRole("admin"))
	g.GET("/applications", h.ListApplications)
	g.GET("/applications/export.csv", h.ExportApplications)
	g.GET("/applications/:id", h.GetApplication)
	g.GET("/applications/:id/selection", h.GetSelection)
	g.GET("/applications/:id/document", h.GetDocument)
	g.PUT("/applications/:id", h.ResubmitApplication)
	g.PATCH("/applications/:id/status", h.UpdateStatus)
	g.POST("/applications/:id/photo", h.AttachPhoto)
	g.DELETE("/applications/:id", h.DeleteApplication)
}

type dealerSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type orderCatalogResponse struct {
	Dealer dealerSummary `json:"dealer"`
	catalog.PublicCatalog
}

func (h *Handler) GetOrderCatalog(c echo.Context) error {
	d, cat, err := h.svc.Catalog(c.Request().Context(), c.Param("dealer"))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, orderCatalogResponse{
		Dealer:        dealerSummary{ID: d.ID, Name: d.Name},
		PublicCatalog: cat.Public(),
	})
}

func (h *Handler) QuoteOrder(c echo.Context) error {
	var req SelectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	q, err := h.svc.Quote(c.Request().Context(), c.Param("dealer"), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) SubmitApplication(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	app, err := h.svc.Submit(c.Request().Context(), c.Param("dealer"), req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, app)
}

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// listFilter reads ?status=, ?dealerId= and ?from=/?to= (YYYY-MM-DD, to is
// inclusive).
func (h *Handler) listFilter(c echo.Context) (ListFilter, error) {
	f := ListFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("dealerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid dealerId")
		}
		f.DealerID = &id
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		t = t.AddDate(0, 0, 1)
		f.To = &t
	}
	return f, nil
}

func (h *Handler) ListApplications(c echo.Context) error {
	f, err := h.listFilter(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*Application{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ExportApplications(c echo.Context) error {
	f, err := h.listFilter(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.ExportRows(c.Request().Context(), f)
	if err != nil {
		return apperr.HTTPError(err)
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows, h.loc); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to write export")
	}
	c.Response().Header().Set("Content-Disposition", `attachment; filename="applications.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) GetApplication(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	app, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, app)
}

func (h *Handler) GetSelection(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	q, err := h.svc.EditSelection(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, q)
}

// GetDocument returns the printable document as JSON, or as HTML with
// ?format=html.
func (h *Handler) GetDocument(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.Document(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if c.QueryParam("format") != "html" {
		return c.JSON(http.StatusOK, doc)
	}
	var buf bytes.Buffer
	if err := export.RenderHTML(&buf, doc); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render document")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) ResubmitApplication(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	app, err := h.svc.Resubmit(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, app)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	app, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, app)
}

// AttachPhoto stores the multipart "file" field as the patient photo, or
// the extra photo with ?purpose=extra-photo.
func (h *Handler) AttachPhoto(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	purpose := c.QueryParam("purpose")
	if purpose == "" {
		purpose = blobstore.PurposePatientPhoto
	}
	obj, content, closer, err := blobstore.FormFile(c)
	if err != nil {
		return err
	}
	defer closer.Close()
	obj.Purpose = purpose

	app, err := h.svc.AttachPhoto(c.Request().Context(), id, obj, content)
	if err != nil {
		return photoError(err)
	}
	return c.JSON(http.StatusOK, app)
}

func photoError(err error) error {
	for _, kind := range []error{apperr.ErrValidation, apperr.ErrNotFound, apperr.ErrDataUnavailable, apperr.ErrPersistence} {
		if errors.Is(err, kind) {
			return apperr.HTTPError(err)
		}
	}
	return blobstore.HTTPError(err)
}

func (h *Handler) DeleteApplication(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
