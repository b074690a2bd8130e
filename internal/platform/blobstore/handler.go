package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// BlobHandler serves the public photo upload used by the order form and the
// download route for backends that do not host images themselves.
type BlobHandler struct {
	store BlobStore
}

func NewBlobHandler(store BlobStore) *BlobHandler {
	return &BlobHandler{store: store}
}

func (h *BlobHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/uploads/:purpose", h.handleUpload)
	g.GET("/uploads/:id", h.handleDownload)
}

// publicPurposes are the uploads an unauthenticated order form may make.
var publicPurposes = map[string]bool{
	PurposePatientPhoto: true,
	PurposeExtraPhoto:   true,
}

func (h *BlobHandler) handleUpload(c echo.Context) error {
	purpose := c.Param("purpose")
	if !publicPurposes[purpose] {
		return echo.NewHTTPError(http.StatusNotFound, "unknown upload type")
	}
	obj, err := UploadForm(c, h.store, purpose)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, obj)
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	rc, obj, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		return HTTPError(err)
	}
	defer rc.Close()
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, obj.FileName))
	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Stream(http.StatusOK, obj.ContentType, rc)
}

// UploadForm stores the multipart "file" field of the request under purpose.
func UploadForm(c echo.Context, store BlobStore, purpose string) (*Object, error) {
	obj, content, closer, err := FormFile(c)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	obj.Purpose = purpose
	stored, err := store.Upload(c.Request().Context(), obj, content)
	if err != nil {
		return nil, HTTPError(err)
	}
	return stored, nil
}

// FormFile opens the multipart "file" field. The content type is sniffed
// when the part does not carry a useful one.
func FormFile(c echo.Context) (Object, io.Reader, io.Closer, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return Object{}, nil, nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return Object{}, nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}

	var content io.Reader = src
	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		// Mobile browsers often omit the part type.
		head := make([]byte, 512)
		n, _ := io.ReadFull(src, head)
		contentType = http.DetectContentType(head[:n])
		content = io.MultiReader(bytes.NewReader(head[:n]), src)
	}
	return Object{FileName: file.Filename, ContentType: contentType}, content, src, nil
}

// HTTPError maps store errors to HTTP status codes.
func HTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrInvalidPurpose):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnsupported):
		return echo.NewHTTPError(http.StatusNotImplemented, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "image storage is unavailable")
	}
}
