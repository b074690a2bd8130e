package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/dealer"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/events"
	"github.com/labdesk/labdesk/internal/platform/export"
	"github.com/labdesk/labdesk/internal/platform/metrics"
	"github.com/labdesk/labdesk/internal/platform/notification"
	"github.com/labdesk/labdesk/internal/platform/tracing"
)

// DealerResolver finds the active dealer an order form link points at.
type DealerResolver interface {
	Resolve(ctx context.Context, key string) (*dealer.Dealer, error)
}

type CatalogLoader interface {
	LoadCatalog(ctx context.Context, dealerID *uuid.UUID) (*catalog.Catalog, error)
}

type Service struct {
	dealers  DealerResolver
	catalogs CatalogLoader
	apps     ApplicationRepository
	photos   blobstore.BlobStore
	events   events.Publisher
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	header   export.Header
	now      func() time.Time
}

func NewService(dealers DealerResolver, catalogs CatalogLoader, apps ApplicationRepository,
	photos blobstore.BlobStore, publisher events.Publisher, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		dealers:  dealers,
		catalogs: catalogs,
		apps:     apps,
		photos:   photos,
		events:   publisher,
		logger:   logger,
		metrics:  m,
		header:   export.DefaultHeader,
		now:      time.Now,
	}
}

// WithHeader sets the lab header printed on documents.
func (s *Service) WithHeader(h export.Header) *Service {
	s.header = h
	return s
}

// Catalog resolves the dealer and then loads the catalog priced for it.
func (s *Service) Catalog(ctx context.Context, dealerKey string) (*dealer.Dealer, *catalog.Catalog, error) {
	d, err := s.dealers.Resolve(ctx, dealerKey)
	if err != nil {
		return nil, nil, err
	}
	cat, err := s.catalogs.LoadCatalog(ctx, &d.ID)
	if err != nil {
		return nil, nil, err
	}
	return d, cat, nil
}

func (s *Service) Quote(ctx context.Context, dealerKey string, req SelectionRequest) (*Quote, error) {
	_, cat, err := s.Catalog(ctx, dealerKey)
	if err != nil {
		return nil, err
	}
	sel, err := selectionFromRequest(cat, req)
	if err != nil {
		return nil, err
	}
	s.metrics.QuoteComputed()
	return sel.Quote(), nil
}

// Submit creates a pending application for the dealer's order form.
func (s *Service) Submit(ctx context.Context, dealerKey string, req SubmitRequest) (*Application, error) {
	ctx, span := tracing.Tracer().Start(ctx, "order.submit")
	defer span.End()

	d, cat, err := s.Catalog(ctx, dealerKey)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sel, err := selectionFromRequest(cat, req.SelectionRequest)
	if err != nil {
		return nil, err
	}
	app, err := sel.BuildSubmission(req.PatientInfo, DealerRef{ID: &d.ID, Name: d.Name}, req.DoctorNotes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	app.CreatedAt = now
	app.UpdatedAt = now
	span.SetAttributes(
		attribute.String("dealer.id", d.ID.String()),
		attribute.Int("order.tests", len(app.SelectedTests)),
		attribute.Int64("order.total", app.TotalPrice),
	)

	if err := s.apps.Create(ctx, app); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create application: %v: %w", err, apperr.ErrPersistence)
	}
	s.metrics.ApplicationSubmitted("create")
	s.publish(ctx, events.TypeApplicationCreated, app)
	return app, nil
}

// Resubmit replaces the selection, patient and notes of an existing
// application. Dealer, status and creation time are kept.
func (s *Service) Resubmit(ctx context.Context, id uuid.UUID, req SubmitRequest) (*Application, error) {
	ctx, span := tracing.Tracer().Start(ctx, "order.resubmit", trace.WithAttributes(attribute.String("application.id", id.String())))
	defer span.End()

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.DealerID == nil && existing.DealerName != "" {
		s.logger.Warn().Str("application_id", id.String()).Str("dealer", existing.DealerName).
			Msg("dealer no longer exists, repricing at base prices")
	}
	cat, err := s.catalogs.LoadCatalog(ctx, existing.DealerID)
	if err != nil {
		return nil, err
	}
	sel, err := selectionFromRequest(cat, req.SelectionRequest)
	if err != nil {
		return nil, err
	}
	app, err := sel.BuildSubmission(req.PatientInfo, DealerRef{ID: existing.DealerID, Name: existing.DealerName}, req.DoctorNotes)
	if err != nil {
		return nil, err
	}
	app.ID = existing.ID
	app.Status = existing.Status
	app.CreatedAt = existing.CreatedAt
	app.UpdatedAt = s.now()
	if app.PatientInfo.Photo == "" {
		app.PatientInfo.Photo = existing.PatientInfo.Photo
	}
	if app.PatientInfo.ExtraPhoto == "" {
		app.PatientInfo.ExtraPhoto = existing.PatientInfo.ExtraPhoto
	}

	if err := s.apps.Update(ctx, app); err != nil {
		span.RecordError(err)
		return nil, writeErr("update application", err)
	}
	s.metrics.ApplicationSubmitted("update")
	s.publish(ctx, events.TypeApplicationUpdated, app)
	return app, nil
}

// EditSelection restores the form state of a saved application against the
// current catalog.
func (s *Service) EditSelection(ctx context.Context, id uuid.UUID) (*Quote, error) {
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cat, err := s.catalogs.LoadCatalog(ctx, app.DealerID)
	if err != nil {
		return nil, err
	}
	return SelectionFromApplication(cat, app).Quote(), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Application, error) {
	a, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("application %s: %w", id, err)
		}
		return nil, fmt.Errorf("get application: %v: %w", err, apperr.ErrDataUnavailable)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Application, int, error) {
	if f.Status != "" {
		if err := ValidateStatus(f.Status); err != nil {
			return nil, 0, err
		}
	}
	items, total, err := s.apps.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %v: %w", err, apperr.ErrDataUnavailable)
	}
	return items, total, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Application, error) {
	if err := ValidateStatus(status); err != nil {
		return nil, err
	}
	if err := s.apps.UpdateStatus(ctx, id, status); err != nil {
		return nil, writeErr("update status", err)
	}
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeApplicationStatusChanged, app)
	return app, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return writeErr("delete application", s.apps.Delete(ctx, id))
}

// AttachPhoto uploads a patient photo and links it to the application. A
// failed upload leaves the application unchanged.
func (s *Service) AttachPhoto(ctx context.Context, id uuid.UUID, obj blobstore.Object, content io.Reader) (*Application, error) {
	if obj.Purpose != blobstore.PurposePatientPhoto && obj.Purpose != blobstore.PurposeExtraPhoto {
		return nil, fmt.Errorf("purpose must be %s or %s: %w", blobstore.PurposePatientPhoto, blobstore.PurposeExtraPhoto, apperr.ErrValidation)
	}
	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.photos.Upload(ctx, obj, content)
	if err != nil {
		s.metrics.UploadFailed(obj.Purpose)
		s.logger.Warn().Err(err).Str("application_id", id.String()).Str("purpose", obj.Purpose).
			Msg("photo upload failed, application left unchanged")
		return nil, err
	}
	if obj.Purpose == blobstore.PurposePatientPhoto {
		app.PatientInfo.Photo = stored.URL
	} else {
		app.PatientInfo.ExtraPhoto = stored.URL
	}
	app.UpdatedAt = s.now()
	if err := s.apps.Update(ctx, app); err != nil {
		return nil, writeErr("attach photo", err)
	}
	return app, nil
}

// Recent lists the newest applications for the notification feed.
func (s *Service) Recent(ctx context.Context, limit int) ([]notification.Item, error) {
	apps, _, err := s.List(ctx, ListFilter{}, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]notification.Item, len(apps))
	for i, a := range apps {
		out[i] = notification.Item{
			ID:         a.ID.String(),
			Title:      a.PatientInfo.Name,
			DealerName: a.DealerName,
			TotalPrice: a.TotalPrice,
			CreatedAt:  a.CreatedAt,
		}
	}
	return out, nil
}

// Document builds the printable form of an application.
func (s *Service) Document(ctx context.Context, id uuid.UUID) (*export.Document, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDocument(a), nil
}

func (s *Service) toDocument(a *Application) *export.Document {
	d := &export.Document{
		Number: strings.ToUpper(a.ID.String()[:8]),
		Patient: export.Patient{
			Name:        a.PatientInfo.Name,
			BirthDate:   a.PatientInfo.BirthDate,
			TCNo:        a.PatientInfo.TCNo,
			Gender:      a.PatientInfo.Gender,
			Phone:       a.PatientInfo.Phone,
			Email:       a.PatientInfo.Email,
			RequestDate: a.PatientInfo.RequestDate,
		},
		Tests:       make([]export.Line, 0, len(a.SelectedTests)),
		Total:       a.TotalPrice,
		DealerName:  a.DealerName,
		Status:      a.Status,
		DoctorNotes: a.DoctorNotes,
		CreatedAt:   a.CreatedAt,
	}
	for _, t := range a.SelectedTests {
		d.Tests = append(d.Tests, export.Line{Name: t.Name, Price: t.Price})
	}
	for _, p := range a.AppliedPackages {
		d.Packages = append(d.Packages, export.Line{Name: p.Name, Price: p.Price})
	}
	s.header.Apply(d, s.now())
	return d
}

const exportPageSize = 500

// ExportRows returns every application matching f, newest first.
func (s *Service) ExportRows(ctx context.Context, f ListFilter) ([]export.Row, error) {
	var rows []export.Row
	for offset := 0; ; offset += exportPageSize {
		apps, total, err := s.List(ctx, f, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, a := range apps {
			rows = append(rows, toRow(a))
		}
		if len(apps) == 0 || offset+len(apps) >= total {
			return rows, nil
		}
	}
}

func toRow(a *Application) export.Row {
	r := export.Row{
		ID:         a.ID.String(),
		CreatedAt:  a.CreatedAt,
		Patient:    a.PatientInfo.Name,
		TCNo:       a.PatientInfo.TCNo,
		Phone:      a.PatientInfo.Phone,
		TotalPrice: a.TotalPrice,
		TotalCost:  a.TotalCost,
		Profit:     a.Profit,
		DealerName: a.DealerName,
		Status:     a.Status,
	}
	for _, t := range a.SelectedTests {
		r.Tests = append(r.Tests, t.Name)
	}
	for _, p := range a.AppliedPackages {
		r.Packages = append(r.Packages, p.Name)
	}
	return r
}

func (s *Service) publish(ctx context.Context, eventType string, a *Application) {
	evt := events.Event{
		Type:          eventType,
		ApplicationID: a.ID.String(),
		Status:        a.Status,
		TotalPrice:    a.TotalPrice,
		TestCount:     len(a.SelectedTests),
		OccurredAt:    s.now(),
	}
	if a.DealerID != nil {
		evt.DealerID = a.DealerID.String()
	}
	s.events.Publish(ctx, evt)
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, apperr.ErrPersistence)
}
