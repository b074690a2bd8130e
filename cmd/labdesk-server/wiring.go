package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/config"
	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/dealer"
	"github.com/labdesk/labdesk/internal/domain/order"
	"github.com/labdesk/labdesk/internal/domain/ordering"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/events"
	"github.com/labdesk/labdesk/internal/platform/export"
	"github.com/labdesk/labdesk/internal/platform/metrics"
	"github.com/labdesk/labdesk/internal/platform/notification"
	"github.com/labdesk/labdesk/internal/platform/reporting"
)

// newCatalogService wires the catalog repositories and a loader whose order
// repairs go through the same persister the ordering screens use.
func newCatalogService(pool *pgxpool.Pool, logger zerolog.Logger, m *metrics.Metrics) *catalog.Service {
	tests := catalog.NewTestRepoPG(pool)
	groups := catalog.NewGroupRepoPG(pool)
	packages := catalog.NewPackageRepoPG(pool)
	prices := catalog.NewDealerPriceRepoPG(pool)
	loader := catalog.NewLoader(tests, groups, packages, prices, ordering.NewPersisterPG(pool), logger, m)
	return catalog.NewService(tests, groups, packages, prices, loader)
}

// newBlobStore picks the image backend named by BLOB_DRIVER.
func newBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (blobstore.BlobStore, error) {
	switch cfg.BlobDriver {
	case "", "memory":
		return blobstore.NewInMemoryBlobStore("/api/v1/uploads"), nil
	case "s3":
		s3, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	case "imagehost":
		return blobstore.NewImageHostStore(blobstore.ImageHostConfig{
			Endpoint:         cfg.ImageHostURL,
			APIKey:           cfg.ImageHostKey,
			Timeout:          15 * time.Second,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		}, logger, m), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

// newSeenStore keeps seen markers in SQLite when NOTIFY_DB_PATH is set so
// they survive restarts.
func newSeenStore(ctx context.Context, cfg *config.Config) (notification.SeenStore, error) {
	if cfg.NotifyDBPath == "" {
		return notification.NewMemoryStore(), nil
	}
	s, err := notification.OpenSQLiteStore(ctx, cfg.NotifyDBPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type domainDeps struct {
	pool      *pgxpool.Pool
	store     blobstore.BlobStore
	publisher events.Publisher
	seen      notification.SeenStore
	labName   string
	loc       *time.Location
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// registerDomainRoutes builds the service graph and mounts the public order
// form on api and the back office on admin.
func registerDomainRoutes(api, admin *echo.Group, d domainDeps) {
	// Dealers
	dealerSvc := dealer.NewService(dealer.NewDealerRepoPG(d.pool))
	dealer.NewHandler(dealerSvc).RegisterRoutes(admin)

	// Catalog
	catalogSvc := newCatalogService(d.pool, d.logger, d.metrics)
	catalog.NewHandler(catalogSvc, d.store, d.logger, d.metrics).RegisterRoutes(admin)

	// Display ordering
	orderingSvc := ordering.NewService(catalogSvc, ordering.NewPersisterPG(d.pool), d.logger, d.metrics)
	ordering.NewHandler(orderingSvc).RegisterRoutes(admin)

	// Order form and applications
	header := export.DefaultHeader
	if d.labName != "" {
		header.LabName = d.labName
	}
	orderSvc := order.NewService(dealerSvc, catalogSvc, order.NewApplicationRepoPG(d.pool), d.store, d.publisher, d.logger, d.metrics).
		WithHeader(header)
	order.NewHandler(orderSvc, d.loc).RegisterRoutes(api, admin)

	// Public photo uploads for the order form
	blobstore.NewBlobHandler(d.store).RegisterRoutes(api)

	// Finance reports and measures
	reporting.NewHandler(d.pool, d.logger).WithLocation(d.loc).RegisterRoutes(admin)

	// Unread application counter
	tracker := notification.NewTracker(orderSvc, d.seen, 50)
	notification.NewNotificationHandler(tracker).RegisterRoutes(admin)
}
