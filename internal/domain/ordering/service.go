package ordering

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/metrics"
	"github.com/labdesk/labdesk/internal/platform/tracing"
)

// Lister returns the persisted list of one kind in display order. Tests are
// listed per group, so groupID is required for KindTests and ignored
// otherwise.
type Lister interface {
	ListOrderItems(ctx context.Context, kind Kind, groupID *uuid.UUID) ([]Item, error)
}

// Service applies one edit to the current persisted list and saves it.
// Concurrent editors are last-writer-wins.
type Service struct {
	lister    Lister
	persister Persister
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewService(lister Lister, persister Persister, logger zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{lister: lister, persister: persister, logger: logger, metrics: m}
}

func (s *Service) List(ctx context.Context, kind Kind, groupID *uuid.UUID) ([]Item, error) {
	if kind == KindTests && groupID == nil {
		return nil, apperr.Missing("groupId")
	}
	items, err := s.lister.ListOrderItems(ctx, kind, groupID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return items, nil
}

func (s *Service) Move(ctx context.Context, kind Kind, groupID *uuid.UUID, id uuid.UUID, dir Direction) ([]Item, error) {
	return s.apply(ctx, "move", kind, groupID, func(sess *Session) error {
		return sess.Move(id, dir)
	})
}

func (s *Service) Reorder(ctx context.Context, kind Kind, groupID *uuid.UUID, from, to int) ([]Item, error) {
	return s.apply(ctx, "reorder", kind, groupID, func(sess *Session) error {
		return sess.Reorder(from, to)
	})
}

// SetOrder replaces the order with ids, which must name every item once.
func (s *Service) SetOrder(ctx context.Context, kind Kind, groupID *uuid.UUID, ids []uuid.UUID) ([]Item, error) {
	return s.apply(ctx, "set", kind, groupID, func(sess *Session) error {
		return sess.Arrange(ids)
	})
}

func (s *Service) apply(ctx context.Context, op string, kind Kind, groupID *uuid.UUID, edit func(*Session) error) ([]Item, error) {
	ctx, span := tracing.Tracer().Start(ctx, "ordering."+op)
	defer span.End()
	span.SetAttributes(attribute.String("ordering.kind", string(kind)))

	items, err := s.List(ctx, kind, groupID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sess := NewSession(kind, items, s.persister)
	if err := edit(sess); err != nil {
		return nil, err
	}
	err = sess.Save(ctx)
	s.metrics.OrderSaved(string(kind), err)
	if err != nil {
		span.RecordError(err)
		s.logger.Error().Err(err).Str("kind", string(kind)).Str("op", op).Msg("order save failed")
		return sess.Items(), err
	}
	return sess.Items(), nil
}
