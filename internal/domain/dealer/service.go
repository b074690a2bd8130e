package dealer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

type Service struct {
	dealers DealerRepository
}

func NewService(dealers DealerRepository) *Service {
	return &Service{dealers: dealers}
}

func (s *Service) Create(ctx context.Context, d *Dealer) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Missing("name")
	}
	if err := s.dealers.Create(ctx, d); err != nil {
		return fmt.Errorf("create dealer: %v: %w", err, apperr.ErrPersistence)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dealer, error) {
	d, err := s.dealers.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get dealer", err)
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, d *Dealer) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Missing("name")
	}
	if err := s.dealers.Update(ctx, d); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("dealer %s: %w", d.ID, err)
		}
		return fmt.Errorf("update dealer: %v: %w", err, apperr.ErrPersistence)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.dealers.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("dealer %s: %w", id, err)
		}
		return fmt.Errorf("delete dealer: %v: %w", err, apperr.ErrPersistence)
	}
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Dealer, error) {
	items, err := s.dealers.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list dealers: %v: %w", err, apperr.ErrDataUnavailable)
	}
	return items, nil
}

// ResolveActiveByName finds the active dealer whose name matches
// case-insensitively. Inactive and unknown dealers yield ErrDealerNotFound.
func (s *Service) ResolveActiveByName(ctx context.Context, name string) (*Dealer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrDealerNotFound
	}
	d, err := s.dealers.FindActiveByName(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("dealer %q: %w", name, apperr.ErrDealerNotFound)
		}
		return nil, fmt.Errorf("resolve dealer: %v: %w", err, apperr.ErrDataUnavailable)
	}
	return d, nil
}

// Resolve accepts either a dealer id or a dealer name, as used in order
// form links.
func (s *Service) Resolve(ctx context.Context, key string) (*Dealer, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return s.ResolveActiveByName(ctx, key)
	}
	d, err := s.dealers.GetByID(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, fmt.Errorf("dealer %s: %w", id, apperr.ErrDealerNotFound)
	case err != nil:
		return nil, fmt.Errorf("resolve dealer: %v: %w", err, apperr.ErrDataUnavailable)
	case !d.IsActive:
		return nil, fmt.Errorf("dealer %s is inactive: %w", id, apperr.ErrDealerNotFound)
	}
	return d, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, apperr.ErrDataUnavailable)
}
