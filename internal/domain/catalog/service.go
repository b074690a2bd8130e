package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/domain/ordering"
	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// Service maintains the catalog from the back office.
type Service struct {
	tests    TestRepository
	groups   GroupRepository
	packages PackageRepository
	prices   DealerPriceRepository
	loader   *Loader
}

func NewService(tests TestRepository, groups GroupRepository, packages PackageRepository,
	prices DealerPriceRepository, loader *Loader) *Service {
	return &Service{
		tests:    tests,
		groups:   groups,
		packages: packages,
		prices:   prices,
		loader:   loader,
	}
}

// LoadCatalog loads the catalog as the back office sees it, optionally priced
// for a dealer.
func (s *Service) LoadCatalog(ctx context.Context, dealerID *uuid.UUID) (*Catalog, error) {
	return s.loader.LoadCatalog(ctx, dealerID)
}

// -- Groups --

// CreateGroup appends the group after the existing ones.
func (s *Service) CreateGroup(ctx context.Context, g *TestGroup) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return apperr.Missing("title")
	}
	n, err := s.groups.Count(ctx)
	if err != nil {
		return readErr("count groups", err)
	}
	g.Order = intPtr(n)
	return writeErr("create group", s.groups.Create(ctx, g))
}

func (s *Service) GetGroup(ctx context.Context, id uuid.UUID) (*TestGroup, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		return nil, readErr("get group", err)
	}
	return g, nil
}

func (s *Service) UpdateGroup(ctx context.Context, g *TestGroup) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return apperr.Missing("title")
	}
	return writeErr("update group", s.groups.Update(ctx, g))
}

// DeleteGroup refuses to delete a group that still has tests.
func (s *Service) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	n, err := s.tests.CountByGroup(ctx, id)
	if err != nil {
		return readErr("count tests", err)
	}
	if n > 0 {
		return fmt.Errorf("group still has %d tests: %w", n, apperr.ErrValidation)
	}
	return writeErr("delete group", s.groups.Delete(ctx, id))
}

// -- Tests --

// CreateTest appends the test to the end of its group. An empty category
// takes the group title.
func (s *Service) CreateTest(ctx context.Context, t *Test) error {
	if err := s.validateTest(ctx, t); err != nil {
		return err
	}
	n, err := s.tests.CountByGroup(ctx, t.GroupID)
	if err != nil {
		return readErr("count tests", err)
	}
	t.Order = intPtr(n)
	return writeErr("create test", s.tests.Create(ctx, t))
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, readErr("get test", err)
	}
	return t, nil
}

// UpdateTest saves t. Moving a test to another group places it last there.
func (s *Service) UpdateTest(ctx context.Context, t *Test) error {
	current, err := s.tests.GetByID(ctx, t.ID)
	if err != nil {
		return readErr("get test", err)
	}
	if err := s.validateTest(ctx, t); err != nil {
		return err
	}
	if current.GroupID != t.GroupID {
		n, err := s.tests.CountByGroup(ctx, t.GroupID)
		if err != nil {
			return readErr("count tests", err)
		}
		t.Order = intPtr(n)
	} else {
		t.Order = current.Order
	}
	return writeErr("update test", s.tests.Update(ctx, t))
}

func (s *Service) DeleteTest(ctx context.Context, id uuid.UUID) error {
	return writeErr("delete test", s.tests.Delete(ctx, id))
}

func (s *Service) validateTest(ctx context.Context, t *Test) error {
	t.Name = strings.TrimSpace(t.Name)
	var missing []string
	if t.Name == "" {
		missing = append(missing, "name")
	}
	if t.GroupID == uuid.Nil {
		missing = append(missing, "groupId")
	}
	if err := apperr.Missing(missing...); err != nil {
		return err
	}
	if t.BasePrice < 0 || t.CostPrice < 0 {
		return fmt.Errorf("prices must not be negative: %w", apperr.ErrValidation)
	}
	g, err := s.groups.GetByID(ctx, t.GroupID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Missing("groupId")
	}
	if err != nil {
		return readErr("get group", err)
	}
	if strings.TrimSpace(t.Category) == "" {
		t.Category = g.Title
	}
	return nil
}

// -- Packages --

// CreatePackage snapshots the member tests and appends the package after the
// existing ones.
func (s *Service) CreatePackage(ctx context.Context, in PackageInput) (*Package, error) {
	p := &Package{}
	if err := s.fillPackage(ctx, p, in); err != nil {
		return nil, err
	}
	n, err := s.packages.Count(ctx)
	if err != nil {
		return nil, readErr("count packages", err)
	}
	p.Order = intPtr(n)
	if err := s.packages.Create(ctx, p); err != nil {
		return nil, writeErr("create package", err)
	}
	return p, nil
}

func (s *Service) GetPackage(ctx context.Context, id uuid.UUID) (*Package, error) {
	p, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, readErr("get package", err)
	}
	return p, nil
}

// UpdatePackage re-snapshots the member tests from their current values.
func (s *Service) UpdatePackage(ctx context.Context, id uuid.UUID, in PackageInput) (*Package, error) {
	p, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, readErr("get package", err)
	}
	if err := s.fillPackage(ctx, p, in); err != nil {
		return nil, err
	}
	if err := s.packages.Update(ctx, p); err != nil {
		return nil, writeErr("update package", err)
	}
	return p, nil
}

func (s *Service) DeletePackage(ctx context.Context, id uuid.UUID) error {
	return writeErr("delete package", s.packages.Delete(ctx, id))
}

func (s *Service) SetPackageImage(ctx context.Context, id uuid.UUID, url string) error {
	return writeErr("set package image", s.packages.SetImage(ctx, id, url))
}

func (s *Service) fillPackage(ctx context.Context, p *Package, in PackageInput) error {
	in.Name = strings.TrimSpace(in.Name)
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if len(in.TestIDs) == 0 {
		missing = append(missing, "testIds")
	}
	if err := apperr.Missing(missing...); err != nil {
		return err
	}
	if in.Price != nil && *in.Price < 0 {
		return fmt.Errorf("price must not be negative: %w", apperr.ErrValidation)
	}
	tests, err := s.tests.ListByIDs(ctx, in.TestIDs)
	if err != nil {
		return readErr("get package tests", err)
	}
	byID := make(map[uuid.UUID]*Test, len(tests))
	for _, t := range tests {
		byID[t.ID] = t
	}
	refs := make([]TestRef, 0, len(in.TestIDs))
	seen := make(map[uuid.UUID]bool)
	for _, id := range in.TestIDs {
		t, ok := byID[id]
		if !ok {
			return fmt.Errorf("test %s does not exist: %w", id, apperr.ErrValidation)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, TestRef{ID: t.ID, Name: t.Name, BasePrice: t.BasePrice})
	}
	p.Name = in.Name
	p.Tests = refs
	p.Price = in.Price
	if in.Image != "" {
		p.Image = in.Image
	}
	return nil
}

// -- Dealer prices --

func (s *Service) DealerPrices(ctx context.Context, dealerID uuid.UUID) ([]DealerPrice, error) {
	prices, err := s.prices.ListByDealer(ctx, dealerID)
	if err != nil {
		return nil, readErr("list dealer prices", err)
	}
	return prices, nil
}

// SetDealerPrices applies updates in one transaction. A nil or zero price
// removes the override so the base price applies again.
func (s *Service) SetDealerPrices(ctx context.Context, dealerID uuid.UUID, updates []PriceUpdate) error {
	if dealerID == uuid.Nil {
		return apperr.Missing("dealerId")
	}
	var set []DealerPrice
	var remove []uuid.UUID
	for _, u := range updates {
		if u.TestID == uuid.Nil {
			return apperr.Missing("prices.testId")
		}
		switch {
		case u.Price == nil || *u.Price == 0:
			remove = append(remove, u.TestID)
		case *u.Price < 0:
			return fmt.Errorf("price for test %s must not be negative: %w", u.TestID, apperr.ErrValidation)
		default:
			set = append(set, DealerPrice{DealerID: dealerID, TestID: u.TestID, Price: *u.Price})
		}
	}
	return writeErr("apply dealer prices", s.prices.Apply(ctx, dealerID, set, remove))
}

// -- Ordering --

// ListOrderItems returns the current display order of one kind. It loads
// through the loader so entries without an order are placed first.
func (s *Service) ListOrderItems(ctx context.Context, kind ordering.Kind, groupID *uuid.UUID) ([]ordering.Item, error) {
	cat, err := s.loader.LoadCatalog(ctx, nil)
	if err != nil {
		return nil, err
	}
	var items []ordering.Item
	switch kind {
	case ordering.KindGroups:
		for _, g := range cat.Groups {
			items = append(items, ordering.Item{ID: g.ID, Label: g.Title, Order: *g.Order})
		}
	case ordering.KindPackages:
		for _, p := range cat.Packages {
			items = append(items, ordering.Item{ID: p.ID, Label: p.Name, Order: *p.Order})
		}
	case ordering.KindTests:
		if groupID == nil {
			return nil, apperr.Missing("groupId")
		}
		for _, g := range cat.Groups {
			if g.ID != *groupID {
				continue
			}
			items = []ordering.Item{}
			for _, t := range g.Tests {
				items = append(items, ordering.Item{ID: t.ID, Label: t.Name, Order: *t.Order})
			}
		}
		if items == nil {
			return nil, fmt.Errorf("group %s: %w", groupID, apperr.ErrNotFound)
		}
	default:
		return nil, fmt.Errorf("unknown ordering kind %q: %w", kind, apperr.ErrValidation)
	}
	if items == nil {
		items = []ordering.Item{}
	}
	return items, nil
}

func readErr(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %v: %w", op, err, apperr.ErrDataUnavailable)
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
