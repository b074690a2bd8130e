package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/labdesk/labdesk/internal/domain/ordering"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/metrics"
)

// Loader builds catalog snapshots and repairs missing order values as it
// goes.
type Loader struct {
	tests    TestRepository
	groups   GroupRepository
	packages PackageRepository
	prices   DealerPriceRepository
	repair   ordering.Persister
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewLoader(tests TestRepository, groups GroupRepository, packages PackageRepository,
	prices DealerPriceRepository, repair ordering.Persister, logger zerolog.Logger, m *metrics.Metrics) *Loader {
	return &Loader{
		tests:    tests,
		groups:   groups,
		packages: packages,
		prices:   prices,
		repair:   repair,
		logger:   logger,
		metrics:  m,
	}
}

// LoadCatalog returns groups with their tests and packages in display order.
// When dealerID is set the dealer's overrides replace base prices; the caller
// resolves the dealer first.
//
// Entries without an order are placed and the placement is written back.
// Tests take their position in the group's fetch result; groups and packages
// are appended after the highest existing order. A failed write is logged
// and does not fail the load.
func (l *Loader) LoadCatalog(ctx context.Context, dealerID *uuid.UUID) (*Catalog, error) {
	var (
		groups   []*TestGroup
		tests    []*Test
		packages []*Package
		prices   []DealerPrice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		groups, err = l.groups.List(gctx)
		return wrapFetch("groups", err)
	})
	g.Go(func() (err error) {
		tests, err = l.tests.List(gctx)
		return wrapFetch("tests", err)
	})
	g.Go(func() (err error) {
		packages, err = l.packages.List(gctx)
		return wrapFetch("packages", err)
	})
	if dealerID != nil {
		g.Go(func() (err error) {
			prices, err = l.prices.ListByDealer(gctx, *dealerID)
			return wrapFetch("dealer prices", err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	override := make(map[uuid.UUID]int64, len(prices))
	for _, p := range prices {
		override[p.TestID] = p.Price
	}

	groupOrder := placeLast(groupOrders(groups))
	testsByGroup := make(map[uuid.UUID][]*Test)
	for _, t := range tests {
		testsByGroup[t.GroupID] = append(testsByGroup[t.GroupID], t)
	}

	var testRepairs []ordering.Position
	ordered := make([]OrderedGroup, 0, len(groups))
	for _, gi := range groupOrder.idx {
		grp := *groups[gi]
		if v, ok := groupOrder.assigned[gi]; ok {
			grp.Order = intPtr(v)
		}
		members := testsByGroup[grp.ID]
		placed := placeByFetch(testOrders(members))
		og := OrderedGroup{TestGroup: grp, Tests: make([]PricedTest, 0, len(members))}
		for _, ti := range placed.idx {
			t := *members[ti]
			if v, ok := placed.assigned[ti]; ok {
				t.Order = intPtr(v)
				testRepairs = append(testRepairs, ordering.Position{ID: t.ID, Order: v})
			}
			pt := PricedTest{Test: t, Price: t.BasePrice}
			if p, ok := override[t.ID]; ok {
				pt.Price = p
				pt.Overridden = true
			}
			og.Tests = append(og.Tests, pt)
		}
		ordered = append(ordered, og)
	}

	pkgOrder := placeLast(packageOrders(packages))
	pkgs := make([]Package, 0, len(packages))
	for _, pi := range pkgOrder.idx {
		p := *packages[pi]
		if v, ok := pkgOrder.assigned[pi]; ok {
			p.Order = intPtr(v)
		}
		pkgs = append(pkgs, p)
	}

	l.persistRepairs(ctx, ordering.KindTests, testRepairs)
	l.persistRepairs(ctx, ordering.KindGroups, groupOrder.positions(func(i int) uuid.UUID { return groups[i].ID }))
	l.persistRepairs(ctx, ordering.KindPackages, pkgOrder.positions(func(i int) uuid.UUID { return packages[i].ID }))

	return New(dealerID, ordered, pkgs), nil
}

func (l *Loader) persistRepairs(ctx context.Context, kind ordering.Kind, positions []ordering.Position) {
	if len(positions) == 0 || l.repair == nil {
		return
	}
	if err := l.repair.ApplyOrder(ctx, kind, positions); err != nil {
		l.logger.Warn().Err(err).Str("kind", string(kind)).Int("count", len(positions)).
			Msg("failed to persist repaired order")
		return
	}
	l.metrics.OrderRepaired(string(kind), len(positions))
	l.logger.Info().Str("kind", string(kind)).Int("count", len(positions)).Msg("repaired missing order values")
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %v: %w", what, err, apperr.ErrDataUnavailable)
}

// placement is a display permutation of fetch indices plus the order values
// assigned to entries that had none.
type placement struct {
	idx      []int
	assigned map[int]int
}

func (p placement) positions(id func(int) uuid.UUID) []ordering.Position {
	if len(p.assigned) == 0 {
		return nil
	}
	out := make([]ordering.Position, 0, len(p.assigned))
	for _, i := range p.idx {
		if v, ok := p.assigned[i]; ok {
			out = append(out, ordering.Position{ID: id(i), Order: v})
		}
	}
	return out
}

// placeByFetch gives an entry without an order its fetch index, then sorts
// stably by order.
func placeByFetch(orders []*int) placement {
	p := placement{idx: make([]int, len(orders)), assigned: make(map[int]int)}
	eff := make([]int, len(orders))
	for i, o := range orders {
		p.idx[i] = i
		if o == nil {
			p.assigned[i] = i
			eff[i] = i
		} else {
			eff[i] = *o
		}
	}
	sort.SliceStable(p.idx, func(a, b int) bool { return eff[p.idx[a]] < eff[p.idx[b]] })
	return p
}

// placeLast sorts entries with an order ascending and appends the rest in
// fetch order, numbering them from max(existing)+1.
func placeLast(orders []*int) placement {
	p := placement{assigned: make(map[int]int)}
	var withOrder, without []int
	highest := -1
	for i, o := range orders {
		if o == nil {
			without = append(without, i)
			continue
		}
		withOrder = append(withOrder, i)
		if *o > highest {
			highest = *o
		}
	}
	sort.SliceStable(withOrder, func(a, b int) bool { return *orders[withOrder[a]] < *orders[withOrder[b]] })
	for k, i := range without {
		p.assigned[i] = highest + 1 + k
	}
	p.idx = append(withOrder, without...)
	return p
}

func groupOrders(groups []*TestGroup) []*int {
	out := make([]*int, len(groups))
	for i, g := range groups {
		out[i] = g.Order
	}
	return out
}

func testOrders(tests []*Test) []*int {
	out := make([]*int, len(tests))
	for i, t := range tests {
		out[i] = t.Order
	}
	return out
}

func packageOrders(packages []*Package) []*int {
	out := make([]*int, len(packages))
	for i, p := range packages {
		out[i] = p.Order
	}
	return out
}

func intPtr(v int) *int { return &v }
