package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/domain/ordering"
	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// -- Mock Repositories --
// Slices keep insertion order so List matches the pg fetch order.

type mockTestRepo struct {
	items []*Test
	err   error
}

func (m *mockTestRepo) Create(_ context.Context, t *Test) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.items = append(m.items, t)
	return nil
}

func (m *mockTestRepo) GetByID(_ context.Context, id uuid.UUID) (*Test, error) {
	for _, t := range m.items {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockTestRepo) Update(_ context.Context, t *Test) error {
	for i, cur := range m.items {
		if cur.ID == t.ID {
			m.items[i] = t
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockTestRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, t := range m.items {
		if t.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockTestRepo) List(context.Context) ([]*Test, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*Test, len(m.items))
	for i, t := range m.items {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

func (m *mockTestRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*Test, error) {
	want := make(map[uuid.UUID]bool)
	for _, id := range ids {
		want[id] = true
	}
	var out []*Test
	for _, t := range m.items {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTestRepo) CountByGroup(_ context.Context, groupID uuid.UUID) (int, error) {
	n := 0
	for _, t := range m.items {
		if t.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

type mockGroupRepo struct {
	items []*TestGroup
	err   error
}

func (m *mockGroupRepo) Create(_ context.Context, g *TestGroup) error {
	g.ID = uuid.New()
	m.items = append(m.items, g)
	return nil
}

func (m *mockGroupRepo) GetByID(_ context.Context, id uuid.UUID) (*TestGroup, error) {
	for _, g := range m.items {
		if g.ID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockGroupRepo) Update(_ context.Context, g *TestGroup) error {
	for i, cur := range m.items {
		if cur.ID == g.ID {
			m.items[i] = g
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockGroupRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, g := range m.items {
		if g.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockGroupRepo) List(context.Context) ([]*TestGroup, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*TestGroup, len(m.items))
	for i, g := range m.items {
		cp := *g
		out[i] = &cp
	}
	return out, nil
}

func (m *mockGroupRepo) Count(context.Context) (int, error) { return len(m.items), nil }

type mockPackageRepo struct {
	items []*Package
}

func (m *mockPackageRepo) Create(_ context.Context, p *Package) error {
	p.ID = uuid.New()
	m.items = append(m.items, p)
	return nil
}

func (m *mockPackageRepo) GetByID(_ context.Context, id uuid.UUID) (*Package, error) {
	for _, p := range m.items {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockPackageRepo) Update(_ context.Context, p *Package) error {
	for i, cur := range m.items {
		if cur.ID == p.ID {
			m.items[i] = p
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockPackageRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, p := range m.items {
		if p.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockPackageRepo) List(context.Context) ([]*Package, error) {
	out := make([]*Package, len(m.items))
	for i, p := range m.items {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (m *mockPackageRepo) Count(context.Context) (int, error) { return len(m.items), nil }

func (m *mockPackageRepo) SetImage(_ context.Context, id uuid.UUID, url string) error {
	for _, p := range m.items {
		if p.ID == id {
			p.Image = url
			return nil
		}
	}
	return apperr.ErrNotFound
}

type mockPriceRepo struct {
	prices map[uuid.UUID]map[uuid.UUID]int64
	err    error
}

func newMockPriceRepo() *mockPriceRepo {
	return &mockPriceRepo{prices: make(map[uuid.UUID]map[uuid.UUID]int64)}
}

func (m *mockPriceRepo) ListByDealer(_ context.Context, dealerID uuid.UUID) ([]DealerPrice, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []DealerPrice
	for testID, price := range m.prices[dealerID] {
		out = append(out, DealerPrice{DealerID: dealerID, TestID: testID, Price: price})
	}
	return out, nil
}

func (m *mockPriceRepo) Apply(_ context.Context, dealerID uuid.UUID, set []DealerPrice, remove []uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	if m.prices[dealerID] == nil {
		m.prices[dealerID] = make(map[uuid.UUID]int64)
	}
	for _, p := range set {
		m.prices[dealerID][p.TestID] = p.Price
	}
	for _, id := range remove {
		delete(m.prices[dealerID], id)
	}
	return nil
}

// mockOrderWriter applies repairs to the mock repos so repeated loads see
// the persisted values.
type mockOrderWriter struct {
	tests    *mockTestRepo
	groups   *mockGroupRepo
	packages *mockPackageRepo
	calls    map[ordering.Kind]int
	err      error
}

func (w *mockOrderWriter) ApplyOrder(_ context.Context, kind ordering.Kind, positions []ordering.Position) error {
	w.calls[kind]++
	if w.err != nil {
		return w.err
	}
	for _, pos := range positions {
		v := pos.Order
		switch kind {
		case ordering.KindTests:
			for _, t := range w.tests.items {
				if t.ID == pos.ID {
					t.Order = &v
				}
			}
		case ordering.KindGroups:
			for _, g := range w.groups.items {
				if g.ID == pos.ID {
					g.Order = &v
				}
			}
		case ordering.KindPackages:
			for _, p := range w.packages.items {
				if p.ID == pos.ID {
					p.Order = &v
				}
			}
		}
	}
	return nil
}

type fixture struct {
	tests    *mockTestRepo
	groups   *mockGroupRepo
	packages *mockPackageRepo
	prices   *mockPriceRepo
	writer   *mockOrderWriter
	loader   *Loader
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		tests:    &mockTestRepo{},
		groups:   &mockGroupRepo{},
		packages: &mockPackageRepo{},
		prices:   newMockPriceRepo(),
	}
	f.writer = &mockOrderWriter{tests: f.tests, groups: f.groups, packages: f.packages, calls: make(map[ordering.Kind]int)}
	f.loader = NewLoader(f.tests, f.groups, f.packages, f.prices, f.writer, zerolog.Nop(), nil)
	f.svc = NewService(f.tests, f.groups, f.packages, f.prices, f.loader)
	return f
}

func (f *fixture) group(t *testing.T, title string) *TestGroup {
	t.Helper()
	g := &TestGroup{Title: title}
	if err := f.svc.CreateGroup(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	return g
}

func (f *fixture) test(t *testing.T, g *TestGroup, name string, base, cost int64) *Test {
	t.Helper()
	tt := &Test{GroupID: g.ID, Name: name, BasePrice: base, CostPrice: cost}
	if err := f.svc.CreateTest(context.Background(), tt); err != nil {
		t.Fatal(err)
	}
	return tt
}

func TestCreateGroup_AppendsOrder(t *testing.T) {
	f := newFixture()
	a := f.group(t, "A")
	b := f.group(t, "B")
	if *a.Order != 0 || *b.Order != 1 {
		t.Errorf("orders = %d, %d", *a.Order, *b.Order)
	}
	if err := f.svc.CreateGroup(context.Background(), &TestGroup{Title: " "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank title err = %v", err)
	}
}

func TestCreateTest(t *testing.T) {
	f := newFixture()
	g := f.group(t, "HEMATOLOJİ")
	first := f.test(t, g, "Hemogram", 400, 120)
	second := f.test(t, g, "APTT", 300, 0)
	if *first.Order != 0 || *second.Order != 1 {
		t.Errorf("orders = %d, %d", *first.Order, *second.Order)
	}
	if first.Category != "HEMATOLOJİ" {
		t.Errorf("category = %q, want group title", first.Category)
	}

	tests := []struct {
		name string
		in   Test
	}{
		{"missing name", Test{GroupID: g.ID, BasePrice: 1}},
		{"missing group", Test{Name: "x", BasePrice: 1}},
		{"unknown group", Test{Name: "x", GroupID: uuid.New()}},
		{"negative price", Test{Name: "x", GroupID: g.ID, BasePrice: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			if err := f.svc.CreateTest(context.Background(), &in); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdateTest_MoveGroupPlacesLast(t *testing.T) {
	f := newFixture()
	a := f.group(t, "A")
	b := f.group(t, "B")
	f.test(t, b, "b1", 1, 0)
	x := f.test(t, a, "x", 1, 0)

	upd := &Test{ID: x.ID, GroupID: b.ID, Name: "x", BasePrice: 2}
	if err := f.svc.UpdateTest(context.Background(), upd); err != nil {
		t.Fatal(err)
	}
	if upd.Order == nil || *upd.Order != 1 {
		t.Errorf("order = %v, want 1", upd.Order)
	}
}

func TestDeleteGroup_RefusesNonEmpty(t *testing.T) {
	f := newFixture()
	g := f.group(t, "A")
	tt := f.test(t, g, "x", 1, 0)
	if err := f.svc.DeleteGroup(context.Background(), g.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if err := f.svc.DeleteTest(context.Background(), tt.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteGroup(context.Background(), g.ID); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePackage_SnapshotsTests(t *testing.T) {
	f := newFixture()
	g := f.group(t, "A")
	x := f.test(t, g, "x", 100, 0)
	y := f.test(t, g, "y", 50, 0)

	p, err := f.svc.CreatePackage(context.Background(), PackageInput{Name: " Panel ", TestIDs: []uuid.UUID{x.ID, y.ID, x.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Panel" || len(p.Tests) != 2 || *p.Order != 0 {
		t.Fatalf("got %+v", p)
	}
	if p.Tests[0] != (TestRef{ID: x.ID, Name: "x", BasePrice: 100}) {
		t.Errorf("ref = %+v", p.Tests[0])
	}

	// Later price changes do not touch the snapshot.
	x.BasePrice = 999
	stored, _ := f.svc.GetPackage(context.Background(), p.ID)
	if stored.Tests[0].BasePrice != 100 {
		t.Errorf("snapshot changed to %d", stored.Tests[0].BasePrice)
	}

	bad := []PackageInput{
		{TestIDs: []uuid.UUID{x.ID}},
		{Name: "n"},
		{Name: "n", TestIDs: []uuid.UUID{uuid.New()}},
		{Name: "n", TestIDs: []uuid.UUID{x.ID}, Price: int64Ptr(-5)},
	}
	for _, in := range bad {
		if _, err := f.svc.CreatePackage(context.Background(), in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("CreatePackage(%+v) err = %v", in, err)
		}
	}
}

func TestSetDealerPrices(t *testing.T) {
	f := newFixture()
	g := f.group(t, "A")
	x := f.test(t, g, "x", 100, 0)
	y := f.test(t, g, "y", 50, 0)
	dealer := uuid.New()

	err := f.svc.SetDealerPrices(context.Background(), dealer, []PriceUpdate{
		{TestID: x.ID, Price: int64Ptr(80)},
		{TestID: y.ID, Price: int64Ptr(40)},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = f.svc.SetDealerPrices(context.Background(), dealer, []PriceUpdate{
		{TestID: x.ID, Price: int64Ptr(0)},
		{TestID: y.ID, Price: int64Ptr(45)},
	})
	if err != nil {
		t.Fatal(err)
	}
	prices, _ := f.svc.DealerPrices(context.Background(), dealer)
	if len(prices) != 1 || prices[0].TestID != y.ID || prices[0].Price != 45 {
		t.Errorf("prices = %+v", prices)
	}

	if err := f.svc.SetDealerPrices(context.Background(), dealer, []PriceUpdate{{TestID: x.ID, Price: int64Ptr(-1)}}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("negative err = %v", err)
	}
	if err := f.svc.SetDealerPrices(context.Background(), uuid.Nil, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("nil dealer err = %v", err)
	}
	f.prices.err = errors.New("conn closed")
	if err := f.svc.SetDealerPrices(context.Background(), dealer, []PriceUpdate{{TestID: x.ID, Price: int64Ptr(1)}}); !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("store failure err = %v", err)
	}
}

func TestListOrderItems(t *testing.T) {
	f := newFixture()
	a := f.group(t, "A")
	b := f.group(t, "B")
	f.test(t, b, "b1", 1, 0)
	f.test(t, b, "b2", 1, 0)

	groups, err := f.svc.ListOrderItems(context.Background(), ordering.KindGroups, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || groups[0].ID != a.ID || groups[1].Label != "B" {
		t.Errorf("groups = %+v", groups)
	}
	tests, err := f.svc.ListOrderItems(context.Background(), ordering.KindTests, &b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tests) != 2 || tests[1].Label != "b2" || tests[1].Order != 1 {
		t.Errorf("tests = %+v", tests)
	}
	empty, err := f.svc.ListOrderItems(context.Background(), ordering.KindTests, &a.ID)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty group = %v, %v", empty, err)
	}
	missing := uuid.New()
	if _, err := f.svc.ListOrderItems(context.Background(), ordering.KindTests, &missing); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown group err = %v", err)
	}
	pkgs, err := f.svc.ListOrderItems(context.Background(), ordering.KindPackages, nil)
	if err != nil || len(pkgs) != 0 || pkgs == nil {
		t.Errorf("packages = %v, %v", pkgs, err)
	}
}

func TestSeed(t *testing.T) {
	f := newFixture()
	res, err := Seed(context.Background(), f.svc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Groups != len(initialGroups) || res.Packages != 2 || res.Tests != len(f.tests.items) {
		t.Errorf("result = %+v", res)
	}
	cat, err := f.loader.LoadCatalog(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cat.Groups[0].Title != "BİYOKİMYA" || cat.Groups[0].Tests[0].Name != "Açlık Kan Şekeri" {
		t.Errorf("first entries = %q / %q", cat.Groups[0].Title, cat.Groups[0].Tests[0].Name)
	}
	for _, p := range cat.Packages {
		if len(p.TestIDs) != len(p.Tests) {
			t.Errorf("package %q resolved %d of %d tests", p.Name, len(p.TestIDs), len(p.Tests))
		}
	}
	if f.writer.calls[ordering.KindTests] != 0 {
		t.Error("seeded catalog should not need repair")
	}

	again, err := Seed(context.Background(), f.svc)
	if err != nil || again.Groups != 0 {
		t.Errorf("second seed = %+v, %v", again, err)
	}
}

func int64Ptr(v int64) *int64 { return &v }
