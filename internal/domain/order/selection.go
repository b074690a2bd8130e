package order

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/platform/apperr"
)

type appliedPackage struct {
	AppliedPackage
	covers []uuid.UUID
}

// Selection is the state of one order form: the selected tests and the
// packages applied so far, each with the price it was applied at.
//
// Applying a package selects its member tests. Applying the same package
// twice adds it twice.
type Selection struct {
	cat      *catalog.Catalog
	selected map[uuid.UUID]bool
	packages []appliedPackage
}

func NewSelection(cat *catalog.Catalog) *Selection {
	return &Selection{cat: cat, selected: make(map[uuid.UUID]bool)}
}

// ToggleTest flips the selection of a test and returns its new state.
func (s *Selection) ToggleTest(id uuid.UUID) (bool, error) {
	if _, ok := s.cat.Test(id); !ok {
		return false, fmt.Errorf("test %s is not in the catalog: %w", id, apperr.ErrValidation)
	}
	if s.selected[id] {
		delete(s.selected, id)
		return false, nil
	}
	s.selected[id] = true
	return true, nil
}

// Select marks a test selected. Selecting twice is a no-op.
func (s *Selection) Select(id uuid.UUID) error {
	if _, ok := s.cat.Test(id); !ok {
		return fmt.Errorf("test %s is not in the catalog: %w", id, apperr.ErrValidation)
	}
	s.selected[id] = true
	return nil
}

func (s *Selection) IsSelected(id uuid.UUID) bool { return s.selected[id] }

// ApplyPackage selects every member test that resolves in the catalog and
// appends the package at its current effective price.
func (s *Selection) ApplyPackage(id uuid.UUID) error {
	p, ok := s.cat.Package(id)
	if !ok {
		return fmt.Errorf("package %s is not in the catalog: %w", id, apperr.ErrValidation)
	}
	for _, tid := range p.TestIDs {
		s.selected[tid] = true
	}
	s.packages = append(s.packages, appliedPackage{
		AppliedPackage: AppliedPackage{
			PackageID: p.ID,
			Name:      p.Name,
			Price:     p.EffectivePrice,
			TestIDs:   append([]uuid.UUID(nil), p.TestIDs...),
		},
		covers: p.TestIDs,
	})
	return nil
}

// RemovePackage drops the applied package at index. Its tests stay selected
// and are charged individually unless another package covers them.
func (s *Selection) RemovePackage(index int) error {
	if index < 0 || index >= len(s.packages) {
		return fmt.Errorf("no applied package at %d: %w", index, apperr.ErrValidation)
	}
	s.packages = append(s.packages[:index], s.packages[index+1:]...)
	return nil
}

// Reset clears tests and packages.
func (s *Selection) Reset() {
	s.selected = make(map[uuid.UUID]bool)
	s.packages = nil
}

// SelectedIDs lists selected tests in catalog display order.
func (s *Selection) SelectedIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.selected))
	for _, g := range s.cat.Groups {
		for _, t := range g.Tests {
			if s.selected[t.ID] {
				out = append(out, t.ID)
			}
		}
	}
	return out
}

func (s *Selection) AppliedPackages() []AppliedPackage {
	out := make([]AppliedPackage, len(s.packages))
	for i, p := range s.packages {
		out[i] = p.AppliedPackage
	}
	return out
}

func (s *Selection) covered() map[uuid.UUID]bool {
	c := make(map[uuid.UUID]bool)
	for _, p := range s.packages {
		for _, id := range p.covers {
			c[id] = true
		}
	}
	return c
}

// ComputeTotal is the sum of applied package prices plus the effective
// price of every selected test no applied package covers.
func (s *Selection) ComputeTotal() int64 {
	var total int64
	for _, p := range s.packages {
		total += p.Price
	}
	covered := s.covered()
	for id := range s.selected {
		if covered[id] {
			continue
		}
		price, _ := s.cat.EffectivePrice(id)
		total += price
	}
	return total
}

func (s *Selection) selectedTests() []SelectedTest {
	ids := s.SelectedIDs()
	out := make([]SelectedTest, 0, len(ids))
	for _, id := range ids {
		t, _ := s.cat.Test(id)
		out = append(out, SelectedTest{TestID: t.ID, Name: t.Name, Price: t.Price, CostPrice: t.CostPrice})
	}
	return out
}

// Quote prices the selection.
func (s *Selection) Quote() *Quote {
	covered := s.covered()
	q := &Quote{
		Total:    s.ComputeTotal(),
		Tests:    s.selectedTests(),
		Packages: s.AppliedPackages(),
		Covered:  make([]uuid.UUID, 0, len(covered)),
	}
	for _, id := range s.SelectedIDs() {
		if covered[id] {
			q.Covered = append(q.Covered, id)
		}
	}
	return q
}

// BuildSubmission validates the form and produces the application to store.
// It fails with an *apperr.ValidationError naming every missing field.
func (s *Selection) BuildSubmission(patient PatientInfo, dealer DealerRef, doctorNotes string) (*Application, error) {
	patient.Name = strings.TrimSpace(patient.Name)
	var missing []string
	if patient.Name == "" {
		missing = append(missing, "patientInfo.name")
	}
	if len(s.selected) == 0 {
		missing = append(missing, "selectedTests")
	}
	if err := apperr.Missing(missing...); err != nil {
		return nil, err
	}

	tests := s.selectedTests()
	var cost int64
	for _, t := range tests {
		cost += t.CostPrice
	}
	total := s.ComputeTotal()
	return &Application{
		PatientInfo:     patient,
		SelectedTests:   tests,
		AppliedPackages: s.AppliedPackages(),
		TotalPrice:      total,
		TotalCost:       cost,
		Profit:          total - cost,
		DealerID:        dealer.ID,
		DealerName:      dealer.Name,
		Status:          StatusPending,
		DoctorNotes:     strings.TrimSpace(doctorNotes),
	}, nil
}

// SelectionFromApplication rebuilds the form state of a saved application
// for editing. Packages keep the price and the coverage they were sold with,
// even if the package has since changed or been deleted. Tests no longer in
// the catalog are dropped.
func SelectionFromApplication(cat *catalog.Catalog, app *Application) *Selection {
	s := NewSelection(cat)
	for _, t := range app.SelectedTests {
		if _, ok := cat.Test(t.TestID); ok {
			s.selected[t.TestID] = true
		}
	}
	for _, ap := range app.AppliedPackages {
		entry := appliedPackage{AppliedPackage: ap, covers: ap.TestIDs}
		if len(entry.covers) == 0 {
			// Saved before coverage was recorded.
			if p, ok := cat.Package(ap.PackageID); ok {
				entry.covers = p.TestIDs
			}
		}
		s.packages = append(s.packages, entry)
	}
	return s
}

// selectionFromRequest applies packages and then tests.
func selectionFromRequest(cat *catalog.Catalog, req SelectionRequest) (*Selection, error) {
	s := NewSelection(cat)
	for _, id := range req.PackageIDs {
		if err := s.ApplyPackage(id); err != nil {
			return nil, err
		}
	}
	for _, id := range req.TestIDs {
		if err := s.Select(id); err != nil {
			return nil, err
		}
	}
	return s, nil
}
