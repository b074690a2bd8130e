// Package catalog loads the orderable test catalog in display order with a
// dealer's price overrides applied, and serves the back-office screens that
// maintain tests, groups, packages and dealer prices.
package catalog

import (
	"github.com/google/uuid"
)

// PricedTest is a test with the price the current dealer pays.
type PricedTest struct {
	Test
	Price      int64 `json:"price"`
	Overridden bool  `json:"overridden"`
}

type OrderedGroup struct {
	TestGroup
	Tests []PricedTest `json:"tests"`
}

// OrderedPackage carries the member tests that resolved against the catalog
// and the price the package sells for.
type OrderedPackage struct {
	Package
	TestIDs        []uuid.UUID `json:"testIds"`
	EffectivePrice int64       `json:"effectivePrice"`
}

// Catalog is an immutable snapshot built by Loader.LoadCatalog.
type Catalog struct {
	DealerID *uuid.UUID       `json:"dealerId,omitempty"`
	Groups   []OrderedGroup   `json:"groups"`
	Packages []OrderedPackage `json:"packages"`

	tests    map[uuid.UUID]*PricedTest
	byName   map[string]uuid.UUID
	packages map[uuid.UUID]*OrderedPackage
}

// New indexes groups and resolves package members. Groups and their tests
// must already be in display order.
func New(dealerID *uuid.UUID, groups []OrderedGroup, packages []Package) *Catalog {
	c := &Catalog{
		DealerID: dealerID,
		Groups:   groups,
		tests:    make(map[uuid.UUID]*PricedTest),
		byName:   make(map[string]uuid.UUID),
		packages: make(map[uuid.UUID]*OrderedPackage),
	}
	for gi := range c.Groups {
		for ti := range c.Groups[gi].Tests {
			t := &c.Groups[gi].Tests[ti]
			c.tests[t.ID] = t
			if _, dup := c.byName[t.Name]; !dup {
				c.byName[t.Name] = t.ID
			}
		}
	}
	c.Packages = make([]OrderedPackage, len(packages))
	for i, p := range packages {
		op := OrderedPackage{Package: p, TestIDs: []uuid.UUID{}}
		seen := make(map[uuid.UUID]bool)
		var sum int64
		for _, ref := range p.Tests {
			id, ok := c.ResolveRef(ref)
			if !ok {
				sum += ref.BasePrice
				continue
			}
			sum += c.tests[id].BasePrice
			if !seen[id] {
				seen[id] = true
				op.TestIDs = append(op.TestIDs, id)
			}
		}
		op.EffectivePrice = sum
		if p.Price != nil {
			op.EffectivePrice = *p.Price
		}
		c.Packages[i] = op
	}
	for i := range c.Packages {
		c.packages[c.Packages[i].ID] = &c.Packages[i]
	}
	return c
}

// Test returns the catalog entry for id.
func (c *Catalog) Test(id uuid.UUID) (*PricedTest, bool) {
	t, ok := c.tests[id]
	return t, ok
}

// Package returns the catalog entry for id.
func (c *Catalog) Package(id uuid.UUID) (*OrderedPackage, bool) {
	p, ok := c.packages[id]
	return p, ok
}

// EffectivePrice is the dealer override for the test if one exists, else its
// base price.
func (c *Catalog) EffectivePrice(testID uuid.UUID) (int64, bool) {
	t, ok := c.tests[testID]
	if !ok {
		return 0, false
	}
	return t.Price, true
}

// ResolveRef finds the catalog test a package member refers to, first by id
// and then by exact name.
func (c *Catalog) ResolveRef(ref TestRef) (uuid.UUID, bool) {
	if ref.ID != uuid.Nil {
		if _, ok := c.tests[ref.ID]; ok {
			return ref.ID, true
		}
	}
	id, ok := c.byName[ref.Name]
	return id, ok
}

// TestCount is the number of tests in display.
func (c *Catalog) TestCount() int { return len(c.tests) }

// PublicTest is what the order form shows: no cost data.
type PublicTest struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price int64     `json:"price"`
}

type PublicGroup struct {
	ID    uuid.UUID    `json:"id"`
	Title string       `json:"title"`
	Tests []PublicTest `json:"tests"`
}

type PublicPackage struct {
	ID      uuid.UUID   `json:"id"`
	Name    string      `json:"name"`
	Image   string      `json:"image,omitempty"`
	Price   int64       `json:"price"`
	TestIDs []uuid.UUID `json:"testIds"`
}

type PublicCatalog struct {
	Groups   []PublicGroup   `json:"groups"`
	Packages []PublicPackage `json:"packages"`
}

// Public strips cost prices and authoring data for the order form.
func (c *Catalog) Public() PublicCatalog {
	out := PublicCatalog{
		Groups:   make([]PublicGroup, 0, len(c.Groups)),
		Packages: make([]PublicPackage, 0, len(c.Packages)),
	}
	for _, g := range c.Groups {
		pg := PublicGroup{ID: g.ID, Title: g.Title, Tests: make([]PublicTest, 0, len(g.Tests))}
		for _, t := range g.Tests {
			pg.Tests = append(pg.Tests, PublicTest{ID: t.ID, Name: t.Name, Price: t.Price})
		}
		out.Groups = append(out.Groups, pg)
	}
	for _, p := range c.Packages {
		out.Packages = append(out.Packages, PublicPackage{
			ID: p.ID, Name: p.Name, Image: p.Image, Price: p.EffectivePrice, TestIDs: p.TestIDs,
		})
	}
	return out
}
