package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Test is a single orderable lab test. A nil Order means the test has not
// been placed yet; the loader assigns one.
type Test struct {
	ID        uuid.UUID `json:"id"`
	GroupID   uuid.UUID `json:"groupId"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	BasePrice int64     `json:"basePrice"`
	CostPrice int64     `json:"costPrice"`
	Order     *int      `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TestGroup struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Order     *int      `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TestRef is the copy of a test taken when a package is authored. It is not
// refreshed when the test later changes.
type TestRef struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BasePrice int64     `json:"basePrice"`
}

// Package is a named bundle of tests sold for its own Price, or for the sum
// of its members' base prices when Price is nil.
type Package struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Tests     []TestRef `json:"tests"`
	Price     *int64    `json:"price"`
	Image     string    `json:"image"`
	Order     *int      `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DealerPrice overrides a test's base price for one dealer.
type DealerPrice struct {
	DealerID  uuid.UUID `json:"dealerId"`
	TestID    uuid.UUID `json:"testId"`
	Price     int64     `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PriceUpdate sets or clears one override. A nil or zero Price clears it.
type PriceUpdate struct {
	TestID uuid.UUID `json:"testId"`
	Price  *int64    `json:"price"`
}

// PackageInput is the authoring form of a package; member tests are given by
// id and snapshotted on save.
type PackageInput struct {
	Name    string      `json:"name"`
	TestIDs []uuid.UUID `json:"testIds"`
	Price   *int64      `json:"price"`
	Image   string      `json:"image"`
}
