package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusCompleted: true,
	StatusCancelled: true,
}

func ValidateStatus(s string) error {
	if !validStatuses[s] {
		return fmt.Errorf("status must be pending, completed or cancelled: %w", apperr.ErrValidation)
	}
	return nil
}

// PatientInfo is captured on the order form. Only Name is required.
type PatientInfo struct {
	Name        string `json:"name"`
	BirthDate   string `json:"birthDate"`
	RequestDate string `json:"requestDate"`
	TCNo        string `json:"tcNo"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Photo       string `json:"photo,omitempty"`
	ExtraPhoto  string `json:"extraPhoto,omitempty"`
}

// SelectedTest records the price and cost of a test at submission time.
type SelectedTest struct {
	TestID    uuid.UUID `json:"testId"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	CostPrice int64     `json:"costPrice"`
}

// AppliedPackage records a package, the price it was sold for and the tests
// it covered at that time.
type AppliedPackage struct {
	PackageID uuid.UUID   `json:"packageId"`
	Name      string      `json:"name"`
	Price     int64       `json:"price"`
	TestIDs   []uuid.UUID `json:"testIds"`
}

// Application is a submitted test order. TotalCost is the sum of the
// selected tests' cost prices and Profit is TotalPrice minus TotalCost.
type Application struct {
	ID              uuid.UUID        `json:"id"`
	PatientInfo     PatientInfo      `json:"patientInfo"`
	SelectedTests   []SelectedTest   `json:"selectedTests"`
	AppliedPackages []AppliedPackage `json:"appliedPackages"`
	TotalPrice      int64            `json:"totalPrice"`
	TotalCost       int64            `json:"totalCost"`
	Profit          int64            `json:"profit"`
	DealerID        *uuid.UUID       `json:"dealerId"`
	DealerName      string           `json:"dealerName"`
	Status          string           `json:"status"`
	DoctorNotes     string           `json:"doctorNotes"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// DealerRef names the dealer an application is attributed to. A nil ID means
// the lab's own order form.
type DealerRef struct {
	ID   *uuid.UUID
	Name string
}

// ListFilter narrows application listings. Zero values match everything.
type ListFilter struct {
	Status   string
	DealerID *uuid.UUID
	From     *time.Time
	To       *time.Time
}

// SelectionRequest is a client's selection, by stable id.
type SelectionRequest struct {
	TestIDs    []uuid.UUID `json:"testIds"`
	PackageIDs []uuid.UUID `json:"packageIds"`
}

type SubmitRequest struct {
	SelectionRequest
	PatientInfo PatientInfo `json:"patientInfo"`
	DoctorNotes string      `json:"doctorNotes"`
}

// Quote is the priced view of a selection.
type Quote struct {
	Total    int64            `json:"total"`
	Tests    []SelectedTest   `json:"tests"`
	Packages []AppliedPackage `json:"packages"`
	Covered  []uuid.UUID      `json:"covered"`
}
