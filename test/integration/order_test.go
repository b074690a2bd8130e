package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/domain/catalog"
	"github.com/labdesk/labdesk/internal/domain/dealer"
	"github.com/labdesk/labdesk/internal/domain/order"
	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
)

func TestApplications_SubmitAndList(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	catSvc := newCatalogService()
	dealerSvc := dealer.NewService(dealer.NewDealerRepoPG(globalPool))

	d := &dealer.Dealer{Name: "Sube Kadikoy", IsActive: true}
	if err := dealerSvc.Create(ctx, d); err != nil {
		t.Fatal(err)
	}
	g := &catalog.TestGroup{Title: "Biyokimya"}
	catSvc.CreateGroup(ctx, g)
	a := &catalog.Test{GroupID: g.ID, Name: "ALT", BasePrice: 50, CostPrice: 10}
	b := &catalog.Test{GroupID: g.ID, Name: "AST", BasePrice: 50, CostPrice: 12}
	catSvc.CreateTest(ctx, a)
	catSvc.CreateTest(ctx, b)

	apps := order.NewApplicationRepoPG(globalPool)
	svc := order.NewService(dealerSvc, catSvc, apps, blobstore.NewInMemoryBlobStore("/u"), nil, zerolog.Nop(), nil)

	app, err := svc.Submit(ctx, "sube kadikoy", order.SubmitRequest{
		SelectionRequest: order.SelectionRequest{TestIDs: []uuid.UUID{a.ID, b.ID}},
		PatientInfo:      order.PatientInfo{Name: "Mehmet Demir", Phone: "05550000000"},
	})
	if err != nil {
		t.Fatal(err)
	}

	stored, err := svc.Get(ctx, app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TotalPrice != 100 || stored.TotalCost != 22 || stored.Profit != 78 {
		t.Errorf("totals = %d/%d/%d", stored.TotalPrice, stored.TotalCost, stored.Profit)
	}
	if len(stored.SelectedTests) != 2 || stored.SelectedTests[0].Name != "ALT" {
		t.Errorf("tests = %+v", stored.SelectedTests)
	}
	if stored.DealerID == nil || *stored.DealerID != d.ID || stored.Status != order.StatusPending {
		t.Errorf("dealer/status = %v %q", stored.DealerID, stored.Status)
	}

	if _, err := svc.UpdateStatus(ctx, app.ID, order.StatusCompleted); err != nil {
		t.Fatal(err)
	}
	items, total, err := svc.List(ctx, order.ListFilter{Status: order.StatusCompleted, DealerID: &d.ID}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != app.ID {
		t.Errorf("list = %d %+v", total, items)
	}

	future := time.Now().Add(24 * time.Hour)
	_, total, _ = svc.List(ctx, order.ListFilter{From: &future}, 10, 0)
	if total != 0 {
		t.Errorf("future filter total = %d", total)
	}

	if err := svc.Delete(ctx, app.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, app.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestApplications_DealerDeleteKeepsHistory(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	dealers := dealer.NewDealerRepoPG(globalPool)
	d := &dealer.Dealer{Name: "Kapanan", IsActive: true}
	dealers.Create(ctx, d)

	apps := order.NewApplicationRepoPG(globalPool)
	now := time.Now()
	app := &order.Application{
		PatientInfo:   order.PatientInfo{Name: "x"},
		SelectedTests: []order.SelectedTest{{TestID: uuid.New(), Name: "TSH", Price: 10}},
		TotalPrice:    10,
		DealerID:      &d.ID,
		DealerName:    d.Name,
		Status:        order.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := apps.Create(ctx, app); err != nil {
		t.Fatal(err)
	}
	if err := dealers.Delete(ctx, d.ID); err != nil {
		t.Fatal(err)
	}
	got, err := apps.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DealerID != nil || got.DealerName != "Kapanan" {
		t.Errorf("dealer = %v %q", got.DealerID, got.DealerName)
	}
}
