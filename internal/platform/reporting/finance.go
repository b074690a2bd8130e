package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Period is the look-back window of the finance report.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Since returns the start of the window ending at now.
func (p Period) Since(now time.Time) (time.Time, error) {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth, "":
		return now.AddDate(0, -1, 0), nil
	case PeriodYear:
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("unknown period %q", p)
}

// TestLine is one priced test on an application.
type TestLine struct {
	TestID    string `json:"testId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	CostPrice int64  `json:"costPrice"`
}

// FinanceRecord is the slice of an application the finance report reads.
// Income is what the patient pays, expense what the lab pays for the tests.
type FinanceRecord struct {
	ApplicationID uuid.UUID
	DealerID      *uuid.UUID
	DealerName    string
	CreatedAt     time.Time
	TotalPrice    int64
	TotalCost     int64
	Tests         []TestLine
}

type Bucket struct {
	Key     string `json:"key"`
	Name    string `json:"name,omitempty"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Profit  int64  `json:"profit"`
}

type FinanceSummary struct {
	TotalIncome  int64 `json:"totalIncome"`
	TotalExpense int64 `json:"totalExpense"`
	Profit       int64 `json:"profit"`
	Applications int   `json:"applications"`
}

type FinanceReport struct {
	Period   Period         `json:"period"`
	From     time.Time      `json:"from"`
	To       time.Time      `json:"to"`
	DealerID *uuid.UUID     `json:"dealerId,omitempty"`
	Summary  FinanceSummary `json:"summary"`
	Daily    []Bucket       `json:"daily"`
	Monthly  []Bucket       `json:"monthly"`
	ByTest   []Bucket       `json:"byTest"`
	ByDealer []Bucket       `json:"byDealer"`
}

// Aggregate groups records by day, month, test and dealer. Day and month
// keys are computed in loc. Per-test income uses the price each test was
// listed at on the application, so tests covered by a package still count.
func Aggregate(records []FinanceRecord, loc *time.Location) FinanceReport {
	if loc == nil {
		loc = time.UTC
	}
	daily := map[string]*Bucket{}
	monthly := map[string]*Bucket{}
	byTest := map[string]*Bucket{}
	byDealer := map[string]*Bucket{}

	add := func(m map[string]*Bucket, key, name string, income, expense int64) {
		b, ok := m[key]
		if !ok {
			b = &Bucket{Key: key, Name: name}
			m[key] = b
		}
		b.Income += income
		b.Expense += expense
		b.Profit = b.Income - b.Expense
	}

	var rep FinanceReport
	for _, r := range records {
		at := r.CreatedAt.In(loc)
		add(daily, at.Format("2006-01-02"), "", r.TotalPrice, r.TotalCost)
		add(monthly, at.Format("2006-01"), "", r.TotalPrice, r.TotalCost)

		dealerKey := ""
		if r.DealerID != nil {
			dealerKey = r.DealerID.String()
		}
		add(byDealer, dealerKey, r.DealerName, r.TotalPrice, r.TotalCost)

		for _, t := range r.Tests {
			key := t.TestID
			if key == "" {
				key = t.Name
			}
			add(byTest, key, t.Name, t.Price, t.CostPrice)
		}

		rep.Summary.TotalIncome += r.TotalPrice
		rep.Summary.TotalExpense += r.TotalCost
		rep.Summary.Applications++
	}
	rep.Summary.Profit = rep.Summary.TotalIncome - rep.Summary.TotalExpense

	rep.Daily = sortedByKey(daily)
	rep.Monthly = sortedByKey(monthly)
	rep.ByTest = sortedByIncome(byTest)
	rep.ByDealer = sortedByIncome(byDealer)
	return rep
}

func sortedByKey(m map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sortedByIncome(m map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Income != out[j].Income {
			return out[i].Income > out[j].Income
		}
		return out[i].Key < out[j].Key
	})
	return out
}

const financeSQL = `SELECT a.id, a.dealer_id, COALESCE(a.dealer_name, ''), a.created_at,
       a.total_price, a.total_cost, a.selected_tests
FROM applications a
WHERE a.status <> 'cancelled' AND a.created_at >= $1
  AND ($2::uuid IS NULL OR a.dealer_id = $2)
ORDER BY a.created_at`

// LoadFinanceRecords reads non-cancelled applications created since from.
func LoadFinanceRecords(ctx context.Context, db Querier, from time.Time, dealerID *uuid.UUID) ([]FinanceRecord, error) {
	rows, err := db.Query(ctx, financeSQL, from, dealerID)
	if err != nil {
		return nil, fmt.Errorf("query finance records: %w", err)
	}
	defer rows.Close()

	var out []FinanceRecord
	for rows.Next() {
		var r FinanceRecord
		var tests []byte
		if err := rows.Scan(&r.ApplicationID, &r.DealerID, &r.DealerName, &r.CreatedAt, &r.TotalPrice, &r.TotalCost, &tests); err != nil {
			return nil, fmt.Errorf("scan finance record: %w", err)
		}
		if len(tests) > 0 {
			if err := json.Unmarshal(tests, &r.Tests); err != nil {
				return nil, fmt.Errorf("decode selected tests of %s: %w", r.ApplicationID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Finance handles GET /reports/finance?period=week|month|year&dealerId=...
func (h *Handler) Finance(c echo.Context) error {
	period := Period(c.QueryParam("period"))
	now := h.now()
	from, err := period.Since(now)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "period must be week, month or year")
	}
	if period == "" {
		period = PeriodMonth
	}

	var dealerID *uuid.UUID
	if v := c.QueryParam("dealerId"); v != "" && v != "all" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid dealerId")
		}
		dealerID = &id
	}

	records, err := LoadFinanceRecords(c.Request().Context(), h.db, from, dealerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("finance report failed")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "report data unavailable")
	}

	rep := Aggregate(records, h.loc)
	rep.Period = period
	rep.From = from.UTC()
	rep.To = now.UTC()
	rep.DealerID = dealerID
	return c.JSON(http.StatusOK, rep)
}
