package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Querier is the subset of pgxpool.Pool the reports need.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// MeasureDefinition defines a reporting measure with its SQL query.
// Parameters are bound to $1..$n in order; a missing parameter binds NULL.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"-"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measureId"`
	MeasureName string                   `json:"measureName"`
	GeneratedAt time.Time                `json:"generatedAt"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

const dateWindow = `($1::date IS NULL OR a.created_at >= $1::date)
  AND ($2::date IS NULL OR a.created_at < $2::date + 1)`

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "applications-by-status",
		Name:        "Applications by Status",
		Description: "Number of applications and their value grouped by status",
		SQL: `SELECT a.status, COUNT(*) AS total, COALESCE(SUM(a.total_price), 0) AS income
FROM applications a
WHERE ` + dateWindow + `
GROUP BY a.status ORDER BY total DESC`,
		Parameters: []string{"from", "to"},
	},
	{
		ID:          "revenue-by-dealer",
		Name:        "Revenue by Dealer",
		Description: "Income, cost and profit per dealer, cancelled applications excluded",
		SQL: `SELECT COALESCE(NULLIF(a.dealer_name, ''), '-') AS dealer, COUNT(*) AS applications,
       SUM(a.total_price) AS income, SUM(a.total_cost) AS expense, SUM(a.profit) AS profit
FROM applications a
WHERE a.status <> 'cancelled' AND ` + dateWindow + `
GROUP BY 1 ORDER BY income DESC`,
		Parameters: []string{"from", "to"},
	},
	{
		ID:          "top-tests",
		Name:        "Most Ordered Tests",
		Description: "The twenty tests that appear most often on applications",
		SQL: `SELECT t->>'name' AS test, COUNT(*) AS ordered, SUM((t->>'price')::bigint) AS income
FROM applications a, jsonb_array_elements(a.selected_tests) t
WHERE a.status <> 'cancelled' AND ` + dateWindow + `
GROUP BY 1 ORDER BY ordered DESC, test LIMIT 20`,
		Parameters: []string{"from", "to"},
	},
	{
		ID:          "package-uptake",
		Name:        "Package Uptake",
		Description: "How often each package was applied to an order",
		SQL: `SELECT p->>'name' AS package, COUNT(*) AS applied, SUM((p->>'price')::bigint) AS income
FROM applications a, jsonb_array_elements(a.applied_packages) p
WHERE a.status <> 'cancelled'
GROUP BY 1 ORDER BY applied DESC`,
		Parameters: []string{},
	},
	{
		ID:          "dealer-price-overrides",
		Name:        "Dealer Price Overrides",
		Description: "Number of dealer specific prices per dealer",
		SQL: `SELECT d.name AS dealer, d.is_active AS active, COUNT(dp.test_id) AS overrides
FROM dealers d LEFT JOIN dealer_prices dp ON dp.dealer_id = d.id
GROUP BY d.id, d.name, d.is_active ORDER BY d.name`,
		Parameters: []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	db     Querier
	logger zerolog.Logger
	now    func() time.Time
	loc    *time.Location
}

func NewHandler(db Querier, logger zerolog.Logger) *Handler {
	return &Handler{db: db, logger: logger, now: time.Now, loc: time.UTC}
}

// WithLocation sets the zone that decides which day an application falls on.
func (h *Handler) WithLocation(loc *time.Location) *Handler {
	if loc != nil {
		h.loc = loc
	}
	return h
}

// RegisterRoutes registers the reporting routes on an admin group.
func (h *Handler) RegisterRoutes(admin *echo.Group) {
	g := admin.Group("/reports")
	g.GET("/finance", h.Finance)
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	args := make([]any, len(measure.Parameters))
	for i, p := range measure.Parameters {
		v := c.QueryParam(p)
		if v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a date (YYYY-MM-DD)", p))
		}
		params[p] = v
		args[i] = v
	}

	results, err := executeSQL(c.Request().Context(), h.db, measure.SQL, args...)
	if err != nil {
		h.logger.Error().Err(err).Str("measure", measure.ID).Msg("measure query failed")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "report data unavailable")
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: h.now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

// executeSQL runs a query and returns rows as column-name keyed maps.
func executeSQL(ctx context.Context, db Querier, sql string, args ...any) ([]map[string]interface{}, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
