package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connOf(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// =========== Test Repository ===========

type testRepoPG struct{ pool *pgxpool.Pool }

func NewTestRepoPG(pool *pgxpool.Pool) TestRepository {
	return &testRepoPG{pool: pool}
}

const testCols = `id, group_id, name, category, base_price, COALESCE(cost_price, 0), sort_order, created_at, updated_at`

func (r *testRepoPG) scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.GroupID, &t.Name, &t.Category, &t.BasePrice, &t.CostPrice, &t.Order, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *testRepoPG) Create(ctx context.Context, t *Test) error {
	t.ID = uuid.New()
	return connOf(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tests (id, group_id, name, category, base_price, cost_price, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		t.ID, t.GroupID, t.Name, t.Category, t.BasePrice, t.CostPrice, t.Order).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *testRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	return r.scanTest(connOf(ctx, r.pool).QueryRow(ctx, `SELECT `+testCols+` FROM tests WHERE id = $1`, id))
}

func (r *testRepoPG) Update(ctx context.Context, t *Test) error {
	return affected(connOf(ctx, r.pool).Exec(ctx, `
		UPDATE tests SET group_id=$2, name=$3, category=$4, base_price=$5, cost_price=$6,
			sort_order=$7, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.GroupID, t.Name, t.Category, t.BasePrice, t.CostPrice, t.Order))
}

func (r *testRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(connOf(ctx, r.pool).Exec(ctx, `DELETE FROM tests WHERE id = $1`, id))
}

func (r *testRepoPG) List(ctx context.Context) ([]*Test, error) {
	return r.list(ctx, `SELECT `+testCols+` FROM tests ORDER BY created_at, id`)
}

func (r *testRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Test, error) {
	return r.list(ctx, `SELECT `+testCols+` FROM tests WHERE id = ANY($1) ORDER BY created_at, id`, ids)
}

func (r *testRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Test, error) {
	rows, err := connOf(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Test
	for rows.Next() {
		t, err := r.scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *testRepoPG) CountByGroup(ctx context.Context, groupID uuid.UUID) (int, error) {
	var n int
	err := connOf(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM tests WHERE group_id = $1`, groupID).Scan(&n)
	return n, err
}

// =========== Group Repository ===========

type groupRepoPG struct{ pool *pgxpool.Pool }

func NewGroupRepoPG(pool *pgxpool.Pool) GroupRepository {
	return &groupRepoPG{pool: pool}
}

const groupCols = `id, title, sort_order, created_at, updated_at`

func (r *groupRepoPG) scanGroup(row pgx.Row) (*TestGroup, error) {
	var g TestGroup
	if err := row.Scan(&g.ID, &g.Title, &g.Order, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (r *groupRepoPG) Create(ctx context.Context, g *TestGroup) error {
	g.ID = uuid.New()
	return connOf(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO test_groups (id, title, sort_order) VALUES ($1,$2,$3)
		RETURNING created_at, updated_at`,
		g.ID, g.Title, g.Order).Scan(&g.CreatedAt, &g.UpdatedAt)
}

func (r *groupRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TestGroup, error) {
	return r.scanGroup(connOf(ctx, r.pool).QueryRow(ctx, `SELECT `+groupCols+` FROM test_groups WHERE id = $1`, id))
}

func (r *groupRepoPG) Update(ctx context.Context, g *TestGroup) error {
	return affected(connOf(ctx, r.pool).Exec(ctx, `
		UPDATE test_groups SET title=$2, sort_order=$3, updated_at=NOW() WHERE id = $1`,
		g.ID, g.Title, g.Order))
}

func (r *groupRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(connOf(ctx, r.pool).Exec(ctx, `DELETE FROM test_groups WHERE id = $1`, id))
}

func (r *groupRepoPG) List(ctx context.Context) ([]*TestGroup, error) {
	rows, err := connOf(ctx, r.pool).Query(ctx, `SELECT `+groupCols+` FROM test_groups ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TestGroup
	for rows.Next() {
		g, err := r.scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

func (r *groupRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := connOf(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM test_groups`).Scan(&n)
	return n, err
}

// =========== Package Repository ===========

type packageRepoPG struct{ pool *pgxpool.Pool }

func NewPackageRepoPG(pool *pgxpool.Pool) PackageRepository {
	return &packageRepoPG{pool: pool}
}

const packageCols = `id, name, tests, price, image, sort_order, created_at, updated_at`

func (r *packageRepoPG) scanPackage(row pgx.Row) (*Package, error) {
	var p Package
	var refs []byte
	if err := row.Scan(&p.ID, &p.Name, &refs, &p.Price, &p.Image, &p.Order, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(refs, &p.Tests); err != nil {
		return nil, fmt.Errorf("decode tests of package %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r *packageRepoPG) Create(ctx context.Context, p *Package) error {
	p.ID = uuid.New()
	refs, err := json.Marshal(p.Tests)
	if err != nil {
		return err
	}
	return connOf(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO packages (id, name, tests, price, image, sort_order)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, refs, p.Price, p.Image, p.Order).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *packageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	return r.scanPackage(connOf(ctx, r.pool).QueryRow(ctx, `SELECT `+packageCols+` FROM packages WHERE id = $1`, id))
}

func (r *packageRepoPG) Update(ctx context.Context, p *Package) error {
	refs, err := json.Marshal(p.Tests)
	if err != nil {
		return err
	}
	return affected(connOf(ctx, r.pool).Exec(ctx, `
		UPDATE packages SET name=$2, tests=$3, price=$4, image=$5, sort_order=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, refs, p.Price, p.Image, p.Order))
}

func (r *packageRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(connOf(ctx, r.pool).Exec(ctx, `DELETE FROM packages WHERE id = $1`, id))
}

func (r *packageRepoPG) List(ctx context.Context) ([]*Package, error) {
	rows, err := connOf(ctx, r.pool).Query(ctx, `SELECT `+packageCols+` FROM packages ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Package
	for rows.Next() {
		p, err := r.scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *packageRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := connOf(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM packages`).Scan(&n)
	return n, err
}

func (r *packageRepoPG) SetImage(ctx context.Context, id uuid.UUID, url string) error {
	return affected(connOf(ctx, r.pool).Exec(ctx,
		`UPDATE packages SET image=$2, updated_at=NOW() WHERE id = $1`, id, url))
}

// =========== Dealer Price Repository ===========

type dealerPriceRepoPG struct{ pool *pgxpool.Pool }

func NewDealerPriceRepoPG(pool *pgxpool.Pool) DealerPriceRepository {
	return &dealerPriceRepoPG{pool: pool}
}

func (r *dealerPriceRepoPG) ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]DealerPrice, error) {
	rows, err := connOf(ctx, r.pool).Query(ctx, `
		SELECT dealer_id, test_id, price, updated_at FROM dealer_prices
		WHERE dealer_id = $1 ORDER BY test_id`, dealerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DealerPrice
	for rows.Next() {
		var p DealerPrice
		if err := rows.Scan(&p.DealerID, &p.TestID, &p.Price, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dealer price: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *dealerPriceRepoPG) Apply(ctx context.Context, dealerID uuid.UUID, set []DealerPrice, remove []uuid.UUID) error {
	if len(set) == 0 && len(remove) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, p := range set {
			batch.Queue(`
				INSERT INTO dealer_prices (dealer_id, test_id, price) VALUES ($1,$2,$3)
				ON CONFLICT (dealer_id, test_id) DO UPDATE SET price = EXCLUDED.price, updated_at = NOW()`,
				dealerID, p.TestID, p.Price)
		}
		if len(remove) > 0 {
			batch.Queue(`DELETE FROM dealer_prices WHERE dealer_id = $1 AND test_id = ANY($2)`, dealerID, remove)
		}
		br := db.TxFromContext(ctx).SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("apply dealer prices: %w", err)
			}
		}
		return br.Close()
	})
}
