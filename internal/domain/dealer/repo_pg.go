package dealer

import (
	"context"
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

type dealerRepoPG struct{ pool *pgxpool.Pool }

func NewDealerRepoPG(pool *pgxpool.Pool) DealerRepository {
	return &dealerRepoPG{pool: pool}
}

func (r *dealerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const dealerCols = `id, name, email, phone, address, is_active, created_at, updated_at`

func (r *dealerRepoPG) scanDealer(row pgx.Row) (*Dealer, error) {
	var d Dealer
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.Address, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return &d, err
}

func (r *dealerRepoPG) Create(ctx context.Context, d *Dealer) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO dealers (id, name, email, phone, address, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Email, d.Phone, d.Address, d.IsActive).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *dealerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dealer, error) {
	return r.scanDealer(r.conn(ctx).QueryRow(ctx, `SELECT `+dealerCols+` FROM dealers WHERE id = $1`, id))
}

func (r *dealerRepoPG) Update(ctx context.Context, d *Dealer) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dealers SET name=$2, email=$3, phone=$4, address=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Email, d.Phone, d.Address, d.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *dealerRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM dealers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *dealerRepoPG) List(ctx context.Context, activeOnly bool) ([]*Dealer, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+dealerCols+` FROM dealers
		WHERE ($1 = FALSE OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Dealer
	for rows.Next() {
		d, err := r.scanDealer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dealer: %w", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// FindActiveByName returns the oldest active dealer whose name matches.
func (r *dealerRepoPG) FindActiveByName(ctx context.Context, name string) (*Dealer, error) {
	return r.scanDealer(r.conn(ctx).QueryRow(ctx, `SELECT `+dealerCols+` FROM dealers
		WHERE is_active AND LOWER(name) = LOWER($1)
		ORDER BY created_at LIMIT 1`, name))
}
