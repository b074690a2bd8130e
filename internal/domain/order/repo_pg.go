package order

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

type applicationRepoPG struct{ pool *pgxpool.Pool }

func NewApplicationRepoPG(pool *pgxpool.Pool) ApplicationRepository {
	return &applicationRepoPG{pool: pool}
}

func (r *applicationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const appCols = `id, patient_info, selected_tests, applied_packages, total_price, total_cost, profit,
	dealer_id, dealer_name, status, doctor_notes, created_at, updated_at`

func (r *applicationRepoPG) scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	var patient, tests, packages []byte
	err := row.Scan(&a.ID, &patient, &tests, &packages, &a.TotalPrice, &a.TotalCost, &a.Profit,
		&a.DealerID, &a.DealerName, &a.Status, &a.DoctorNotes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patient, &a.PatientInfo); err != nil {
		return nil, fmt.Errorf("decode patient of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(tests, &a.SelectedTests); err != nil {
		return nil, fmt.Errorf("decode tests of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(packages, &a.AppliedPackages); err != nil {
		return nil, fmt.Errorf("decode packages of %s: %w", a.ID, err)
	}
	return &a, nil
}

type appJSON struct {
	patient, tests, packages []byte
}

func encodeApplication(a *Application) (appJSON, error) {
	var out appJSON
	var err error
	if out.patient, err = json.Marshal(a.PatientInfo); err != nil {
		return out, err
	}
	tests := a.SelectedTests
	if tests == nil {
		tests = []SelectedTest{}
	}
	if out.tests, err = json.Marshal(tests); err != nil {
		return out, err
	}
	packages := a.AppliedPackages
	if packages == nil {
		packages = []AppliedPackage{}
	}
	out.packages, err = json.Marshal(packages)
	return out, err
}

func (r *applicationRepoPG) Create(ctx context.Context, a *Application) error {
	a.ID = uuid.New()
	enc, err := encodeApplication(a)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO applications (id, patient_info, selected_tests, applied_packages, total_price,
			total_cost, profit, dealer_id, dealer_name, status, doctor_notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, enc.patient, enc.tests, enc.packages, a.TotalPrice, a.TotalCost, a.Profit,
		a.DealerID, a.DealerName, a.Status, a.DoctorNotes, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *applicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	return r.scanApplication(r.conn(ctx).QueryRow(ctx, `SELECT `+appCols+` FROM applications WHERE id = $1`, id))
}

func (r *applicationRepoPG) Update(ctx context.Context, a *Application) error {
	enc, err := encodeApplication(a)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE applications SET patient_info=$2, selected_tests=$3, applied_packages=$4,
			total_price=$5, total_cost=$6, profit=$7, dealer_id=$8, dealer_name=$9, status=$10,
			doctor_notes=$11, updated_at=$12
		WHERE id = $1`,
		a.ID, enc.patient, enc.tests, enc.packages, a.TotalPrice, a.TotalCost, a.Profit,
		a.DealerID, a.DealerName, a.Status, a.DoctorNotes, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *applicationRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE applications SET status=$2, updated_at=NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *applicationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

const listWhere = ` WHERE ($1 = '' OR status = $1)
	AND ($2::uuid IS NULL OR dealer_id = $2)
	AND ($3::timestamptz IS NULL OR created_at >= $3)
	AND ($4::timestamptz IS NULL OR created_at < $4)`

func (r *applicationRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Application, int, error) {
	args := []interface{}{f.Status, f.DealerID, f.From, f.To}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM applications`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+appCols+` FROM applications`+listWhere+`
		ORDER BY created_at DESC, id LIMIT $5 OFFSET $6`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Application
	for rows.Next() {
		a, err := r.scanApplication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan application: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
