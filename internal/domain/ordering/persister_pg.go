package ordering

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
)

var orderTables = map[Kind]string{
	KindTests:    "tests",
	KindGroups:   "test_groups",
	KindPackages: "packages",
}

type persisterPG struct{ pool *pgxpool.Pool }

func NewPersisterPG(pool *pgxpool.Pool) Persister {
	return &persisterPG{pool: pool}
}

// ApplyOrder queues one UPDATE per position in a pgx batch inside a
// transaction. A missing row aborts the whole write.
func (p *persisterPG) ApplyOrder(ctx context.Context, kind Kind, positions []Position) error {
	table, ok := orderTables[kind]
	if !ok {
		return fmt.Errorf("unknown ordering kind %q", kind)
	}
	if len(positions) == 0 {
		return nil
	}
	stmt := `UPDATE ` + table + ` SET sort_order = $2, updated_at = NOW() WHERE id = $1`

	return db.WithTx(ctx, p.pool, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, pos := range positions {
			batch.Queue(stmt, pos.ID, pos.Order)
		}
		br := db.TxFromContext(ctx).SendBatch(ctx, batch)
		for _, pos := range positions {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("update %s order of %s: %w", table, pos.ID, err)
			}
			if tag.RowsAffected() != 1 {
				br.Close()
				return fmt.Errorf("update %s order of %s: row not found", table, pos.ID)
			}
		}
		return br.Close()
	})
}
