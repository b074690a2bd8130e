package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repositories return apperr.ErrNotFound for missing rows. List methods
// return rows in insertion order, which is the "unordered" fetch order the
// loader uses to place entries without an order value.

type TestRepository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	Update(ctx context.Context, t *Test) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Test, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*Test, error)
	CountByGroup(ctx context.Context, groupID uuid.UUID) (int, error)
}

type GroupRepository interface {
	Create(ctx context.Context, g *TestGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*TestGroup, error)
	Update(ctx context.Context, g *TestGroup) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*TestGroup, error)
	Count(ctx context.Context) (int, error)
}

type PackageRepository interface {
	Create(ctx context.Context, p *Package) error
	GetByID(ctx context.Context, id uuid.UUID) (*Package, error)
	Update(ctx context.Context, p *Package) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Package, error)
	Count(ctx context.Context) (int, error)
	SetImage(ctx context.Context, id uuid.UUID, url string) error
}

type DealerPriceRepository interface {
	ListByDealer(ctx context.Context, dealerID uuid.UUID) ([]DealerPrice, error)
	// Apply upserts set and deletes the overrides for remove in one
	// transaction.
	Apply(ctx context.Context, dealerID uuid.UUID, set []DealerPrice, remove []uuid.UUID) error
}
