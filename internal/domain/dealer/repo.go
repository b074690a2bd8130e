package dealer

import (
	"context"

	"github.com/google/uuid"
)

// DealerRepository returns apperr.ErrNotFound for missing rows.
type DealerRepository interface {
	Create(ctx context.Context, d *Dealer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dealer, error)
	Update(ctx context.Context, d *Dealer) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool) ([]*Dealer, error)
	// FindActiveByName matches name case-insensitively against active dealers.
	FindActiveByName(ctx context.Context, name string) (*Dealer, error)
}
