package order

import (
	"context"

	"github.com/google/uuid"
)

// ApplicationRepository returns apperr.ErrNotFound for missing rows. List
// returns newest first.
type ApplicationRepository interface {
	Create(ctx context.Context, a *Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	Update(ctx context.Context, a *Application) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Application, int, error)
}
