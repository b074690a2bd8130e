package dealer

import (
	"time"

	"github.com/google/uuid"
)

// Dealer is a partner clinic that submits orders through its own order form
// and may carry per-test price overrides.
type Dealer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
