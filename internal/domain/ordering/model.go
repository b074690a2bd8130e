package ordering

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// Kind names an orderable collection.
type Kind string

const (
	KindTests    Kind = "tests"
	KindGroups   Kind = "groups"
	KindPackages Kind = "packages"
)

// ParseKind validates a kind taken from a route parameter.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTests, KindGroups, KindPackages:
		return k, nil
	}
	return "", fmt.Errorf("unknown ordering kind %q: %w", s, apperr.ErrValidation)
}

// Item is one entry of an ordered list as shown to an administrator.
type Item struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
	Order int       `json:"order"`
}

// Position is the persisted order value of one entity.
type Position struct {
	ID    uuid.UUID
	Order int
}

// Direction of a single-step move.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Up, Down:
		return d, nil
	}
	return "", fmt.Errorf("direction must be up or down: %w", apperr.ErrValidation)
}

// State of an editing session.
type State int

const (
	Clean State = iota
	Dirty
	Saving
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	}
	return "unknown"
}
