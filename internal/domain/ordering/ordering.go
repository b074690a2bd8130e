// Package ordering maintains the display order of tests, groups and packages.
// List operations are pure; Session tracks unsaved edits and Persister writes
// a whole list of positions atomically.
package ordering

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// MoveItem swaps the item with its neighbour in the given direction and
// renumbers the list 0..n-1. Unknown ids and moves past either end return an
// unchanged copy.
func MoveItem(list []Item, id uuid.UUID, dir Direction) []Item {
	out := clone(list)
	idx := indexOf(out, id)
	if idx < 0 {
		return out
	}
	target := idx - 1
	if dir == Down {
		target = idx + 1
	}
	if target < 0 || target >= len(out) {
		return out
	}
	out[idx], out[target] = out[target], out[idx]
	renumber(out)
	return out
}

// Reorder removes the item at from and reinserts it at to. Every item's Order
// is reassigned to its new index.
func Reorder(list []Item, from, to int) ([]Item, error) {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		return clone(list), fmt.Errorf("reorder %d -> %d out of range for %d items: %w", from, to, len(list), apperr.ErrValidation)
	}
	out := clone(list)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Item{moved}, out[to:]...)...)
	renumber(out)
	return out, nil
}

// Arrange returns list rearranged to follow ids, which must name every item
// exactly once.
func Arrange(list []Item, ids []uuid.UUID) ([]Item, error) {
	if len(ids) != len(list) {
		return nil, fmt.Errorf("expected %d ids, got %d: %w", len(list), len(ids), apperr.ErrValidation)
	}
	byID := make(map[uuid.UUID]Item, len(list))
	for _, it := range list {
		byID[it.ID] = it
	}
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("id %s is unknown or repeated: %w", id, apperr.ErrValidation)
		}
		delete(byID, id)
		out = append(out, it)
	}
	renumber(out)
	return out, nil
}

// Positions converts a list to the values a Persister writes.
func Positions(list []Item) []Position {
	out := make([]Position, len(list))
	for i, it := range list {
		out[i] = Position{ID: it.ID, Order: it.Order}
	}
	return out
}

func indexOf(list []Item, id uuid.UUID) int {
	for i, it := range list {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func renumber(list []Item) {
	for i := range list {
		list[i].Order = i
	}
}

func clone(list []Item) []Item {
	out := make([]Item, len(list))
	copy(out, list)
	return out
}
