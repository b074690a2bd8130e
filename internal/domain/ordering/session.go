package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

// ErrSaveInProgress is returned for edits attempted while a save is running.
var ErrSaveInProgress = errors.New("save in progress")

// Persister writes the order values of one kind in a single transaction:
// either every position is stored or none is.
type Persister interface {
	ApplyOrder(ctx context.Context, kind Kind, positions []Position) error
}

// Session holds an administrator's working copy of one ordered list.
//
// Edits move the session to Dirty. Save moves it to Saving and then back to
// Clean when the write succeeds. A failed write restores the last persisted
// list, leaves the session Dirty and reports apperr.ErrPersistence.
type Session struct {
	mu        sync.Mutex
	kind      Kind
	persister Persister
	persisted []Item
	current   []Item
	state     State
}

func NewSession(kind Kind, items []Item, p Persister) *Session {
	return &Session{
		kind:      kind,
		persister: p,
		persisted: clone(items),
		current:   clone(items),
		state:     Clean,
	}
}

func (s *Session) Kind() Kind { return s.kind }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Items returns a copy of the working list.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.current)
}

func (s *Session) Move(id uuid.UUID, dir Direction) error {
	return s.edit(func(list []Item) ([]Item, error) {
		return MoveItem(list, id, dir), nil
	})
}

func (s *Session) Reorder(from, to int) error {
	return s.edit(func(list []Item) ([]Item, error) {
		return Reorder(list, from, to)
	})
}

func (s *Session) Arrange(ids []uuid.UUID) error {
	return s.edit(func(list []Item) ([]Item, error) {
		return Arrange(list, ids)
	})
}

func (s *Session) edit(fn func([]Item) ([]Item, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Saving {
		return ErrSaveInProgress
	}
	next, err := fn(s.current)
	if err != nil {
		return err
	}
	if sameOrder(s.current, next) {
		return nil
	}
	s.current = next
	s.state = Dirty
	return nil
}

func sameOrder(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Order != b[i].Order {
			return false
		}
	}
	return true
}

// Save persists the working list. A Clean session issues no write.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Clean:
		s.mu.Unlock()
		return nil
	case Saving:
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.state = Saving
	snapshot := clone(s.current)
	s.mu.Unlock()

	err := s.persister.ApplyOrder(ctx, s.kind, Positions(snapshot))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.current = clone(s.persisted)
		s.state = Dirty
		return fmt.Errorf("save %s order: %v: %w", s.kind, err, apperr.ErrPersistence)
	}
	s.persisted = snapshot
	s.current = clone(snapshot)
	s.state = Clean
	return nil
}
