// Package notification tracks which new applications an admin has already
// looked at and exposes an unread counter for the back office header.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Item is one entry of the notification feed.
type Item struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	DealerName string    `json:"dealerName,omitempty"`
	TotalPrice int64     `json:"totalPrice"`
	CreatedAt  time.Time `json:"createdAt"`
	Seen       bool      `json:"seen"`
}

// Source lists the most recent items, newest first.
type Source interface {
	Recent(ctx context.Context, limit int) ([]Item, error)
}

// SeenStore is the persisted set of IDs that have been seen.
type SeenStore interface {
	Add(ctx context.Context, ids ...string) error
	Seen(ctx context.Context, ids []string) (map[string]bool, error)
	Close() error
}

// Summary is the feed returned to the admin shell.
type Summary struct {
	Unread int    `json:"unread"`
	Items  []Item `json:"items"`
}

const DefaultWindow = 50

// Tracker combines a Source with a SeenStore. Only the latest window items
// are counted; older entries never show up as unread.
type Tracker struct {
	source Source
	seen   SeenStore
	window int
}

func NewTracker(source Source, seen SeenStore, window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{source: source, seen: seen, window: window}
}

func (t *Tracker) Summary(ctx context.Context) (*Summary, error) {
	items, err := t.source.Recent(ctx, t.window)
	if err != nil {
		return nil, fmt.Errorf("load recent items: %w", err)
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	seen, err := t.seen.Seen(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load seen ids: %w", err)
	}

	s := &Summary{Items: make([]Item, 0, len(items))}
	for _, it := range items {
		it.Seen = seen[it.ID]
		if !it.Seen {
			s.Unread++
		}
		s.Items = append(s.Items, it)
	}
	return s, nil
}

// MarkSeen records ids as seen. Unknown ids are stored as well so a feed
// refresh racing a new submission cannot resurrect them.
func (t *Tracker) MarkSeen(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return t.seen.Add(ctx, ids...)
}

// MarkAllSeen marks every item in the current window as seen.
func (t *Tracker) MarkAllSeen(ctx context.Context) (int, error) {
	items, err := t.source.Recent(ctx, t.window)
	if err != nil {
		return 0, fmt.Errorf("load recent items: %w", err)
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if err := t.MarkSeen(ctx, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// MemoryStore keeps the seen set in process memory. State is lost on restart.
type MemoryStore struct {
	mu  sync.RWMutex
	ids map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]time.Time)}
}

func (m *MemoryStore) Add(_ context.Context, ids ...string) error {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.ids[id]; !ok {
			m.ids[id] = now
		}
	}
	return nil
}

func (m *MemoryStore) Seen(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.ids[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// NotificationHandler exposes the feed over HTTP.
type NotificationHandler struct {
	tracker *Tracker
}

func NewNotificationHandler(t *Tracker) *NotificationHandler {
	return &NotificationHandler{tracker: t}
}

func (h *NotificationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleSummary)
	g.POST("/notifications/seen", h.HandleSeen)
}

// HandleSummary handles GET /notifications. ?unread=true drops seen items.
func (h *NotificationHandler) HandleSummary(c echo.Context) error {
	s, err := h.tracker.Summary(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "notifications unavailable")
	}
	if unreadOnly, _ := strconv.ParseBool(c.QueryParam("unread")); unreadOnly {
		items := s.Items[:0]
		for _, it := range s.Items {
			if !it.Seen {
				items = append(items, it)
			}
		}
		s.Items = items
	}
	return c.JSON(http.StatusOK, s)
}

type seenRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// HandleSeen handles POST /notifications/seen.
func (h *NotificationHandler) HandleSeen(c echo.Context) error {
	var req seenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	if req.All {
		n, err := h.tracker.MarkAllSeen(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "notifications unavailable")
		}
		return c.JSON(http.StatusOK, map[string]int{"marked": n})
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids or all is required")
	}
	if err := h.tracker.MarkSeen(ctx, req.IDs...); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "notifications unavailable")
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": len(req.IDs)})
}
