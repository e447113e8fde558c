// Package session owns the registry of analyzed URLs. The registry is the
// sole owner of its Session values; readers always receive copies, so a
// concurrent analysis can never be observed half-written.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediagrab/internal/domain"
)

// Meta carries the session-level facts recorded at creation time.
type Meta struct {
	SourceURL     string
	Platform      domain.Platform
	IsPlaylist    bool
	PlaylistTitle string
}

// Page is one half-open slice of a session's items.
type Page struct {
	Items   []domain.MediaItem
	HasMore bool
	Total   int
}

// Registry stores sessions keyed by opaque id. When ttl is zero sessions
// live for the process lifetime, matching the observed baseline.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry. ttl <= 0 disables eviction.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create records a new session and returns its id. The items slice is copied
// so the caller cannot mutate registry state afterwards.
func (r *Registry) Create(items []domain.MediaItem, meta Meta) string {
	id := uuid.NewString()
	stored := make([]domain.MediaItem, len(items))
	copy(stored, items)

	r.mu.Lock()
	r.sessions[id] = &domain.Session{
		ID:            id,
		SourceURL:     meta.SourceURL,
		Platform:      meta.Platform,
		IsPlaylist:    meta.IsPlaylist,
		PlaylistTitle: meta.PlaylistTitle,
		Items:         stored,
		CreatedAt:     r.now(),
	}
	r.mu.Unlock()
	return id
}

// Get returns a copy of the session, or domain.ErrNotFound.
func (r *Registry) Get(id string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return copySession(s), nil
}

// GetPage returns items [(page-1)*size, page*size) of the session. Pages
// past the end are empty, not an error; only an unknown session id fails.
func (r *Registry) GetPage(id string, page, size int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Page{}, domain.ErrNotFound
	}

	total := len(s.Items)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	items := make([]domain.MediaItem, end-start)
	copy(items, s.Items[start:end])
	return Page{Items: items, HasMore: end < total, Total: total}, nil
}

// Item looks up one media item inside a session by its id.
func (r *Registry) Item(sessionID, itemID string) (domain.MediaItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.MediaItem{}, domain.ErrNotFound
	}
	for _, item := range s.Items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return domain.MediaItem{}, domain.ErrNotFound
}

// Janitor evicts expired sessions until ctx is done. It is a no-op when the
// registry has no TTL configured.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictExpired()
		}
	}
}

func (r *Registry) evictExpired() {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
}

func copySession(s *domain.Session) domain.Session {
	out := *s
	out.Items = make([]domain.MediaItem, len(s.Items))
	copy(out.Items, s.Items)
	return out
}
