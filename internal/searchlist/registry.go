package searchlist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hugwawi/hugwawi-admin/internal/observability"
)

// Registry keeps one live Controller per browser session, so filters,
// loaded results and the request epoch survive across requests.
// Controllers are evicted after ttl of inactivity.
type Registry struct {
	factory func() *Controller
	ttl     time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	controller *Controller
	lastSeen   time.Time
}

// NewRegistry builds a registry. factory creates the controller for a
// session seen for the first time.
func NewRegistry(factory func() *Controller, ttl time.Duration, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		factory: factory,
		ttl:     ttl,
		entries: make(map[string]*registryEntry),
		log:     log,
	}
}

// Get returns the session's controller, creating it on first use, and
// marks the session as active.
func (r *Registry) Get(sessionID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[sessionID]
	if !ok {
		entry = &registryEntry{controller: r.factory()}
		r.entries[sessionID] = entry
		observability.ActiveSearchControllers.Set(float64(len(r.entries)))
	}
	entry.lastSeen = time.Now()
	return entry.controller
}

// Remove drops a session's controller, e.g. on logout.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sessionID]; ok {
		delete(r.entries, sessionID)
		observability.ActiveSearchControllers.Set(float64(len(r.entries)))
	}
}

// Len reports the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps expired controllers until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if evicted := r.sweep(time.Now()); evicted > 0 {
				r.log.Debug("evicted idle search sessions", "count", evicted)
			}
		}
	}
}

func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, entry := range r.entries {
		if now.Sub(entry.lastSeen) > r.ttl {
			delete(r.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		observability.ActiveSearchControllers.Set(float64(len(r.entries)))
	}
	return evicted
}
