// Package contacttypes serves the contact-type catalogue for the
// contact search dropdown. The catalogue changes rarely, so it is
// cached in Redis and refreshed in the background; a failing backend
// degrades the dropdown to an empty list instead of breaking the
// screen.
package contacttypes

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/hugwawi/hugwawi-admin/internal/directory"
	"github.com/hugwawi/hugwawi-admin/internal/observability"
)

const cacheKey = "hugwawi:contact_types"

// Source lists contact types from the backend.
type Source interface {
	ListContactTypes(ctx context.Context) ([]directory.ContactType, error)
}

// Cache is a read-through Redis cache over the contact-type catalogue.
type Cache struct {
	source Source
	rdb    *redis.Client
	ttl    time.Duration
	log    *slog.Logger
	group  singleflight.Group
}

// NewCache builds the cache. ttl bounds how long a fetched catalogue
// is served without asking the backend again.
func NewCache(source Source, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{source: source, rdb: rdb, ttl: ttl, log: log}
}

// Get returns the catalogue. Failures are logged and yield an empty
// list; callers never see an error. Concurrent misses share a single
// backend fetch.
func (c *Cache) Get(ctx context.Context) []directory.ContactType {
	if types, ok := c.cached(ctx); ok {
		return types
	}

	result, err, _ := c.group.Do(cacheKey, func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		c.log.Error("contact type catalogue unavailable", "error", err)
		return []directory.ContactType{}
	}
	return result.([]directory.ContactType)
}

// Refresh fetches the catalogue from the backend and stores it,
// regardless of what is cached. The warmup job calls this.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.fetch(ctx)
	return err
}

func (c *Cache) cached(ctx context.Context) ([]directory.ContactType, bool) {
	payload, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("contact type cache read failed", "error", err)
		}
		return nil, false
	}

	var types []directory.ContactType
	if err := json.Unmarshal(payload, &types); err != nil {
		c.log.Warn("contact type cache payload corrupt", "error", err)
		return nil, false
	}
	return types, true
}

func (c *Cache) fetch(ctx context.Context) ([]directory.ContactType, error) {
	types, err := c.source.ListContactTypes(ctx)
	if err != nil {
		observability.ContactTypeRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if types == nil {
		types = []directory.ContactType{}
	}
	observability.ContactTypeRefreshTotal.WithLabelValues("ok").Inc()

	payload, err := json.Marshal(types)
	if err != nil {
		return types, nil
	}
	if err := c.rdb.Set(ctx, cacheKey, payload, c.ttl).Err(); err != nil {
		c.log.Warn("contact type cache write failed", "error", err)
	}
	return types, nil
}
