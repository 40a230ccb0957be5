package contacttypes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugwawi/hugwawi-admin/internal/directory"
)

type fakeSource struct {
	calls atomic.Int32
	types []directory.ContactType
	err   error
}

func (f *fakeSource) ListContactTypes(ctx context.Context) ([]directory.ContactType, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.types, nil
}

func newTestCache(t *testing.T, source Source) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCache(source, rdb, time.Hour, log), mr
}

func TestCacheGetFetchesOnceAndServesFromRedis(t *testing.T) {
	source := &fakeSource{types: []directory.ContactType{
		{ID: 1, Name: "Einkauf"},
		{ID: 2, Name: "Buchhaltung"},
	}}
	cache, _ := newTestCache(t, source)

	first := cache.Get(context.Background())
	require.Len(t, first, 2)
	assert.Equal(t, "Einkauf", first[0].Name)

	second := cache.Get(context.Background())
	require.Len(t, second, 2)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCacheGetDegradesToEmptyOnBackendFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("backend down")}
	cache, _ := newTestCache(t, source)

	types := cache.Get(context.Background())
	require.NotNil(t, types)
	assert.Empty(t, types)

	// Nothing gets cached on failure, the next Get retries.
	cache.Get(context.Background())
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestCacheGetIgnoresCorruptPayload(t *testing.T) {
	source := &fakeSource{types: []directory.ContactType{{ID: 1, Name: "Vertrieb"}}}
	cache, mr := newTestCache(t, source)

	require.NoError(t, mr.Set("hugwawi:contact_types", "{not json"))

	types := cache.Get(context.Background())
	require.Len(t, types, 1)
	assert.Equal(t, "Vertrieb", types[0].Name)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCacheRefreshOverwritesCachedCatalogue(t *testing.T) {
	source := &fakeSource{types: []directory.ContactType{{ID: 1, Name: "Einkauf"}}}
	cache, _ := newTestCache(t, source)

	require.Len(t, cache.Get(context.Background()), 1)

	source.types = []directory.ContactType{
		{ID: 1, Name: "Einkauf"},
		{ID: 3, Name: "Logistik"},
	}
	require.NoError(t, cache.Refresh(context.Background()))

	types := cache.Get(context.Background())
	require.Len(t, types, 2)
	assert.Equal(t, "Logistik", types[1].Name)
}

func TestCacheRefreshReportsBackendFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("backend down")}
	cache, _ := newTestCache(t, source)

	require.Error(t, cache.Refresh(context.Background()))
}
