package searchlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(ttl time.Duration) *Registry {
	return NewRegistry(func() *Controller {
		return newTestController(&stubDirectory{})
	}, ttl, testLogger())
}

func TestRegistryReturnsSameControllerPerSession(t *testing.T) {
	reg := newTestRegistry(time.Hour)

	first := reg.Get("session-a")
	second := reg.Get("session-a")
	other := reg.Get("session-b")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryKeepsControllerState(t *testing.T) {
	reg := newTestRegistry(time.Hour)

	reg.Get("session-a").SetCustomerFilter(CustomerFilter{Suchname: "Mayer"})

	snap := reg.Get("session-a").Snapshot()
	assert.Equal(t, "Mayer", snap.Customer.Suchname)
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	reg := newTestRegistry(10 * time.Minute)

	reg.Get("session-a")
	reg.Get("session-b")
	require.Equal(t, 2, reg.Len())

	// session-b stays active, session-a goes idle
	reg.mu.Lock()
	reg.entries["session-a"].lastSeen = time.Now().Add(-time.Hour)
	reg.mu.Unlock()

	evicted := reg.sweep(time.Now())
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, reg.Len())

	// the evicted session gets a fresh controller on its next visit
	reg.Get("session-b").SetCustomerFilter(CustomerFilter{Suchname: "Mayer"})
	fresh := reg.Get("session-a")
	assert.Empty(t, fresh.Snapshot().Customer.Suchname)
}

func TestRegistryRemove(t *testing.T) {
	reg := newTestRegistry(time.Hour)

	reg.Get("session-a")
	reg.Remove("session-a")
	reg.Remove("session-a")

	assert.Equal(t, 0, reg.Len())
}
