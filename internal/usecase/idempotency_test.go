package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

func TestIdempotencyPutGet(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(5*time.Minute, clock)

	d := &models.Decision{ID: "d1", Symbol: "BTCUSDT", Allow: true}
	s.Put("key-1", d)

	got := s.Get("key-1")
	require.NotNil(t, got)
	assert.Same(t, d, got, "replay must return the stored decision, not a copy")
	assert.Nil(t, s.Get("key-missing"))
}

func TestIdempotencyEmptyKeyIgnored(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(5*time.Minute, clock)

	s.Put("", &models.Decision{ID: "d1"})
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Get(""))
}

func TestIdempotencySeen(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Minute, clock)

	assert.False(t, s.Seen("key-1"))
	assert.False(t, s.Seen(""))

	s.Put("key-1", &models.Decision{ID: "d1"})
	assert.True(t, s.Seen("key-1"))

	clock.Advance(2 * time.Minute)
	assert.False(t, s.Seen("key-1"))
	// Seen is read-only; the expired entry stays for the sweeper.
	assert.Equal(t, 1, s.Len())
}

func TestIdempotencyExpiry(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Minute, clock)

	s.Put("key-1", &models.Decision{ID: "d1"})
	clock.Advance(59 * time.Second)
	require.NotNil(t, s.Get("key-1"))

	clock.Advance(2 * time.Second)
	assert.Nil(t, s.Get("key-1"))
	// Lazy expiry drops the entry on read.
	assert.Zero(t, s.Len())
}

func TestIdempotencyPutRenewsTTL(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Minute, clock)

	s.Put("key-1", &models.Decision{ID: "d1"})
	clock.Advance(45 * time.Second)
	s.Put("key-1", &models.Decision{ID: "d2"})
	clock.Advance(45 * time.Second)

	got := s.Get("key-1")
	require.NotNil(t, got)
	assert.Equal(t, "d2", got.ID)
}

func TestIdempotencySweep(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Minute, clock)

	s.Put("key-1", &models.Decision{ID: "d1"})
	s.Put("key-2", &models.Decision{ID: "d2"})
	clock.Advance(2 * time.Minute)
	s.Put("key-3", &models.Decision{ID: "d3"})

	require.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, 1, s.Len())
	assert.NotNil(t, s.Get("key-3"))
}
