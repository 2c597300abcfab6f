package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedDoc struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryCacheStructRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "doc", cachedDoc{Name: "limits", Value: 2.5}, 0))

	var got cachedDoc
	require.NoError(t, mc.Get(ctx, "doc", &got))
	assert.Equal(t, "limits", got.Name)
	assert.InDelta(t, 2.5, got.Value, 1e-9)
}

func TestMemoryCacheStringRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "raw-value", 0))

	var got string
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, "raw-value", got)
}

func TestMemoryCacheMissAndDelete(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var got cachedDoc
	assert.ErrorIs(t, mc.Get(ctx, "absent", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "doc", cachedDoc{Name: "x"}, 0))
	require.NoError(t, mc.Delete(ctx, "doc"))
	assert.ErrorIs(t, mc.Get(ctx, "doc", &got), ErrCacheMiss)
}
