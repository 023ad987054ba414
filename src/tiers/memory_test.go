package tiers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExpiredEntryIsAMiss(t *testing.T) {
	tier := NewMemoryTier(10)
	ctx := context.Background()

	tier.Set(ctx, "pet_profile:1", "buddy", SetOptions{TTL: 10 * time.Millisecond})

	value, ok := tier.Get(ctx, "pet_profile:1")
	require.True(t, ok)
	assert.Equal(t, "buddy", value)

	time.Sleep(25 * time.Millisecond)

	_, ok = tier.Get(ctx, "pet_profile:1")
	assert.False(t, ok)
	assert.Equal(t, 0, tier.Len())

	stats := tier.Statistics()
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Equal(t, int64(1), stats.EvictionCount)
}

func TestSetWithoutTTLNeverExpires(t *testing.T) {
	tier := NewMemoryTier(10)
	ctx := context.Background()

	tier.Set(ctx, "pet_list", []string{"buddy", "max"}, SetOptions{})

	assert.Equal(t, 0, tier.Compact())
	_, ok := tier.Get(ctx, "pet_list")
	assert.True(t, ok)
}

func TestEvictionPrefersExpiredEntries(t *testing.T) {
	tier := NewMemoryTier(2)
	ctx := context.Background()

	tier.Set(ctx, "stale", "a", SetOptions{TTL: time.Nanosecond, Priority: 9})
	tier.Set(ctx, "fresh", "b", SetOptions{Priority: 1})
	time.Sleep(time.Millisecond)

	tier.Set(ctx, "incoming", "c", SetOptions{Priority: 5})

	_, ok := tier.Get(ctx, "fresh")
	assert.True(t, ok, "low-priority live entry survives while an expired one exists")
	_, ok = tier.Get(ctx, "incoming")
	assert.True(t, ok)
}

func TestEvictionPicksLowestPriorityThenOldest(t *testing.T) {
	tier := NewMemoryTier(3)
	ctx := context.Background()

	tier.Set(ctx, "low-old", "a", SetOptions{Priority: 1})
	time.Sleep(2 * time.Millisecond)
	tier.Set(ctx, "low-new", "b", SetOptions{Priority: 1})
	tier.Set(ctx, "high", "c", SetOptions{Priority: 8})

	tier.Set(ctx, "incoming", "d", SetOptions{Priority: 5})

	_, ok := tier.Get(ctx, "low-old")
	assert.False(t, ok, "lowest priority with the oldest access goes first")
	for _, key := range []string{"low-new", "high", "incoming"} {
		_, ok := tier.Get(ctx, key)
		assert.True(t, ok, key)
	}
}

func TestGetRefreshesAccessRank(t *testing.T) {
	tier := NewMemoryTier(2)
	ctx := context.Background()

	tier.Set(ctx, "first", "a", SetOptions{Priority: 1})
	time.Sleep(2 * time.Millisecond)
	tier.Set(ctx, "second", "b", SetOptions{Priority: 1})
	time.Sleep(2 * time.Millisecond)

	_, ok := tier.Get(ctx, "first")
	require.True(t, ok)

	tier.Set(ctx, "third", "c", SetOptions{Priority: 1})

	_, ok = tier.Get(ctx, "first")
	assert.True(t, ok, "recently read entry is not the eviction victim")
	_, ok = tier.Get(ctx, "second")
	assert.False(t, ok)
}

func TestSetOverwriteDoesNotEvict(t *testing.T) {
	tier := NewMemoryTier(2)
	ctx := context.Background()

	tier.Set(ctx, "a", "one", SetOptions{})
	tier.Set(ctx, "b", "two", SetOptions{})
	tier.Set(ctx, "a", "three", SetOptions{})

	assert.Equal(t, 2, tier.Len())
	assert.Equal(t, int64(0), tier.Statistics().EvictionCount)

	value, _ := tier.Get(ctx, "a")
	assert.Equal(t, "three", value)
}

func TestResizeShrinksAndEvicts(t *testing.T) {
	tier := NewMemoryTier(4)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d"} {
		tier.Set(ctx, key, key, SetOptions{})
	}
	require.Equal(t, 4, tier.Len())

	tier.Resize(2)

	assert.Equal(t, 2, tier.Capacity())
	assert.Equal(t, 2, tier.Len())
	assert.Equal(t, int64(2), tier.Statistics().EvictionCount)

	tier.Resize(0)
	assert.Equal(t, 2, tier.Capacity(), "non-positive capacity is ignored")
}

func TestCompactDropsOnlyExpired(t *testing.T) {
	tier := NewMemoryTier(10)
	ctx := context.Background()

	tier.Set(ctx, "gone-1", "a", SetOptions{TTL: time.Nanosecond})
	tier.Set(ctx, "gone-2", "b", SetOptions{TTL: time.Nanosecond})
	tier.Set(ctx, "kept", "c", SetOptions{TTL: time.Hour})
	time.Sleep(time.Millisecond)

	assert.Equal(t, 2, tier.Compact())
	assert.Equal(t, 1, tier.Len())
}

func TestStatisticsTracksUsage(t *testing.T) {
	tier := NewMemoryTier(4)
	ctx := context.Background()

	tier.Set(ctx, "a", "1234", SetOptions{})
	tier.Set(ctx, "b", []byte("12345678"), SetOptions{})

	stats := tier.Statistics()
	assert.Equal(t, int64(12), stats.MemoryUsage)
	assert.InDelta(t, 0.5, stats.UsagePercent, 1e-9)

	tier.Remove(ctx, "b")
	stats = tier.Statistics()
	assert.Equal(t, int64(4), stats.MemoryUsage)
	assert.Equal(t, int64(0), stats.EvictionCount, "explicit removal is not an eviction")
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, defaultMaxEntries, NewMemoryTier(0).Capacity())
	assert.Equal(t, defaultMaxEntries, NewMemoryTier(-5).Capacity())
}
