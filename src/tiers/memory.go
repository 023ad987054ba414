package tiers

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const defaultMaxEntries = 500

type memoryEntry struct {
	data       interface{}
	size       int64
	priority   int
	expiresAt  time.Time
	lastAccess time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryTier is the reference in-process cache tier: a TTL map with
// priority-aware eviction on overflow.
type MemoryTier struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	maxEntries int

	hits      int64
	misses    int64
	evictions int64
	usedBytes int64
}

// NewMemoryTier creates a new MemoryTier instance
func NewMemoryTier(maxEntries int) *MemoryTier {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryTier{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
	}
}

// Get retrieves an entry, treating expired entries as misses and
// removing them on access.
func (t *MemoryTier) Get(ctx context.Context, key string) (interface{}, bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		t.misses++
		return nil, false
	}
	if entry.expired(now) {
		t.removeLocked(key, entry, true)
		t.misses++
		return nil, false
	}

	entry.lastAccess = now
	t.hits++
	return entry.data, true
}

// Set stores an entry, evicting lower-priority entries when full.
func (t *MemoryTier) Set(ctx context.Context, key string, data interface{}, opts SetOptions) bool {
	now := time.Now()

	entry := &memoryEntry{
		data:       data,
		size:       estimateSize(data),
		priority:   opts.Priority,
		lastAccess: now,
	}
	if opts.TTL > 0 {
		entry.expiresAt = now.Add(opts.TTL)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[key]; ok {
		t.usedBytes -= old.size
	} else if len(t.entries) >= t.maxEntries {
		t.evictLocked(now)
	}

	t.entries[key] = entry
	t.usedBytes += entry.size
	return true
}

// Remove deletes an entry without counting an eviction
func (t *MemoryTier) Remove(ctx context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return false
	}
	t.removeLocked(key, entry, false)
	return true
}

// Statistics returns the tier's current snapshot
func (t *MemoryTier) Statistics() TierStatistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := t.hits + t.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(t.hits) / float64(total)
	}
	return TierStatistics{
		HitRate:       hitRate,
		MemoryUsage:   t.usedBytes,
		EvictionCount: t.evictions,
		UsagePercent:  float64(len(t.entries)) / float64(t.maxEntries),
	}
}

// Resize changes the entry capacity, evicting down to the new bound when
// shrinking.
func (t *MemoryTier) Resize(maxEntries int) {
	if maxEntries <= 0 {
		return
	}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.maxEntries = maxEntries
	for len(t.entries) > t.maxEntries {
		t.evictLocked(now)
	}
}

// Capacity returns the current entry capacity
func (t *MemoryTier) Capacity() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxEntries
}

// Len returns the number of live entries
func (t *MemoryTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Compact drops all expired entries and returns how many were removed.
func (t *MemoryTier) Compact() int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, entry := range t.entries {
		if entry.expired(now) {
			t.removeLocked(key, entry, true)
			removed++
		}
	}
	return removed
}

// evictLocked frees one slot: expired entries first, then the entry with
// the lowest (priority, lastAccess) rank.
func (t *MemoryTier) evictLocked(now time.Time) {
	for key, entry := range t.entries {
		if entry.expired(now) {
			t.removeLocked(key, entry, true)
			return
		}
	}

	var victimKey string
	var victim *memoryEntry
	for key, entry := range t.entries {
		if victim == nil || entry.priority < victim.priority ||
			(entry.priority == victim.priority && entry.lastAccess.Before(victim.lastAccess)) {
			victimKey = key
			victim = entry
		}
	}
	if victim != nil {
		t.removeLocked(victimKey, victim, true)
	}
}

func (t *MemoryTier) removeLocked(key string, entry *memoryEntry, evicted bool) {
	delete(t.entries, key)
	t.usedBytes -= entry.size
	if evicted {
		t.evictions++
	}
}

// estimateSize approximates an entry's footprint via its JSON encoding.
func estimateSize(data interface{}) int64 {
	switch v := data.(type) {
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return 64
	}
	return int64(len(encoded))
}
