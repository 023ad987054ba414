package models

import "time"

// EventType classifies a cache access event.
type EventType string

const (
	EventHit      EventType = "hit"
	EventMiss     EventType = "miss"
	EventEviction EventType = "eviction"
	EventPrefetch EventType = "prefetch"
	EventError    EventType = "error"
)

// TierSource identifies the storage tier an event originated from.
type TierSource string

const (
	SourceMemory  TierSource = "memory"
	SourceDisk    TierSource = "disk"
	SourceNetwork TierSource = "network"
	SourceCDN     TierSource = "cdn"
)

// CacheEvent represents a single recorded cache access.
type CacheEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Key       string            `json:"key"`
	Duration  time.Duration     `json:"duration_ns"`
	Size      int64             `json:"size,omitempty"`
	Source    TierSource        `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewCacheEvent creates a new CacheEvent instance
func NewCacheEvent(eventType EventType, key string, duration time.Duration, source TierSource) *CacheEvent {
	return &CacheEvent{
		ID:        generateID("evt"),
		Timestamp: time.Now(),
		Type:      eventType,
		Key:       key,
		Duration:  duration,
		Source:    source,
	}
}
