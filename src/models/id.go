package models

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idCounter uint64

// generateID produces a unique identifier with the given prefix. IDs are
// ordered by creation time so they sort chronologically.
func generateID(prefix string) string {
	n := atomic.AddUint64(&idCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), n)
}
