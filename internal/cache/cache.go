// Package cache stores generated comparison payloads keyed by a request
// fingerprint. Entries expire after a TTL; expired entries are treated as
// absent. Set is last-writer-wins.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Payload is the cached outcome of one successful generator call.
type Payload struct {
	Mode          string          `json:"mode"`
	ComparisonKey string          `json:"comparisonKey,omitempty"`
	Product1      string          `json:"product1,omitempty"`
	Product2      string          `json:"product2,omitempty"`
	Content       string          `json:"content"`
	Structured    json.RawMessage `json:"structured,omitempty"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

// Store is implemented by every cache backend.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Payload, bool)
	Set(ctx context.Context, fingerprint string, p Payload, ttl time.Duration)
}
