package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the key-value side channel consulted by dashboard reads and
// invalidated by every ledger mutation. Implementations must treat all
// operations as best-effort from the caller's point of view: a cache failure
// never decides the outcome of a ledger operation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// OwnerPrefix is the namespace under which all cached views of one owner live.
// Mutations invalidate the whole prefix so the next read is never stale beyond
// the mutation itself.
func OwnerPrefix(ownerKind, ownerID string) string {
	return fmt.Sprintf("tresorerie:%s:%s:", ownerKind, ownerID)
}
