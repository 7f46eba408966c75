package orders

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/settlement-reconciliation/internal/domain/order"
)

// CachedResolver memoizes resolver answers for a TTL. Unknown orders are
// cached too; a settlement usually references the same handful of orders many
// times and re-asking the API for each line is wasteful.
type CachedResolver struct {
	next   order.Resolver
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	info      *order.Info // nil means the order is unknown
	fetchedAt time.Time
}

// NewCachedResolver wraps next with a TTL cache.
func NewCachedResolver(logger *slog.Logger, next order.Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:    next,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// Resolve returns the cached answer when fresh, otherwise asks the next
// resolver and stores the result. Errors are not cached.
func (r *CachedResolver) Resolve(ctx context.Context, orderID string) (*order.Info, error) {
	r.mu.RLock()
	entry, ok := r.entries[orderID]
	r.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < r.ttl {
		return entry.info, nil
	}

	info, err := r.next.Resolve(ctx, orderID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.entries[orderID] = cacheEntry{info: info, fetchedAt: time.Now()}
	r.mu.Unlock()

	return info, nil
}

// Warm resolves the given order IDs concurrently through a bounded worker
// pool so the subsequent reconciliation run hits only the cache. Lookup
// failures are ignored here; the run itself routes unresolved lines to
// review.
func (r *CachedResolver) Warm(ctx context.Context, orderIDs []string, poolSize int) error {
	distinct := make([]string, 0, len(orderIDs))
	seen := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	if len(distinct) == 0 {
		return nil
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, id := range distinct {
		orderID := id
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if _, err := r.Resolve(ctx, orderID); err != nil {
				r.logger.Debug("Cache warm lookup failed",
					"order_id", orderID,
					"error", err)
			}
		})
		if submitErr != nil {
			wg.Done()
			r.logger.Warn("Failed to submit cache warm task",
				"order_id", orderID,
				"error", submitErr)
		}
	}
	wg.Wait()

	return nil
}

// Invalidate drops an order from the cache.
func (r *CachedResolver) Invalidate(orderID string) {
	r.mu.Lock()
	delete(r.entries, orderID)
	r.mu.Unlock()
}
