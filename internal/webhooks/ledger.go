package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDeliveryTTL        = 24 * time.Hour
	defaultLedgerMaxEntries   = 16384
	redisDeliveryLedgerPrefix = "appgate:webhook_delivery:"
)

// Ledger remembers deliveries that were processed successfully so provider retries of the
// same delivery id are acknowledged without running handlers again.
type Ledger interface {
	Seen(ctx context.Context, deliveryID string) (bool, error)
	Record(ctx context.Context, deliveryID string) error
}

type MemoryLedger struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time
	Now        func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = defaultDeliveryTTL
	}
	return &MemoryLedger{
		ttl:        ttl,
		maxEntries: defaultLedgerMaxEntries,
		entries:    map[string]time.Time{},
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLedger) Seen(_ context.Context, id string) (bool, error) {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[id]
	if !ok {
		return false, nil
	}
	if !now.Before(exp) {
		delete(l.entries, id)
		return false, nil
	}
	return true, nil
}

func (l *MemoryLedger) Record(_ context.Context, id string) error {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, k)
		}
	}
	// Still full after pruning: evict the entry closest to expiry.
	for len(l.entries) >= l.maxEntries {
		var oldest string
		var oldestExp time.Time
		for k, exp := range l.entries {
			if oldest == "" || exp.Before(oldestExp) {
				oldest, oldestExp = k, exp
			}
		}
		delete(l.entries, oldest)
	}
	l.entries[id] = now.Add(l.ttl)
	return nil
}

type redisLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLedger shares the processed-delivery set between replicas.
func NewRedisLedger(rdb *redis.Client, ttl time.Duration) Ledger {
	if ttl <= 0 {
		ttl = defaultDeliveryTTL
	}
	return &redisLedger{rdb: rdb, ttl: ttl}
}

func (l *redisLedger) Seen(ctx context.Context, id string) (bool, error) {
	n, err := l.rdb.Exists(ctx, redisDeliveryLedgerPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("webhooks: ledger lookup: %w", err)
	}
	return n > 0, nil
}

func (l *redisLedger) Record(ctx context.Context, id string) error {
	if err := l.rdb.Set(ctx, redisDeliveryLedgerPrefix+id, 1, l.ttl).Err(); err != nil {
		return fmt.Errorf("webhooks: ledger record: %w", err)
	}
	return nil
}
