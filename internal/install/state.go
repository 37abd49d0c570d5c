package install

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStateTTL = 10 * time.Minute

// StateRecord binds an anti-forgery state to the shop that started the handshake.
type StateRecord struct {
	State     string
	Shop      string
	ExpiresAt time.Time
}

// StateStore keeps pending handshakes. Consume must be single-use: a second call for the
// same state fails even if the first succeeded.
type StateStore interface {
	Save(ctx context.Context, rec StateRecord) error
	Consume(ctx context.Context, state string) (StateRecord, error)
}

func generateState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("install: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

type memoryStates struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]StateRecord
}

// NewMemoryStateStore is the single-process StateStore.
func NewMemoryStateStore(ttl time.Duration) StateStore {
	return newMemoryStates(ttl, func() time.Time { return time.Now().UTC() })
}

func newMemoryStates(ttl time.Duration, now func() time.Time) *memoryStates {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &memoryStates{ttl: ttl, now: now, entries: map[string]StateRecord{}}
}

func (s *memoryStates) Save(_ context.Context, rec StateRecord) error {
	if rec.State == "" {
		return errors.New("install: state is required")
	}
	now := s.now()
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = now.Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.entries {
		if now.After(v.ExpiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[rec.State] = rec
	return nil
}

func (s *memoryStates) Consume(_ context.Context, state string) (StateRecord, error) {
	s.mu.Lock()
	rec, ok := s.entries[state]
	delete(s.entries, state)
	s.mu.Unlock()
	if !ok || state == "" {
		return StateRecord{}, fmt.Errorf("%w: unknown or already used", ErrInvalidState)
	}
	if s.now().After(rec.ExpiresAt) {
		return StateRecord{}, fmt.Errorf("%w: expired", ErrInvalidState)
	}
	return rec, nil
}

type redisStates struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStateStore shares pending handshakes between replicas. Expiry is left to Redis.
func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) StateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &redisStates{rdb: rdb, ttl: ttl, prefix: "appgate:oauth_state:"}
}

func (s *redisStates) Save(ctx context.Context, rec StateRecord) error {
	if rec.State == "" {
		return errors.New("install: state is required")
	}
	ttl := s.ttl
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+rec.State, rec.Shop, ttl).Result()
	if err != nil {
		return fmt.Errorf("install: save state: %w", err)
	}
	if !ok {
		return errors.New("install: state collision")
	}
	return nil
}

func (s *redisStates) Consume(ctx context.Context, state string) (StateRecord, error) {
	if state == "" {
		return StateRecord{}, fmt.Errorf("%w: empty", ErrInvalidState)
	}
	shop, err := s.rdb.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return StateRecord{}, fmt.Errorf("%w: unknown, expired or already used", ErrInvalidState)
	}
	if err != nil {
		return StateRecord{}, fmt.Errorf("install: consume state: %w", err)
	}
	return StateRecord{State: state, Shop: shop}, nil
}
