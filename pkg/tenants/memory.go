// pkg/tenants/memory.go
package tenants

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memStore struct {
	log    *zap.SugaredLogger
	mu     sync.RWMutex
	byShop map[string]Tenant
	now    func() time.Time
}

// NewMemoryStore is the dev/test Store. A single lock serialises writes, so per-tenant
// upserts are linearizable.
func NewMemoryStore(log *zap.SugaredLogger) Store {
	return &memStore{log: log, byShop: map[string]Tenant{}, now: func() time.Time { return time.Now().UTC() }}
}

func (m *memStore) Upsert(_ context.Context, tenantID, accessToken string, scope []string) (Tenant, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byShop[tenantID]
	if !ok {
		t = Tenant{ID: tenantID, InstalledAt: now}
	}
	t.AccessToken = accessToken
	t.Scope = NormalizeScope(scope)
	t.Status = StatusActive
	t.UninstalledAt = nil
	t.UpdatedAt = now
	m.byShop[tenantID] = t
	return clone(t), nil
}

func (m *memStore) Get(_ context.Context, tenantID string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.byShop[tenantID]; ok {
		return clone(t), nil
	}
	return Tenant{}, ErrNotFound
}

func (m *memStore) MarkUninstalled(_ context.Context, tenantID string) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byShop[tenantID]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status == StatusUninstalled {
		return false, nil
	}
	t.Status = StatusUninstalled
	t.UninstalledAt = &now
	t.UpdatedAt = now
	m.byShop[tenantID] = t
	return true, nil
}

func (m *memStore) UpdateScope(_ context.Context, tenantID string, scope []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byShop[tenantID]
	if !ok {
		return ErrNotFound
	}
	if t.Status != StatusActive {
		return nil
	}
	t.Scope = NormalizeScope(scope)
	t.UpdatedAt = m.now()
	m.byShop[tenantID] = t
	return nil
}
