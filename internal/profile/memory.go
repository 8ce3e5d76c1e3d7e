package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. Its lifetime is that of the value;
// nothing is shared between instances.
type MemoryStore struct {
	profiles map[memoryKey]*FormatProfile
	now      func() time.Time
	mu       sync.RWMutex
}

type memoryKey struct {
	tenant      string
	fingerprint string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[memoryKey]*FormatProfile),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns a copy of the stored profile, or ErrNotFound.
func (m *MemoryStore) Lookup(ctx context.Context, tenantID string, labels []string) (*FormatProfile, error) {
	if err := validateKey(ctx, tenantID, labels); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[memoryKey{tenantID, Fingerprint(labels)}]
	if !ok {
		return nil, ErrNotFound
	}
	p.UsageCount++
	p.LastUsed = m.now()
	return clone(p), nil
}

// Save upserts the profile and replaces its mappings.
func (m *MemoryStore) Save(ctx context.Context, tenantID string, labels []string, mappings map[string]string) (*FormatProfile, error) {
	if err := validateKey(ctx, tenantID, labels); err != nil {
		return nil, err
	}
	now := m.now()
	key := memoryKey{tenantID, Fingerprint(labels)}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[key]
	if !ok {
		p = &FormatProfile{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			Fingerprint: key.fingerprint,
			CreatedAt:   now,
			UsageCount:  1,
		}
		m.profiles[key] = p
	}
	p.HeaderLabels = append([]string(nil), labels...)
	p.Mappings = FilterMappings(mappings)
	p.UpdatedAt = now
	p.LastUsed = now
	return clone(p), nil
}

// List returns copies of the tenant's profiles, most recently updated first.
func (m *MemoryStore) List(ctx context.Context, tenantID string) ([]FormatProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []FormatProfile
	for k, p := range m.profiles {
		if k.tenant == tenantID {
			out = append(out, *clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func clone(p *FormatProfile) *FormatProfile {
	c := *p
	c.HeaderLabels = append([]string(nil), p.HeaderLabels...)
	c.Mappings = copyMappings(p.Mappings)
	return &c
}
