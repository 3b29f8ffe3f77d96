package tombstone

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu         sync.RWMutex
	tombstones map[string]*Tombstone
}

// NewMemoryStore creates an in-memory tombstone store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tombstones: make(map[string]*Tombstone)}
}

func clone(t *Tombstone) *Tombstone {
	cp := *t
	cp.FraudTactics = append([]string(nil), t.FraudTactics...)
	cp.VerifiedBy = append([]string(nil), t.VerifiedBy...)
	return &cp
}

func (s *MemoryStore) Create(ctx context.Context, t *Tombstone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tombstones {
		if existing.Network == t.Network && existing.ContractAddress == t.ContractAddress {
			return ErrDuplicateContract
		}
	}
	s.tombstones[t.ID] = clone(t)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tombstones[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) GetByContract(ctx context.Context, network, contractAddress string) (*Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tombstones {
		if t.Network == network && t.ContractAddress == contractAddress {
			return clone(t), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Update(ctx context.Context, t *Tombstone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tombstones[t.ID]; !ok {
		return ErrNotFound
	}
	s.tombstones[t.ID] = clone(t)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tombstone, 0, len(s.tombstones))
	for _, t := range s.tombstones {
		out = append(out, clone(t))
	}
	sortByIncidentDesc(out)
	return truncate(out, limit), nil
}

func (s *MemoryStore) ListByNetwork(ctx context.Context, network string, limit int) ([]*Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Tombstone
	for _, t := range s.tombstones {
		if t.Network == network {
			out = append(out, clone(t))
		}
	}
	sortByIncidentDesc(out)
	return truncate(out, limit), nil
}

func (s *MemoryStore) ListSimilar(ctx context.Context, network string, tactics []string, excludeID string, limit int) ([]*Tombstone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Tombstone
	for _, t := range s.tombstones {
		if t.ID == excludeID || t.Network != network || t.Status != VerificationVerified {
			continue
		}
		if !sharesTactic(t, tactics) {
			continue
		}
		out = append(out, clone(t))
	}
	sortByIncidentDesc(out)
	return truncate(out, limit), nil
}

func sharesTactic(t *Tombstone, tactics []string) bool {
	for _, tactic := range tactics {
		if t.HasTactic(tactic) {
			return true
		}
	}
	return false
}

func sortByIncidentDesc(ts []*Tombstone) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].IncidentDate.After(ts[j].IncidentDate) })
}

func truncate(ts []*Tombstone, limit int) []*Tombstone {
	if limit > 0 && len(ts) > limit {
		return ts[:limit]
	}
	return ts
}
