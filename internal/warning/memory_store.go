package warning

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	warnings map[string]*WarningSign
}

// NewMemoryStore creates an in-memory warning store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{warnings: make(map[string]*WarningSign)}
}

func (s *MemoryStore) Create(ctx context.Context, w *WarningSign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings[w.ID] = cloneWarning(w)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*WarningSign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.warnings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWarning(w), nil
}

func (s *MemoryStore) Update(ctx context.Context, w *WarningSign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.warnings[w.ID]; !ok {
		return ErrNotFound
	}
	s.warnings[w.ID] = cloneWarning(w)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.warnings[id]; !ok {
		return ErrNotFound
	}
	delete(s.warnings, id)
	return nil
}

func (s *MemoryStore) ListActive(ctx context.Context, limit int) ([]*WarningSign, error) {
	return s.list(func(w *WarningSign) bool {
		return w.Status == StatusActive
	}, byRiskScoreDesc, limit), nil
}

func (s *MemoryStore) ListByNetwork(ctx context.Context, network Network, limit int) ([]*WarningSign, error) {
	return s.list(func(w *WarningSign) bool {
		return w.Network == network
	}, byRiskScoreDesc, limit), nil
}

func (s *MemoryStore) ListByRiskLevel(ctx context.Context, level RiskLevel, limit int) ([]*WarningSign, error) {
	return s.list(func(w *WarningSign) bool {
		return w.RiskLevel == level
	}, byRiskScoreDesc, limit), nil
}

func (s *MemoryStore) ListRelated(ctx context.Context, network Network, tags []RiskType, limit int) ([]*WarningSign, error) {
	return s.list(func(w *WarningSign) bool {
		if w.Status != StatusResolved || w.Network != network {
			return false
		}
		for _, t := range tags {
			if w.HasRiskType(t) {
				return true
			}
		}
		return false
	}, byResolvedAtDesc, limit), nil
}

func (s *MemoryStore) list(match func(*WarningSign) bool, less func(a, b *WarningSign) bool, limit int) []*WarningSign {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*WarningSign
	for _, w := range s.warnings {
		if match(w) {
			out = append(out, cloneWarning(w))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byRiskScoreDesc(a, b *WarningSign) bool {
	if a.AIAnalysis.RiskScore != b.AIAnalysis.RiskScore {
		return a.AIAnalysis.RiskScore > b.AIAnalysis.RiskScore
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func byResolvedAtDesc(a, b *WarningSign) bool {
	at, bt := a.CreatedAt, b.CreatedAt
	if a.Resolution != nil {
		at = a.Resolution.ResolvedAt
	}
	if b.Resolution != nil {
		bt = b.Resolution.ResolvedAt
	}
	return at.After(bt)
}

// cloneWarning deep-copies via JSON round-trip; the document is small and
// this keeps the copy honest as fields evolve.
func cloneWarning(w *WarningSign) *WarningSign {
	data, _ := json.Marshal(w)
	var out WarningSign
	_ = json.Unmarshal(data, &out)
	return &out
}
