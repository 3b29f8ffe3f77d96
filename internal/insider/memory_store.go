package insider

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	tips   map[string]*Tip
	byHash map[string]string // submission hash → tip ID
}

// NewMemoryStore creates an in-memory tip store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tips:   make(map[string]*Tip),
		byHash: make(map[string]string),
	}
}

func clone(t *Tip) *Tip {
	cp := *t
	cp.FlaggedKeywords = append([]string(nil), t.FlaggedKeywords...)
	return &cp
}

func (s *MemoryStore) Create(ctx context.Context, t *Tip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[t.SubmissionHash]; ok {
		return ErrDuplicateSubmission
	}
	s.tips[t.ID] = clone(t)
	s.byHash[t.SubmissionHash] = t.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(t), nil
}

func (s *MemoryStore) GetByHash(ctx context.Context, submissionHash string) (*Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[submissionHash]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.tips[id]), nil
}

func (s *MemoryStore) Update(ctx context.Context, t *Tip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tips[t.ID]; !ok {
		return ErrNotFound
	}
	s.tips[t.ID] = clone(t)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, status TipStatus, limit int) ([]*Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Tip
	for _, t := range s.tips {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, clone(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
