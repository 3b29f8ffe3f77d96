package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	messages map[string][]*Message // room ID → messages, append order
	byID     map[string]*Message   // message ID → same entry as the room slice
}

// NewMemoryStore creates an in-memory chat store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*Room),
		messages: make(map[string][]*Message),
		byID:     make(map[string]*Message),
	}
}

func (s *MemoryStore) CreateRoom(ctx context.Context, r *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rooms {
		if strings.EqualFold(existing.Name, r.Name) {
			return ErrRoomExists
		}
	}
	cp := *r
	s.rooms[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpdateRoom(ctx context.Context, r *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ID]; !ok {
		return ErrRoomNotFound
	}
	cp := *r
	s.rooms[r.ID] = &cp
	return nil
}

func (s *MemoryStore) ListRooms(ctx context.Context, limit int) ([]*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[m.RoomID]; !ok {
		return ErrRoomNotFound
	}
	cp := *m
	s.messages[m.RoomID] = append(s.messages[m.RoomID], &cp)
	s.byID[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) UpdateMessage(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[m.ID]
	if !ok {
		return ErrMessageNotFound
	}
	*stored = *m
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	out := make([]*Message, 0, len(msgs))
	// newest first
	for i := len(msgs) - 1; i >= 0; i-- {
		cp := *msgs[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
