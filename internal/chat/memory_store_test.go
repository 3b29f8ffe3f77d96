package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testRoom(id, name string) *Room {
	now := time.Now()
	return &Room{
		ID:        id,
		Name:      name,
		Status:    RoomOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStore_RoomRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateRoom(ctx, testRoom("room_1", "general")); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	got, err := store.GetRoom(ctx, "room_1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if got.Name != "general" {
		t.Errorf("expected name general, got %q", got.Name)
	}

	got.Status = RoomModerated
	got.FlagCount = 5
	if err := store.UpdateRoom(ctx, got); err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}
	got2, _ := store.GetRoom(ctx, "room_1")
	if got2.Status != RoomModerated || got2.FlagCount != 5 {
		t.Errorf("update not persisted: %+v", got2)
	}
}

func TestMemoryStore_DuplicateNameCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateRoom(ctx, testRoom("room_1", "General")); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	err := store.CreateRoom(ctx, testRoom("room_2", "general"))
	if !errors.Is(err, ErrRoomExists) {
		t.Errorf("expected ErrRoomExists, got %v", err)
	}
}

func TestMemoryStore_GetRoomNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetRoom(context.Background(), "room_missing")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	err = store.UpdateRoom(context.Background(), testRoom("room_missing", "x"))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound on update, got %v", err)
	}
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateRoom(ctx, testRoom("room_1", "general")); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	got, _ := store.GetRoom(ctx, "room_1")
	got.FlagCount = 99

	again, _ := store.GetRoom(ctx, "room_1")
	if again.FlagCount != 0 {
		t.Errorf("mutation leaked into store: flag count %d", again.FlagCount)
	}
}

func TestMemoryStore_MessagesNewestFirstWithLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateRoom(ctx, testRoom("room_1", "general")); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	for i, content := range []string{"first", "second", "third"} {
		m := &Message{
			ID:        "msg_" + content,
			RoomID:    "room_1",
			UserID:    "user_1",
			Content:   content,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		}
		if err := store.AppendMessage(ctx, m); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	msgs, err := store.ListMessages(ctx, "room_1", 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "third" || msgs[1].Content != "second" {
		t.Errorf("wrong ordering: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestMemoryStore_AppendToMissingRoom(t *testing.T) {
	store := NewMemoryStore()

	err := store.AppendMessage(context.Background(), &Message{ID: "msg_1", RoomID: "room_missing"})
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestMemoryStore_ListRooms(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	older := testRoom("room_1", "older")
	older.CreatedAt = time.Now().Add(-time.Hour)
	if err := store.CreateRoom(ctx, older); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := store.CreateRoom(ctx, testRoom("room_2", "newer")); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	rooms, err := store.ListRooms(ctx, 10)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "room_2" {
		t.Errorf("expected newest first, got %s", rooms[0].ID)
	}
}
