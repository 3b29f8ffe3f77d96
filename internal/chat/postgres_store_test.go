//go:build integration

package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rugsentry/rugsentry/internal/testutil"
)

func pgRoom(id, name string) *Room {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Room{
		ID:        id,
		Name:      name,
		Topic:     "MoonSafe on BSC",
		Status:    RoomOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgresChat_RoomRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.CreateRoom(ctx, pgRoom("room_pg1", "moon-safe-watch")); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	got, err := store.GetRoom(ctx, "room_pg1")
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if got.Name != "moon-safe-watch" || got.Status != RoomOpen {
		t.Errorf("GetRoom() = %+v", got)
	}
}

func TestPostgresChat_DuplicateRoomName(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.CreateRoom(ctx, pgRoom("room_pg2", "rug-watch")); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	// Case-insensitive collision via the lower(name) unique index
	err := store.CreateRoom(ctx, pgRoom("room_pg3", "Rug-Watch"))
	if !errors.Is(err, ErrRoomExists) {
		t.Errorf("CreateRoom() duplicate error = %v, want ErrRoomExists", err)
	}
}

func TestPostgresChat_MessagesNewestFirst(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.CreateRoom(ctx, pgRoom("room_pg4", "message-ordering")); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, content := range []string{"first", "second", "third"} {
		m := &Message{
			ID:        "msg_pg" + content,
			RoomID:    "room_pg4",
			UserID:    "user_1",
			Content:   content,
			Sentiment: "neutral",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendMessage(ctx, m); err != nil {
			t.Fatalf("AppendMessage(%s) error = %v", content, err)
		}
	}

	got, err := store.ListMessages(ctx, "room_pg4", 2)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListMessages() returned %d messages, want 2", len(got))
	}
	if got[0].Content != "third" || got[1].Content != "second" {
		t.Errorf("ListMessages() order = [%s, %s], want [third, second]", got[0].Content, got[1].Content)
	}
}

func TestPostgresChat_AppendToMissingRoom(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	m := &Message{
		ID:        "msg_pg_orphan",
		RoomID:    "room_missing",
		UserID:    "user_1",
		Content:   "hello",
		Sentiment: "neutral",
		CreatedAt: time.Now(),
	}
	if err := store.AppendMessage(ctx, m); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("AppendMessage() error = %v, want ErrRoomNotFound", err)
	}
}

func TestPostgresChat_UpdateRoomFlagCount(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	room := pgRoom("room_pg5", "flag-count")
	if err := store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	room.FlagCount = 5
	room.Status = RoomModerated
	if err := store.UpdateRoom(ctx, room); err != nil {
		t.Fatalf("UpdateRoom() error = %v", err)
	}

	got, err := store.GetRoom(ctx, "room_pg5")
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if got.FlagCount != 5 || got.Status != RoomModerated {
		t.Errorf("after UpdateRoom: flags=%d status=%q", got.FlagCount, got.Status)
	}
}

func TestPostgresChat_MessageFlagPersistence(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if err := store.CreateRoom(ctx, pgRoom("room_pg6", "flag-room")); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	msg := &Message{
		ID:        "msg_pg_flag",
		RoomID:    "room_pg6",
		UserID:    "user_1",
		Content:   "looks sketchy",
		Status:    MessageVisible,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	got, err := store.GetMessage(ctx, "msg_pg_flag")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if got.Status != MessageVisible || got.FlagCount != 0 {
		t.Errorf("GetMessage() = %s/%d, want visible/0", got.Status, got.FlagCount)
	}

	got.FlagCount = 5
	got.Status = MessageModerated
	if err := store.UpdateMessage(ctx, got); err != nil {
		t.Fatalf("UpdateMessage() error = %v", err)
	}
	again, err := store.GetMessage(ctx, "msg_pg_flag")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if again.Status != MessageModerated || again.FlagCount != 5 {
		t.Errorf("GetMessage() after update = %s/%d, want moderated/5", again.Status, again.FlagCount)
	}

	if _, err := store.GetMessage(ctx, "msg_pg_gone"); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("GetMessage() missing = %v, want ErrMessageNotFound", err)
	}
	if err := store.UpdateMessage(ctx, &Message{ID: "msg_pg_gone"}); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("UpdateMessage() missing = %v, want ErrMessageNotFound", err)
	}
}
