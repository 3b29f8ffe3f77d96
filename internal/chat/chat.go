// Package chat implements discussion rooms with inbound message risk scanning.
//
// Every message is scanned for risk keywords and credibility-scored before it
// reaches any subscriber. Community flags escalate a message to moderated
// status, and keyword-flagged messages escalate their room, both exactly
// when the fifth flag lands.
package chat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRoomNotFound is returned when no room exists for an id.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrRoomExists is returned when creating a room whose name is taken.
	ErrRoomExists = errors.New("chat room already exists")
	// ErrMessageNotFound is returned when no message exists for an id.
	ErrMessageNotFound = errors.New("chat message not found")
)

// ModerationFlagThreshold is the flag count at which a room or a message is
// escalated to moderated.
const ModerationFlagThreshold = 5

// RoomStatus is the moderation state of a room.
type RoomStatus string

const (
	RoomOpen      RoomStatus = "open"
	RoomModerated RoomStatus = "moderated"
)

// Room is one discussion channel, usually tied to a project or network.
type Room struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Topic     string     `json:"topic,omitempty"`
	Status    RoomStatus `json:"status"`
	FlagCount int        `json:"flagCount"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// MessageStatus is the moderation state of one message.
type MessageStatus string

const (
	MessageVisible   MessageStatus = "visible"
	MessageModerated MessageStatus = "moderated"
)

// Message is one chat message after the inbound risk scan. FlagCount is the
// community report tally; FlaggedKeywords is the automatic keyword scan.
type Message struct {
	ID               string        `json:"id"`
	RoomID           string        `json:"roomId"`
	UserID           string        `json:"userId"`
	Content          string        `json:"content"`
	CredibilityScore int           `json:"credibilityScore"`
	FlaggedKeywords  []string      `json:"flaggedKeywords,omitempty"`
	SentimentScore   float64       `json:"sentimentScore"`
	Sentiment        string        `json:"sentiment"`
	FlagCount        int           `json:"flagCount"`
	Status           MessageStatus `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// Flagged reports whether the scan matched any risk keyword.
func (m *Message) Flagged() bool {
	return len(m.FlaggedKeywords) > 0
}

// Store persists rooms and messages.
type Store interface {
	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	UpdateRoom(ctx context.Context, r *Room) error
	ListRooms(ctx context.Context, limit int) ([]*Room, error)

	AppendMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	UpdateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}
