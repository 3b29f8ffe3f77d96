package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rugsentry/rugsentry/internal/idgen"
	"github.com/rugsentry/rugsentry/internal/metrics"
	"github.com/rugsentry/rugsentry/internal/scoring"
	"github.com/rugsentry/rugsentry/internal/syncutil"
)

// ErrValidation is wrapped around malformed chat input.
var ErrValidation = fmt.Errorf("invalid chat input")

// DefaultMessageLimit caps message history queries.
const DefaultMessageLimit = 100

// MaxContentLength bounds one message's content.
const MaxContentLength = 2000

// Broadcaster fans chat events out to room subscribers and reports how many
// were reached.
type Broadcaster interface {
	ChatMessage(roomID string, data map[string]any) int
	RoomModerated(roomID string, data map[string]any) int
}

// Service owns chat rooms and the inbound message scan pipeline.
type Service struct {
	store       Store
	broadcaster Broadcaster
	logger      *slog.Logger
	roomLocks   syncutil.ShardedMutex // serializes flag counting per room
	flagLocks   syncutil.ShardedMutex // serializes flag counting per message
}

// NewService creates the chat service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// WithBroadcaster attaches the live fan-out.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.broadcaster = b
	return s
}

// CreateRoom opens a new discussion room.
func (s *Service) CreateRoom(ctx context.Context, name, topic string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: room name required", ErrValidation)
	}

	now := time.Now()
	room := &Room{
		ID:        idgen.WithPrefix("room_"),
		Name:      name,
		Topic:     strings.TrimSpace(topic),
		Status:    RoomOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	s.logger.Info("chat room created", "roomId", room.ID, "name", room.Name)
	return room, nil
}

// GetRoom returns a room by ID.
func (s *Service) GetRoom(ctx context.Context, id string) (*Room, error) {
	return s.store.GetRoom(ctx, id)
}

// ListRooms returns rooms, newest first.
func (s *Service) ListRooms(ctx context.Context, limit int) ([]*Room, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListRooms(ctx, limit)
}

// ListMessages returns a room's recent messages, newest first.
func (s *Service) ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = DefaultMessageLimit
	}
	return s.store.ListMessages(ctx, roomID, limit)
}

// Post scans an inbound message, persists it, and broadcasts it to the room.
// The scan runs before any subscriber sees the message; flagged messages
// count toward the room's moderation threshold.
func (s *Service) Post(ctx context.Context, roomID, userID, content string) (*Message, error) {
	userID = strings.TrimSpace(userID)
	content = strings.TrimSpace(content)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: message content required", ErrValidation)
	}
	if len(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxContentLength)
	}

	unlock := s.roomLocks.Lock(roomID)
	defer unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	sentiment := scoring.ScoreSentiment(content)
	msg := &Message{
		ID:               idgen.WithPrefix("msg_"),
		RoomID:           room.ID,
		UserID:           userID,
		Content:          content,
		CredibilityScore: scoring.ScoreCredibility(content),
		FlaggedKeywords:  scoring.ScanKeywords(content),
		SentimentScore:   sentiment.Score,
		Sentiment:        string(sentiment.Label),
		Status:           MessageVisible,
		CreatedAt:        time.Now(),
	}

	if msg.Flagged() {
		metrics.ChatMessagesScanned.WithLabelValues("flagged").Inc()
	} else {
		metrics.ChatMessagesScanned.WithLabelValues("clean").Inc()
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	if msg.Flagged() {
		room.FlagCount++
		room.UpdatedAt = time.Now()
		// Escalate exactly when the fifth flag lands; later flags do not
		// re-fire the transition.
		if room.FlagCount == ModerationFlagThreshold && room.Status == RoomOpen {
			room.Status = RoomModerated
			metrics.AutoEscalations.WithLabelValues("room_moderated").Inc()
			s.logger.Warn("room escalated to moderated",
				"roomId", room.ID,
				"flagCount", room.FlagCount,
			)
			s.broadcastModerated(room)
		}
		if err := s.store.UpdateRoom(ctx, room); err != nil {
			return nil, err
		}
	}

	s.broadcastMessage(msg)
	return msg, nil
}

// FlagMessage records one community report against a message. The message is
// escalated to moderated exactly when the fifth flag lands; later flags keep
// counting but do not re-fire the transition.
func (s *Service) FlagMessage(ctx context.Context, roomID, messageID, reporterID string) (*Message, error) {
	if strings.TrimSpace(reporterID) == "" {
		return nil, fmt.Errorf("%w: reporter id required", ErrValidation)
	}

	unlock := s.flagLocks.Lock(messageID)
	defer unlock()

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.RoomID != roomID {
		return nil, ErrMessageNotFound
	}

	msg.FlagCount++
	if msg.FlagCount == ModerationFlagThreshold && msg.Status == MessageVisible {
		msg.Status = MessageModerated
		metrics.AutoEscalations.WithLabelValues("message_moderated").Inc()
		s.logger.Warn("message escalated to moderated",
			"roomId", msg.RoomID,
			"messageId", msg.ID,
			"flagCount", msg.FlagCount,
		)
	}
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) broadcastMessage(m *Message) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.ChatMessage(m.RoomID, map[string]any{
		"roomId":           m.RoomID,
		"messageId":        m.ID,
		"userId":           m.UserID,
		"content":          m.Content,
		"credibilityScore": m.CredibilityScore,
		"flaggedKeywords":  m.FlaggedKeywords,
		"sentiment":        m.Sentiment,
	})
}

func (s *Service) broadcastModerated(r *Room) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.RoomModerated(r.ID, map[string]any{
		"roomId":    r.ID,
		"status":    string(r.Status),
		"flagCount": r.FlagCount,
	})
}
