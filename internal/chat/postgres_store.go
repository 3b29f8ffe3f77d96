package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists chat rooms and messages in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed chat store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateRoom(ctx context.Context, r *Room) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_rooms (id, name, topic, status, flag_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.Name, r.Topic, string(r.Status), r.FlagCount, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrRoomExists
		}
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*Room, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, topic, status, flag_count, created_at, updated_at
		FROM chat_rooms WHERE id = $1
	`, id)
	return scanRoom(row)
}

func (s *PostgresStore) UpdateRoom(ctx context.Context, r *Room) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_rooms SET
			name = $2, topic = $3, status = $4, flag_count = $5, updated_at = $6
		WHERE id = $1
	`, r.ID, r.Name, r.Topic, string(r.Status), r.FlagCount, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresStore) ListRooms(ctx context.Context, limit int) ([]*Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, topic, status, flag_count, created_at, updated_at
		FROM chat_rooms
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendMessage(ctx context.Context, m *Message) error {
	keywords, err := json.Marshal(m.FlaggedKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, room_id, user_id, content, credibility_score,
			flagged_keywords, sentiment_score, sentiment, flag_count, status, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE EXISTS (SELECT 1 FROM chat_rooms WHERE id = $2)
	`, m.ID, m.RoomID, m.UserID, m.Content, m.CredibilityScore,
		keywords, m.SentimentScore, m.Sentiment, m.FlagCount, string(m.Status), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, user_id, content, credibility_score,
			flagged_keywords, sentiment_score, sentiment, flag_count, status, created_at
		FROM chat_messages WHERE id = $1
	`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	return m, err
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, m *Message) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages SET flag_count = $2, status = $3
		WHERE id = $1
	`, m.ID, m.FlagCount, string(m.Status))
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, content, credibility_score,
			flagged_keywords, sentiment_score, sentiment, flag_count, status, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var keywords []byte
	var status string
	err := row.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Content, &m.CredibilityScore,
		&keywords, &m.SentimentScore, &m.Sentiment, &m.FlagCount, &status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	m.Status = MessageStatus(status)
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &m.FlaggedKeywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	return &m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*Room, error) {
	var r Room
	var status string
	err := row.Scan(&r.ID, &r.Name, &r.Topic, &status, &r.FlagCount, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	r.Status = RoomStatus(status)
	return &r, nil
}
