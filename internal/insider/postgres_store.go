package insider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists insider tips in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed tip store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tipColumns = `
	id, project_name, network, contract_address, content, submission_hash,
	credibility_score, flagged_keywords, status, report_count, submitted_by,
	reviewed_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, t *Tip) error {
	keywords, err := json.Marshal(t.FlaggedKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insider_tips (`+tipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		t.ID, t.ProjectName, t.Network, t.ContractAddress, t.Content, t.SubmissionHash,
		t.CredibilityScore, keywords, string(t.Status), t.ReportCount, t.SubmittedBy,
		t.ReviewedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to insert tip: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Tip, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tipColumns+`
		FROM insider_tips WHERE id = $1
	`, id)
	return scanTip(row)
}

func (s *PostgresStore) GetByHash(ctx context.Context, submissionHash string) (*Tip, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tipColumns+`
		FROM insider_tips WHERE submission_hash = $1
	`, submissionHash)
	return scanTip(row)
}

func (s *PostgresStore) Update(ctx context.Context, t *Tip) error {
	keywords, err := json.Marshal(t.FlaggedKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE insider_tips SET
			project_name = $2, network = $3, contract_address = $4, content = $5,
			credibility_score = $6, flagged_keywords = $7, status = $8,
			report_count = $9, reviewed_by = $10, updated_at = $11
		WHERE id = $1
	`,
		t.ID, t.ProjectName, t.Network, t.ContractAddress, t.Content,
		t.CredibilityScore, keywords, string(t.Status),
		t.ReportCount, t.ReviewedBy, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, status TipStatus, limit int) ([]*Tip, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+tipColumns+`
			FROM insider_tips
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+tipColumns+`
			FROM insider_tips
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tips: %w", err)
	}
	defer rows.Close()

	var out []*Tip
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTip(row rowScanner) (*Tip, error) {
	var t Tip
	var status string
	var keywords []byte
	err := row.Scan(
		&t.ID, &t.ProjectName, &t.Network, &t.ContractAddress, &t.Content, &t.SubmissionHash,
		&t.CredibilityScore, &keywords, &status, &t.ReportCount, &t.SubmittedBy,
		&t.ReviewedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tip: %w", err)
	}
	t.Status = TipStatus(status)
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &t.FlaggedKeywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	return &t, nil
}
