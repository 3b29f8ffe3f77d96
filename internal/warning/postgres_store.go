package warning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore persists warnings in PostgreSQL.
//
// The document-shaped parts (evidence, analysis, notifications) live in
// JSONB; risk_score is denormalized into its own column so the
// score-descending indexes stay usable.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed warning store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const warningColumns = `
	id, project_name, token_symbol, network, contract_address, pair_address,
	risk_types, risk_level, risk_score, description, evidence, ai_analysis,
	status, notifications, verified_by, resolution, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, w *WarningSign) error {
	doc, err := marshalWarningDoc(w)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO warnings (`+warningColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		w.ID, w.ProjectName, w.TokenSymbol, string(w.Network), w.ContractAddress, w.PairAddress,
		doc.riskTypes, string(w.RiskLevel), w.AIAnalysis.RiskScore, w.Description, doc.evidence, doc.analysis,
		string(w.Status), doc.notifications, doc.verifiedBy, doc.resolution, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert warning: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*WarningSign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+warningColumns+`
		FROM warnings WHERE id = $1
	`, id)
	w, err := scanWarning(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

func (s *PostgresStore) Update(ctx context.Context, w *WarningSign) error {
	doc, err := marshalWarningDoc(w)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE warnings SET
			project_name = $2, token_symbol = $3, network = $4,
			contract_address = $5, pair_address = $6, risk_types = $7,
			risk_level = $8, risk_score = $9, description = $10,
			evidence = $11, ai_analysis = $12, status = $13,
			notifications = $14, verified_by = $15, resolution = $16,
			updated_at = $17
		WHERE id = $1
	`,
		w.ID, w.ProjectName, w.TokenSymbol, string(w.Network),
		w.ContractAddress, w.PairAddress, doc.riskTypes,
		string(w.RiskLevel), w.AIAnalysis.RiskScore, w.Description,
		doc.evidence, doc.analysis, string(w.Status),
		doc.notifications, doc.verifiedBy, doc.resolution,
		w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update warning: %w", err)
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

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM warnings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete warning: %w", err)
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

func (s *PostgresStore) ListActive(ctx context.Context, limit int) ([]*WarningSign, error) {
	return s.query(ctx, `
		SELECT `+warningColumns+`
		FROM warnings
		WHERE status = 'active'
		ORDER BY risk_score DESC, created_at DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresStore) ListByNetwork(ctx context.Context, network Network, limit int) ([]*WarningSign, error) {
	return s.query(ctx, `
		SELECT `+warningColumns+`
		FROM warnings
		WHERE network = $1
		ORDER BY risk_score DESC, created_at DESC
		LIMIT $2
	`, string(network), limit)
}

func (s *PostgresStore) ListByRiskLevel(ctx context.Context, level RiskLevel, limit int) ([]*WarningSign, error) {
	return s.query(ctx, `
		SELECT `+warningColumns+`
		FROM warnings
		WHERE risk_level = $1
		ORDER BY risk_score DESC, created_at DESC
		LIMIT $2
	`, string(level), limit)
}

func (s *PostgresStore) ListRelated(ctx context.Context, network Network, tags []RiskType, limit int) ([]*WarningSign, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	// risk_types is a JSONB array; ?| matches any shared element. The
	// resolution column is JSON stored as TEXT, so it needs the jsonb cast
	// before the timestamp can be pulled out for ordering.
	return s.query(ctx, `
		SELECT `+warningColumns+`
		FROM warnings
		WHERE status = 'resolved'
		  AND network = $1
		  AND risk_types ?| (SELECT array_agg(value) FROM jsonb_array_elements_text($2::jsonb))
		ORDER BY (resolution::jsonb->>'resolvedAt')::timestamptz DESC NULLS LAST
		LIMIT $3
	`, string(network), tagsJSON, limit)
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*WarningSign, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*WarningSign
	for rows.Next() {
		w, err := scanWarning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type warningDoc struct {
	riskTypes     []byte
	evidence      []byte
	analysis      []byte
	notifications []byte
	verifiedBy    []byte
	resolution    any // []byte or nil
}

func marshalWarningDoc(w *WarningSign) (*warningDoc, error) {
	doc := &warningDoc{}
	var err error
	if doc.riskTypes, err = json.Marshal(w.RiskTypes); err != nil {
		return nil, fmt.Errorf("failed to marshal risk types: %w", err)
	}
	if doc.evidence, err = json.Marshal(w.Evidence); err != nil {
		return nil, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	if doc.analysis, err = json.Marshal(w.AIAnalysis); err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	if doc.notifications, err = json.Marshal(w.NotificationsSent); err != nil {
		return nil, fmt.Errorf("failed to marshal notifications: %w", err)
	}
	if doc.verifiedBy, err = json.Marshal(w.VerifiedBy); err != nil {
		return nil, fmt.Errorf("failed to marshal verifiers: %w", err)
	}
	if w.Resolution != nil {
		b, err := json.Marshal(w.Resolution)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal resolution: %w", err)
		}
		doc.resolution = b
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWarning(row rowScanner) (*WarningSign, error) {
	var (
		w             WarningSign
		network       string
		level         string
		status        string
		riskScore     int
		riskTypes     []byte
		evidence      []byte
		analysis      []byte
		notifications []byte
		verifiedBy    []byte
		resolution    sql.NullString
	)
	err := row.Scan(
		&w.ID, &w.ProjectName, &w.TokenSymbol, &network, &w.ContractAddress, &w.PairAddress,
		&riskTypes, &level, &riskScore, &w.Description, &evidence, &analysis,
		&status, &notifications, &verifiedBy, &resolution, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Network = Network(network)
	w.RiskLevel = RiskLevel(level)
	w.Status = Status(status)

	if err := json.Unmarshal(riskTypes, &w.RiskTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal risk types: %w", err)
	}
	if err := json.Unmarshal(evidence, &w.Evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal(analysis, &w.AIAnalysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	if err := json.Unmarshal(notifications, &w.NotificationsSent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}
	if err := json.Unmarshal(verifiedBy, &w.VerifiedBy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verifiers: %w", err)
	}
	if resolution.Valid {
		var r ResolutionDetails
		if err := json.Unmarshal([]byte(resolution.String), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal resolution: %w", err)
		}
		w.Resolution = &r
	}
	return &w, nil
}
