package tombstone

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists tombstones in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed tombstone store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tombstoneColumns = `
	id, project_name, token_symbol, network, contract_address, fraud_tactics,
	description, estimated_loss_usd, victim_count, incident_date, status,
	verified_by, reported_by, warning_id, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, t *Tombstone) error {
	tactics, verifiedBy, err := marshalDoc(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tombstones (`+tombstoneColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		t.ID, t.ProjectName, t.TokenSymbol, t.Network, t.ContractAddress, tactics,
		t.Description, t.EstimatedLossUSD, t.VictimCount, t.IncidentDate, string(t.Status),
		verifiedBy, t.ReportedBy, t.WarningID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateContract
		}
		return fmt.Errorf("failed to insert tombstone: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Tombstone, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tombstoneColumns+`
		FROM tombstones WHERE id = $1
	`, id)
	return scanTombstone(row)
}

func (s *PostgresStore) GetByContract(ctx context.Context, network, contractAddress string) (*Tombstone, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tombstoneColumns+`
		FROM tombstones WHERE network = $1 AND contract_address = $2
	`, network, contractAddress)
	return scanTombstone(row)
}

func (s *PostgresStore) Update(ctx context.Context, t *Tombstone) error {
	tactics, verifiedBy, err := marshalDoc(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tombstones SET
			project_name = $2, token_symbol = $3, network = $4,
			contract_address = $5, fraud_tactics = $6, description = $7,
			estimated_loss_usd = $8, victim_count = $9, incident_date = $10,
			status = $11, verified_by = $12, warning_id = $13, updated_at = $14
		WHERE id = $1
	`,
		t.ID, t.ProjectName, t.TokenSymbol, t.Network,
		t.ContractAddress, tactics, t.Description,
		t.EstimatedLossUSD, t.VictimCount, t.IncidentDate,
		string(t.Status), verifiedBy, t.WarningID, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tombstone: %w", err)
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

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Tombstone, error) {
	return s.query(ctx, `
		SELECT `+tombstoneColumns+`
		FROM tombstones
		ORDER BY incident_date DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresStore) ListByNetwork(ctx context.Context, network string, limit int) ([]*Tombstone, error) {
	return s.query(ctx, `
		SELECT `+tombstoneColumns+`
		FROM tombstones
		WHERE network = $1
		ORDER BY incident_date DESC
		LIMIT $2
	`, network, limit)
}

func (s *PostgresStore) ListSimilar(ctx context.Context, network string, tactics []string, excludeID string, limit int) ([]*Tombstone, error) {
	tacticsJSON, err := json.Marshal(tactics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tactics: %w", err)
	}
	// jsonb ?| needs a text[]; going through jsonb_array_elements_text keeps
	// the filter on the indexed fraud_tactics column.
	return s.query(ctx, `
		SELECT `+tombstoneColumns+`
		FROM tombstones
		WHERE network = $1
		  AND status = 'verified'
		  AND id != $2
		  AND fraud_tactics ?| (SELECT array_agg(x) FROM jsonb_array_elements_text($3::jsonb) AS x)
		ORDER BY incident_date DESC
		LIMIT $4
	`, network, excludeID, tacticsJSON, limit)
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tombstones: %w", err)
	}
	defer rows.Close()

	var out []*Tombstone
	for rows.Next() {
		t, err := scanTombstone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func marshalDoc(t *Tombstone) (tactics, verifiedBy []byte, err error) {
	tactics, err = json.Marshal(t.FraudTactics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tactics: %w", err)
	}
	verifiedBy, err = json.Marshal(t.VerifiedBy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal verified_by: %w", err)
	}
	return tactics, verifiedBy, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTombstone(row rowScanner) (*Tombstone, error) {
	var t Tombstone
	var status string
	var tactics, verifiedBy []byte
	err := row.Scan(
		&t.ID, &t.ProjectName, &t.TokenSymbol, &t.Network, &t.ContractAddress, &tactics,
		&t.Description, &t.EstimatedLossUSD, &t.VictimCount, &t.IncidentDate, &status,
		&verifiedBy, &t.ReportedBy, &t.WarningID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tombstone: %w", err)
	}
	t.Status = VerificationStatus(status)
	if len(tactics) > 0 {
		if err := json.Unmarshal(tactics, &t.FraudTactics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tactics: %w", err)
		}
	}
	if len(verifiedBy) > 0 {
		if err := json.Unmarshal(verifiedBy, &t.VerifiedBy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verified_by: %w", err)
		}
	}
	return &t, nil
}
