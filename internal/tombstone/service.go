package tombstone

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rugsentry/rugsentry/internal/idgen"
	"github.com/rugsentry/rugsentry/internal/metrics"
	"github.com/rugsentry/rugsentry/internal/syncutil"
	"github.com/rugsentry/rugsentry/internal/validation"
)

// DefaultSimilarLimit caps similarity lookups.
const DefaultSimilarLimit = 5

// CreateRequest is the payload for recording a confirmed incident.
type CreateRequest struct {
	ProjectName      string    `json:"projectName"`
	TokenSymbol      string    `json:"tokenSymbol"`
	Network          string    `json:"network"`
	ContractAddress  string    `json:"contractAddress"`
	FraudTactics     []string  `json:"fraudTactics"`
	Description      string    `json:"description"`
	EstimatedLossUSD float64   `json:"estimatedLossUsd"`
	VictimCount      int       `json:"victimCount"`
	IncidentDate     time.Time `json:"incidentDate"`
	ReportedBy       string    `json:"reportedBy"`
	WarningID        string    `json:"warningId"`
}

// Service owns the tombstone registry.
type Service struct {
	store  Store
	logger *slog.Logger

	verifyLocks syncutil.ShardedMutex // serializes status transitions per tombstone
}

// NewService creates the tombstone service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create records a confirmed rug pull. The (network, contractAddress) pair
// is unique: a second report of the same contract is rejected so the
// registry stays one-record-per-incident.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Tombstone, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	now := time.Now()
	t := &Tombstone{
		ID:               idgen.WithPrefix("tomb_"),
		ProjectName:      strings.TrimSpace(req.ProjectName),
		TokenSymbol:      strings.ToUpper(strings.TrimSpace(req.TokenSymbol)),
		Network:          req.Network,
		ContractAddress:  validation.SanitizeAddress(req.ContractAddress),
		FraudTactics:     req.FraudTactics,
		Description:      strings.TrimSpace(req.Description),
		EstimatedLossUSD: req.EstimatedLossUSD,
		VictimCount:      req.VictimCount,
		IncidentDate:     req.IncidentDate,
		Status:           VerificationPending,
		ReportedBy:       strings.TrimSpace(req.ReportedBy),
		WarningID:        req.WarningID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if t.IncidentDate.IsZero() {
		t.IncidentDate = now
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("tombstone recorded",
		"tombstoneId", t.ID,
		"project", t.ProjectName,
		"network", t.Network,
		"tactics", t.FraudTactics,
	)
	return t, nil
}

func (s *Service) validate(req *CreateRequest) error {
	req.Network = strings.ToLower(strings.TrimSpace(req.Network))
	if errs := validation.Validate(
		validation.Required("projectName", req.ProjectName),
		validation.Required("tokenSymbol", req.TokenSymbol),
		validation.Required("network", req.Network),
		validation.ValidNetwork("network", req.Network),
		validation.Required("contractAddress", req.ContractAddress),
		validation.Required("reportedBy", req.ReportedBy),
		validation.MaxLength("description", req.Description, validation.MaxStringLength),
	); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, errs.Error())
	}
	if len(req.FraudTactics) == 0 {
		return fmt.Errorf("%w: at least one fraud tactic required", ErrValidation)
	}
	if req.IncidentDate.After(time.Now().Add(time.Minute)) {
		return fmt.Errorf("%w: incident date is in the future", ErrValidation)
	}
	return nil
}

// Get returns a tombstone by ID.
func (s *Service) Get(ctx context.Context, id string) (*Tombstone, error) {
	return s.store.Get(ctx, id)
}

// GetByContract returns the tombstone for a contract, if one exists.
func (s *Service) GetByContract(ctx context.Context, network, contractAddress string) (*Tombstone, error) {
	return s.store.GetByContract(ctx, strings.ToLower(network), validation.SanitizeAddress(contractAddress))
}

// List returns tombstones, most recent incident first.
func (s *Service) List(ctx context.Context, network string, limit int) ([]*Tombstone, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if network == "" {
		return s.store.List(ctx, limit)
	}
	network = strings.ToLower(network)
	if !validation.IsSupportedNetwork(network) {
		return nil, fmt.Errorf("%w: unknown network %q", ErrValidation, network)
	}
	return s.store.ListByNetwork(ctx, network, limit)
}

// Verify marks a pending tombstone as community-verified. Only pending
// tombstones can transition; verified and disputed are terminal.
func (s *Service) Verify(ctx context.Context, id, moderatorID string) (*Tombstone, error) {
	return s.transition(ctx, id, moderatorID, VerificationVerified)
}

// Dispute marks a pending tombstone as disputed.
func (s *Service) Dispute(ctx context.Context, id, moderatorID string) (*Tombstone, error) {
	return s.transition(ctx, id, moderatorID, VerificationDisputed)
}

func (s *Service) transition(ctx context.Context, id, moderatorID string, to VerificationStatus) (*Tombstone, error) {
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return nil, fmt.Errorf("%w: moderator id required", ErrValidation)
	}

	unlock := s.verifyLocks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, fmt.Errorf("%w: tombstone is already %s", ErrInvalidTransition, t.Status)
	}

	t.Status = to
	t.VerifiedBy = appendUnique(t.VerifiedBy, moderatorID)
	t.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}

	metrics.TombstoneTransitions.WithLabelValues(string(to)).Inc()
	s.logger.Info("tombstone verification recorded",
		"tombstoneId", t.ID,
		"status", t.Status,
		"moderator", moderatorID,
	)
	return t, nil
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// FindSimilar returns verified tombstones on the same network sharing at
// least one fraud tactic with the given tombstone, most recent incident
// first. This is a filtered query, not a learned similarity metric.
func (s *Service) FindSimilar(ctx context.Context, id string, limit int) ([]*Tombstone, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 20 {
		limit = DefaultSimilarLimit
	}
	return s.store.ListSimilar(ctx, t.Network, t.FraudTactics, t.ID, limit)
}

// SimilarTo returns verified tombstones matching an arbitrary network and
// tactic set. The warning service uses this to cross-reference an active
// warning against confirmed incidents.
func (s *Service) SimilarTo(ctx context.Context, network string, tactics []string, limit int) ([]*Tombstone, error) {
	if limit <= 0 || limit > 20 {
		limit = DefaultSimilarLimit
	}
	return s.store.ListSimilar(ctx, strings.ToLower(network), tactics, "", limit)
}
