package insider

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
	"github.com/rugsentry/rugsentry/internal/validation"
)

// MaxContentLength bounds one tip's content.
const MaxContentLength = 5000

// SubmitRequest is the payload for submitting a tip.
type SubmitRequest struct {
	ProjectName     string `json:"projectName"`
	Network         string `json:"network"`
	ContractAddress string `json:"contractAddress"`
	Content         string `json:"content"`
	SubmittedBy     string `json:"submittedBy"`
}

// Service owns insider tip submission and review.
type Service struct {
	store  Store
	logger *slog.Logger

	tipLocks syncutil.ShardedMutex // serializes report counting per tip
}

// NewService creates the insider tip service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Submit records a new tip. The submission hash dedupes resubmissions of
// the same content for the same project; credibility is scored once, at
// submission, and never rescored.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Tip, error) {
	req.Network = strings.ToLower(strings.TrimSpace(req.Network))
	req.Content = strings.TrimSpace(req.Content)
	if errs := validation.Validate(
		validation.Required("projectName", req.ProjectName),
		validation.Required("network", req.Network),
		validation.ValidNetwork("network", req.Network),
		validation.Required("content", req.Content),
		validation.MaxLength("content", req.Content, MaxContentLength),
		validation.Required("submittedBy", req.SubmittedBy),
		validation.ValidAddress("contractAddress", req.ContractAddress),
	); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, errs.Error())
	}

	now := time.Now()
	tip := &Tip{
		ID:               idgen.WithPrefix("tip_"),
		ProjectName:      strings.TrimSpace(req.ProjectName),
		Network:          req.Network,
		Content:          req.Content,
		SubmissionHash:   SubmissionHash(req.ProjectName, req.Network, req.Content),
		CredibilityScore: scoring.ScoreCredibility(req.Content),
		FlaggedKeywords:  scoring.ScanKeywords(req.Content),
		Status:           TipPending,
		SubmittedBy:      strings.TrimSpace(req.SubmittedBy),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.ContractAddress != "" {
		tip.ContractAddress = validation.SanitizeAddress(req.ContractAddress)
	}

	if err := s.store.Create(ctx, tip); err != nil {
		return nil, err
	}

	s.logger.Info("insider tip submitted",
		"tipId", tip.ID,
		"project", tip.ProjectName,
		"network", tip.Network,
		"credibility", tip.CredibilityScore,
	)
	return tip, nil
}

// Get returns a tip by ID.
func (s *Service) Get(ctx context.Context, id string) (*Tip, error) {
	return s.store.Get(ctx, id)
}

// List returns tips, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status TipStatus, limit int) ([]*Tip, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.List(ctx, status, limit)
}

// Report records a community report against a tip. Exactly at the fifth
// report the tip is forced into under_review; the transition fires once,
// at the crossing, and later reports only increment the count. Dismissed
// tips stay dismissed.
func (s *Service) Report(ctx context.Context, id, reporterID string) (*Tip, error) {
	if strings.TrimSpace(reporterID) == "" {
		return nil, fmt.Errorf("%w: reporter id required", ErrValidation)
	}

	unlock := s.tipLocks.Lock(id)
	defer unlock()

	tip, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tip.ReportCount++
	tip.UpdatedAt = time.Now()
	if tip.ReportCount == ReportThreshold && tip.Status != TipDismissed {
		tip.Status = TipUnderReview
		metrics.AutoEscalations.WithLabelValues("tip_under_review").Inc()
		s.logger.Warn("tip escalated to review",
			"tipId", tip.ID,
			"reportCount", tip.ReportCount,
		)
	}
	if err := s.store.Update(ctx, tip); err != nil {
		return nil, err
	}
	return tip, nil
}

// Review settles a tip under review (or pending) as verified or dismissed.
func (s *Service) Review(ctx context.Context, id, moderatorID string, verdict TipStatus) (*Tip, error) {
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return nil, fmt.Errorf("%w: moderator id required", ErrValidation)
	}
	if verdict != TipVerified && verdict != TipDismissed {
		return nil, fmt.Errorf("%w: verdict must be verified or dismissed", ErrValidation)
	}

	unlock := s.tipLocks.Lock(id)
	defer unlock()

	tip, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tip.Status == TipVerified || tip.Status == TipDismissed {
		return nil, fmt.Errorf("%w: tip is already %s", ErrInvalidTransition, tip.Status)
	}

	tip.Status = verdict
	tip.ReviewedBy = moderatorID
	tip.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, tip); err != nil {
		return nil, err
	}

	s.logger.Info("tip reviewed",
		"tipId", tip.ID,
		"verdict", verdict,
		"moderator", moderatorID,
	)
	return tip, nil
}
