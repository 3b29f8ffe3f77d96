package warning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rugsentry/rugsentry/internal/idgen"
	"github.com/rugsentry/rugsentry/internal/metrics"
	"github.com/rugsentry/rugsentry/internal/scoring"
	"github.com/rugsentry/rugsentry/internal/syncutil"
	"github.com/rugsentry/rugsentry/internal/traces"
)

// ErrValidation is wrapped around malformed-input failures.
var ErrValidation = errors.New("invalid warning input")

// falseAlarmPrefix marks false-alarm resolutions for audit traceability.
const falseAlarmPrefix = "False Alarm: "

// DefaultListLimit caps list queries when the caller passes none.
const DefaultListLimit = 50

// DefaultSimilarLimit caps similarity lookups.
const DefaultSimilarLimit = 5

// Publisher fans a warning event out to live subscribers and reports how
// many were reached. Delivery is at-most-once, best-effort.
type Publisher interface {
	WarningCreated(w *WarningSign) int
	WarningUpdated(w *WarningSign) int
}

// CreateRequest contains the parameters for ingesting a new warning.
type CreateRequest struct {
	ProjectName     string         `json:"projectName" binding:"required"`
	TokenSymbol     string         `json:"tokenSymbol" binding:"required"`
	Network         Network        `json:"network" binding:"required"`
	ContractAddress string         `json:"contractAddress"`
	PairAddress     string         `json:"pairAddress"`
	RiskTypes       []RiskType     `json:"riskTypes" binding:"required"`
	Description     string         `json:"description" binding:"required"`
	Evidence        EvidenceUpdate `json:"evidence"`
}

// Service owns warning lifecycle transitions and evidence-driven re-scoring.
type Service struct {
	store     Store
	scorer    *scoring.Scorer
	publisher Publisher
	logger    *slog.Logger
	locks     syncutil.ContextShardedMutex // serializes transitions per warning ID
}

// NewService creates the warning lifecycle service.
func NewService(store Store, scorer *scoring.Scorer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		scorer: scorer,
		logger: logger,
	}
}

// WithPublisher attaches a live-event publisher.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// Create ingests a new warning. The initial evidence is merged and scored
// immediately; a warning is never persisted with an empty assessment.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*WarningSign, error) {
	ctx, span := traces.StartSpan(ctx, "warning.create")
	defer span.End()

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := time.Now()
	w := &WarningSign{
		ID:              idgen.WithPrefix("warn_"),
		ProjectName:     strings.TrimSpace(req.ProjectName),
		TokenSymbol:     strings.ToUpper(strings.TrimSpace(req.TokenSymbol)),
		Network:         req.Network,
		ContractAddress: strings.ToLower(req.ContractAddress),
		PairAddress:     strings.ToLower(req.PairAddress),
		RiskTypes:       req.RiskTypes,
		Description:     req.Description,
		Evidence:        MergeEvidence(Evidence{}, req.Evidence),
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.rescore(ctx, w); err != nil {
		return nil, fmt.Errorf("initial scoring failed: %w", err)
	}

	if err := s.store.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist warning: %w", err)
	}

	s.notify(ctx, w, true)

	metrics.WarningsCreated.WithLabelValues(string(w.Network)).Inc()
	s.logger.Info("warning created",
		"warningId", w.ID,
		"network", w.Network,
		"riskScore", w.AIAnalysis.RiskScore,
		"riskLevel", w.RiskLevel,
	)
	return w, nil
}

// Get returns a warning by ID.
func (s *Service) Get(ctx context.Context, id string) (*WarningSign, error) {
	return s.store.Get(ctx, id)
}

// UpdateEvidence merges an evidence fragment into a warning, re-scores it,
// and recomputes the derived risk level. Valid only while active.
func (s *Service) UpdateEvidence(ctx context.Context, id string, update EvidenceUpdate) (*WarningSign, error) {
	ctx, span := traces.StartSpan(ctx, "warning.update_evidence", traces.WarningID(id))
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	w.Evidence = MergeEvidence(w.Evidence, update)
	if err := s.rescore(ctx, w); err != nil {
		return nil, fmt.Errorf("re-scoring failed: %w", err)
	}
	w.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist warning: %w", err)
	}

	s.notify(ctx, w, false)
	return w, nil
}

// Resolve closes an active warning as a confirmed incident.
func (s *Service) Resolve(ctx context.Context, id, moderatorID, resolution string) (*WarningSign, error) {
	return s.transition(ctx, id, moderatorID, StatusResolved, resolution)
}

// MarkFalseAlarm closes an active warning as unfounded. The stored resolution
// is the explanation prefixed with "False Alarm: " for audit traceability.
func (s *Service) MarkFalseAlarm(ctx context.Context, id, moderatorID, explanation string) (*WarningSign, error) {
	return s.transition(ctx, id, moderatorID, StatusFalseAlarm, falseAlarmPrefix+explanation)
}

func (s *Service) transition(ctx context.Context, id, moderatorID string, to Status, resolution string) (*WarningSign, error) {
	ctx, span := traces.StartSpan(ctx, "warning.transition", traces.WarningID(id))
	defer span.End()

	if moderatorID == "" {
		return nil, fmt.Errorf("%w: moderator id required", ErrValidation)
	}

	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusActive {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	w.Status = to
	w.Resolution = &ResolutionDetails{
		ResolvedAt: now,
		ResolvedBy: moderatorID,
		Resolution: resolution,
	}
	w.UpdatedAt = now

	if err := s.store.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist warning: %w", err)
	}

	s.notify(ctx, w, false)

	metrics.WarningTransitions.WithLabelValues(string(to)).Inc()
	s.logger.Info("warning closed",
		"warningId", w.ID,
		"status", w.Status,
		"moderator", moderatorID,
	)
	return w, nil
}

// RecordVerification adds a moderator to the warning's verifier set. The add
// is idempotent, changes no status, and emits no live event.
func (s *Service) RecordVerification(ctx context.Context, id, verifierID string) (*WarningSign, error) {
	if verifierID == "" {
		return nil, fmt.Errorf("%w: verifier id required", ErrValidation)
	}

	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, v := range w.VerifiedBy {
		if v == verifierID {
			return w, nil
		}
	}
	w.VerifiedBy = append(w.VerifiedBy, verifierID)
	w.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist warning: %w", err)
	}
	return w, nil
}

// Delete removes a warning entirely. Administrative path only; the
// monitoring scheduler tolerates the resulting NotFound on its next tick.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.Delete(ctx, id)
}

// ListActive returns active warnings, highest risk first.
func (s *Service) ListActive(ctx context.Context, limit int) ([]*WarningSign, error) {
	return s.store.ListActive(ctx, normalizeLimit(limit))
}

// ListByNetwork returns warnings on a network, highest risk first.
func (s *Service) ListByNetwork(ctx context.Context, network Network, limit int) ([]*WarningSign, error) {
	if !network.Valid() {
		return nil, fmt.Errorf("%w: unknown network %q", ErrValidation, network)
	}
	return s.store.ListByNetwork(ctx, network, normalizeLimit(limit))
}

// ListByRiskLevel returns warnings at a tier, highest risk first.
func (s *Service) ListByRiskLevel(ctx context.Context, level RiskLevel, limit int) ([]*WarningSign, error) {
	switch level {
	case LevelLow, LevelMedium, LevelHigh, LevelCritical:
	default:
		return nil, fmt.Errorf("%w: unknown risk level %q", ErrValidation, level)
	}
	return s.store.ListByRiskLevel(ctx, level, normalizeLimit(limit))
}

// FindSimilar returns resolved warnings on the same network that share at
// least one risk tag with the given warning, most recent first. This is an
// intentional filtered query, not a learned similarity metric.
func (s *Service) FindSimilar(ctx context.Context, id string, limit int) ([]*WarningSign, error) {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultSimilarLimit {
		limit = DefaultSimilarLimit
	}

	// Fetch one extra so the warning itself can be dropped from its own results.
	related, err := s.store.ListRelated(ctx, w.Network, w.RiskTypes, limit+1)
	if err != nil {
		return nil, err
	}
	out := make([]*WarningSign, 0, limit)
	for _, r := range related {
		if r.ID == w.ID {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// RecordNotification appends an external-channel delivery record (push,
// email). Actual transport is an external collaborator.
func (s *Service) RecordNotification(ctx context.Context, id, channel string, recipients int) error {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	w, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	w.NotificationsSent = append(w.NotificationsSent, NotificationRecord{
		Channel:        channel,
		Timestamp:      time.Now(),
		RecipientCount: recipients,
	})
	return s.store.Update(ctx, w)
}

// rescore rebuilds the feature vector from merged evidence, runs a scoring
// pass, and recomputes the derived risk level. Post-condition of every
// evidence or score mutation.
func (s *Service) rescore(ctx context.Context, w *WarningSign) error {
	snapshot := scoring.EvidenceSnapshot{}
	if w.Evidence.OnChain != nil {
		snapshot.OnChainDetails = w.Evidence.OnChain.Details
	}
	if w.Evidence.Market != nil {
		snapshot.LiquidityChangePct = scoring.Float(w.Evidence.Market.LiquidityChangePct)
		snapshot.PriceChangePct = scoring.Float(w.Evidence.Market.PriceChangePct)
	}
	if w.Evidence.Social != nil {
		snapshot.SocialSentiment = scoring.Float(w.Evidence.Social.SentimentScore)
		vol := w.Evidence.Social.Volume
		snapshot.SocialVolume = &vol
	}

	assessment, err := s.scorer.Score(ctx, scoring.ExtractFeatures(snapshot))
	if err != nil {
		return err
	}

	w.AIAnalysis = AIAnalysis{
		RiskScore:  assessment.RiskScore,
		Confidence: assessment.Confidence,
		Factors:    assessment.Factors,
		Timestamp:  assessment.Timestamp,
	}
	w.RiskLevel = LevelForScore(assessment.RiskScore)
	return nil
}

// notify broadcasts the event and appends the delivery record. Best-effort:
// a nil publisher records nothing. Runs only after the mutation has
// persisted, so subscribers never hear about a write that failed; the
// delivery record itself is stored best-effort.
func (s *Service) notify(ctx context.Context, w *WarningSign, created bool) {
	if s.publisher == nil {
		return
	}
	var recipients int
	if created {
		recipients = s.publisher.WarningCreated(w)
	} else {
		recipients = s.publisher.WarningUpdated(w)
	}
	w.NotificationsSent = append(w.NotificationsSent, NotificationRecord{
		Channel:        "websocket",
		Timestamp:      time.Now(),
		RecipientCount: recipients,
	})
	if err := s.store.Update(ctx, w); err != nil {
		s.logger.Warn("failed to record notification delivery", "warningId", w.ID, "error", err)
	}
}

func validateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.ProjectName) == "" {
		return fmt.Errorf("%w: project name required", ErrValidation)
	}
	if strings.TrimSpace(req.TokenSymbol) == "" {
		return fmt.Errorf("%w: token symbol required", ErrValidation)
	}
	if !req.Network.Valid() {
		return fmt.Errorf("%w: unknown network %q", ErrValidation, req.Network)
	}
	if len(req.RiskTypes) == 0 {
		return fmt.Errorf("%w: at least one risk type required", ErrValidation)
	}
	for _, rt := range req.RiskTypes {
		if !rt.Valid() {
			return fmt.Errorf("%w: unknown risk type %q", ErrValidation, rt)
		}
	}
	if strings.TrimSpace(req.Description) == "" {
		return fmt.Errorf("%w: description required", ErrValidation)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return DefaultListLimit
	}
	return limit
}
