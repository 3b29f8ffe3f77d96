package warning

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rugsentry/rugsentry/internal/scoring"
)

// stubModel returns a fixed probability so lifecycle tests are deterministic.
type stubModel struct {
	p float64
}

func (m stubModel) PredictRisk(ctx context.Context, v scoring.FeatureVector) (float64, error) {
	return m.p, nil
}

type stubPublisher struct {
	createdCalls int
	updatedCalls int
	recipients   int
}

func (p *stubPublisher) WarningCreated(w *WarningSign) int {
	p.createdCalls++
	return p.recipients
}

func (p *stubPublisher) WarningUpdated(w *WarningSign) int {
	p.updatedCalls++
	return p.recipients
}

func newTestService(p float64) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewMemoryStore(), scoring.NewScorer(stubModel{p: p}), logger)
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		ProjectName:     "MoonSafe",
		TokenSymbol:     "moon",
		Network:         NetworkBSC,
		ContractAddress: "0xAbC0000000000000000000000000000000000001",
		RiskTypes:       []RiskType{RiskLiquidityReduction},
		Description:     "LP tokens moved to a fresh wallet",
		Evidence: EvidenceUpdate{
			Market: &MarketUpdate{LiquidityChangePct: fptr(-60)},
		},
	}
}

func TestCreate_ScoresImmediately(t *testing.T) {
	svc := newTestService(0.85)

	w, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if w.Status != StatusActive {
		t.Errorf("Status = %s, want active", w.Status)
	}
	if w.AIAnalysis.RiskScore != 85 {
		t.Errorf("RiskScore = %d, want 85", w.AIAnalysis.RiskScore)
	}
	if w.RiskLevel != LevelCritical {
		t.Errorf("RiskLevel = %s, want critical", w.RiskLevel)
	}
	if w.AIAnalysis.Timestamp.IsZero() {
		t.Error("assessment timestamp must be set at creation")
	}
	if w.TokenSymbol != "MOON" {
		t.Errorf("TokenSymbol = %q, want MOON", w.TokenSymbol)
	}
	if w.ContractAddress != strings.ToLower(validCreateRequest().ContractAddress) {
		t.Errorf("ContractAddress not normalized: %q", w.ContractAddress)
	}
	if w.Evidence.Market == nil || w.Evidence.Market.LiquidityChangePct != -60 {
		t.Errorf("initial evidence not merged: %+v", w.Evidence)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(0.5)

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"missing project name", func(r *CreateRequest) { r.ProjectName = "  " }},
		{"missing token symbol", func(r *CreateRequest) { r.TokenSymbol = "" }},
		{"unknown network", func(r *CreateRequest) { r.Network = "tron" }},
		{"no risk types", func(r *CreateRequest) { r.RiskTypes = nil }},
		{"unknown risk type", func(r *CreateRequest) { r.RiskTypes = []RiskType{"astrology"} }},
		{"missing description", func(r *CreateRequest) { r.Description = "" }},
	}

	for _, tt := range tests {
		req := validCreateRequest()
		tt.mutate(&req)
		if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tt.name, err)
		}
	}
}

func TestUpdateEvidence_MergesAndRescores(t *testing.T) {
	svc := newTestService(0.55)
	w, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	firstAssessment := w.AIAnalysis.Timestamp

	updated, err := svc.UpdateEvidence(context.Background(), w.ID, EvidenceUpdate{
		Market: &MarketUpdate{PriceChangePct: fptr(-80)},
		Social: &SocialUpdate{SentimentScore: fptr(-0.9), Volume: iptr(300)},
	})
	if err != nil {
		t.Fatalf("UpdateEvidence failed: %v", err)
	}

	if updated.Evidence.Market.LiquidityChangePct != -60 {
		t.Errorf("earlier liquidity evidence lost: %+v", updated.Evidence.Market)
	}
	if updated.Evidence.Market.PriceChangePct != -80 {
		t.Errorf("PriceChangePct = %v, want -80", updated.Evidence.Market.PriceChangePct)
	}
	if updated.Evidence.Social == nil || updated.Evidence.Social.Volume != 300 {
		t.Errorf("social evidence not merged: %+v", updated.Evidence.Social)
	}
	if !updated.AIAnalysis.Timestamp.After(firstAssessment) && !updated.AIAnalysis.Timestamp.Equal(firstAssessment) {
		t.Error("expected a fresh scoring pass after evidence merge")
	}
	if updated.RiskLevel != LevelForScore(updated.AIAnalysis.RiskScore) {
		t.Errorf("RiskLevel %s inconsistent with score %d", updated.RiskLevel, updated.AIAnalysis.RiskScore)
	}
}

func TestUpdateEvidence_NotFound(t *testing.T) {
	svc := newTestService(0.5)
	_, err := svc.UpdateEvidence(context.Background(), "warn_missing", EvidenceUpdate{
		Market: &MarketUpdate{PriceChangePct: fptr(-10)},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolve_SetsResolutionDetails(t *testing.T) {
	svc := newTestService(0.7)
	w, _ := svc.Create(context.Background(), validCreateRequest())

	resolved, err := svc.Resolve(context.Background(), w.ID, "mod_1", "Confirmed rug: LP drained in tx 0xdead")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Status != StatusResolved {
		t.Errorf("Status = %s, want resolved", resolved.Status)
	}
	if resolved.Resolution == nil {
		t.Fatal("resolution details must be present on a terminal warning")
	}
	if resolved.Resolution.ResolvedBy != "mod_1" {
		t.Errorf("ResolvedBy = %q, want mod_1", resolved.Resolution.ResolvedBy)
	}
	if resolved.Resolution.ResolvedAt.IsZero() {
		t.Error("ResolvedAt must be set")
	}
}

func TestTransitions_OneWay(t *testing.T) {
	svc := newTestService(0.7)
	w, _ := svc.Create(context.Background(), validCreateRequest())

	if _, err := svc.Resolve(context.Background(), w.ID, "mod_1", "confirmed"); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	// Every further mutation of a terminal warning must be rejected.
	if _, err := svc.Resolve(context.Background(), w.ID, "mod_2", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double resolve: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.MarkFalseAlarm(context.Background(), w.ID, "mod_2", "changed my mind"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("false alarm after resolve: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.UpdateEvidence(context.Background(), w.ID, EvidenceUpdate{
		Market: &MarketUpdate{PriceChangePct: fptr(-5)},
	}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("evidence after resolve: err = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkFalseAlarm_Prefix(t *testing.T) {
	svc := newTestService(0.3)
	w, _ := svc.Create(context.Background(), validCreateRequest())

	fa, err := svc.MarkFalseAlarm(context.Background(), w.ID, "mod_1", "LP migration was announced by the team")
	if err != nil {
		t.Fatalf("MarkFalseAlarm failed: %v", err)
	}

	if fa.Status != StatusFalseAlarm {
		t.Errorf("Status = %s, want false_alarm", fa.Status)
	}
	want := "False Alarm: LP migration was announced by the team"
	if fa.Resolution == nil || fa.Resolution.Resolution != want {
		t.Errorf("Resolution = %+v, want %q", fa.Resolution, want)
	}
}

func TestTransition_RequiresModerator(t *testing.T) {
	svc := newTestService(0.5)
	w, _ := svc.Create(context.Background(), validCreateRequest())

	if _, err := svc.Resolve(context.Background(), w.ID, "", "confirmed"); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestRecordVerification_IdempotentAndSilent(t *testing.T) {
	svc := newTestService(0.5)
	pub := &stubPublisher{recipients: 3}
	svc.WithPublisher(pub)

	w, _ := svc.Create(context.Background(), validCreateRequest())
	createdEvents := pub.createdCalls
	updatedEvents := pub.updatedCalls
	notifications := len(w.NotificationsSent)

	v1, err := svc.RecordVerification(context.Background(), w.ID, "mod_7")
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	v2, err := svc.RecordVerification(context.Background(), w.ID, "mod_7")
	if err != nil {
		t.Fatalf("repeat RecordVerification failed: %v", err)
	}

	if len(v1.VerifiedBy) != 1 || len(v2.VerifiedBy) != 1 {
		t.Errorf("VerifiedBy = %v then %v, want a single mod_7 entry", v1.VerifiedBy, v2.VerifiedBy)
	}
	if pub.createdCalls != createdEvents || pub.updatedCalls != updatedEvents {
		t.Error("verification must not emit live events")
	}
	if len(v2.NotificationsSent) != notifications {
		t.Errorf("verification appended a notification record: %d -> %d", notifications, len(v2.NotificationsSent))
	}
}

func TestNotify_RecordsDelivery(t *testing.T) {
	svc := newTestService(0.5)
	pub := &stubPublisher{recipients: 12}
	svc.WithPublisher(pub)

	w, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if pub.createdCalls != 1 {
		t.Errorf("createdCalls = %d, want 1", pub.createdCalls)
	}
	if len(w.NotificationsSent) != 1 {
		t.Fatalf("NotificationsSent = %v, want one record", w.NotificationsSent)
	}
	rec := w.NotificationsSent[0]
	if rec.Channel != "websocket" || rec.RecipientCount != 12 {
		t.Errorf("record = %+v, want websocket/12", rec)
	}

	// The persisted copy carries the record too: it is written back after publish.
	stored, err := svc.Get(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(stored.NotificationsSent) != 1 {
		t.Errorf("stored NotificationsSent = %v, want one record", stored.NotificationsSent)
	}
}

func TestRecordNotification_ExternalChannel(t *testing.T) {
	svc := newTestService(0.5)
	w, _ := svc.Create(context.Background(), validCreateRequest())

	if err := svc.RecordNotification(context.Background(), w.ID, "push", 240); err != nil {
		t.Fatalf("RecordNotification failed: %v", err)
	}

	stored, _ := svc.Get(context.Background(), w.ID)
	last := stored.NotificationsSent[len(stored.NotificationsSent)-1]
	if last.Channel != "push" || last.RecipientCount != 240 {
		t.Errorf("last record = %+v, want push/240", last)
	}
}

func TestDelete_ThenGetNotFound(t *testing.T) {
	svc := newTestService(0.5)
	w, _ := svc.Create(context.Background(), validCreateRequest())

	if err := svc.Delete(context.Background(), w.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListByNetwork_RejectsUnknown(t *testing.T) {
	svc := newTestService(0.5)
	if _, err := svc.ListByNetwork(context.Background(), "tron", 10); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestListByRiskLevel_RejectsUnknown(t *testing.T) {
	svc := newTestService(0.5)
	if _, err := svc.ListByRiskLevel(context.Background(), "apocalyptic", 10); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestFindSimilar(t *testing.T) {
	svc := newTestService(0.7)
	ctx := context.Background()

	// A resolved warning on the same network with a shared tag is similar.
	prior, _ := svc.Create(ctx, validCreateRequest())
	if _, err := svc.Resolve(ctx, prior.ID, "mod_1", "confirmed"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// An active warning on the same network is not: only closed cases match.
	if _, err := svc.Create(ctx, validCreateRequest()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A resolved warning on another network is not.
	otherNet := validCreateRequest()
	otherNet.Network = NetworkEthereum
	ethW, _ := svc.Create(ctx, otherNet)
	if _, err := svc.Resolve(ctx, ethW.ID, "mod_1", "confirmed"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A resolved warning with a disjoint tag set is not.
	otherTag := validCreateRequest()
	otherTag.RiskTypes = []RiskType{RiskHoneypot}
	hpW, _ := svc.Create(ctx, otherTag)
	if _, err := svc.Resolve(ctx, hpW.ID, "mod_1", "confirmed"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	subject, _ := svc.Create(ctx, validCreateRequest())
	similar, err := svc.FindSimilar(ctx, subject.ID, 5)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}

	if len(similar) != 1 {
		t.Fatalf("got %d similar warnings, want 1: %+v", len(similar), similar)
	}
	if similar[0].ID != prior.ID {
		t.Errorf("similar[0].ID = %s, want %s", similar[0].ID, prior.ID)
	}
}

func TestFindSimilar_ExcludesSelf(t *testing.T) {
	svc := newTestService(0.7)
	ctx := context.Background()

	w, _ := svc.Create(ctx, validCreateRequest())
	if _, err := svc.Resolve(ctx, w.ID, "mod_1", "confirmed"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	similar, err := svc.FindSimilar(ctx, w.ID, 5)
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	for _, s := range similar {
		if s.ID == w.ID {
			t.Error("a warning must not appear in its own similar list")
		}
	}
}

// brokenStore fails every mutation while delegating reads, for verifying
// that nothing is broadcast when a write does not persist.
type brokenStore struct {
	*MemoryStore
	writeErr error
}

func (s *brokenStore) Create(ctx context.Context, w *WarningSign) error { return s.writeErr }
func (s *brokenStore) Update(ctx context.Context, w *WarningSign) error { return s.writeErr }

func TestNotify_SilentWhenPersistFails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &brokenStore{MemoryStore: NewMemoryStore(), writeErr: errors.New("db down")}
	svc := NewService(store, scoring.NewScorer(stubModel{p: 0.5}), logger)
	pub := &stubPublisher{recipients: 3}
	svc.WithPublisher(pub)

	if _, err := svc.Create(context.Background(), validCreateRequest()); err == nil {
		t.Fatal("Create with failing store: err = nil, want error")
	}
	if pub.createdCalls != 0 {
		t.Errorf("createdCalls = %d after failed create, want 0", pub.createdCalls)
	}

	// Same for transitions: seed through a healthy store, then break writes.
	healthy := newTestService(0.5)
	healthy.WithPublisher(pub)
	created, err := healthy.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	pub.updatedCalls = 0
	healthy.store = &brokenStore{MemoryStore: healthy.store.(*MemoryStore), writeErr: errors.New("db down")}
	if _, err := healthy.Resolve(context.Background(), created.ID, "mod_1", "confirmed"); err == nil {
		t.Fatal("Resolve with failing store: err = nil, want error")
	}
	if pub.updatedCalls != 0 {
		t.Errorf("updatedCalls = %d after failed resolve, want 0", pub.updatedCalls)
	}
}

func TestMutation_HonorsContextWhileLockHeld(t *testing.T) {
	svc := newTestService(0.5)
	w, err := svc.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	unlock, err := svc.locks.LockContext(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("LockContext failed: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := svc.Resolve(ctx, w.ID, "mod_1", "confirmed"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve while lock held: err = %v, want DeadlineExceeded", err)
	}
}
