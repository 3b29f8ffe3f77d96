package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rugsentry/rugsentry/internal/chain"
	"github.com/rugsentry/rugsentry/internal/scoring"
	"github.com/rugsentry/rugsentry/internal/warning"
)

type fakeService struct {
	mu       sync.Mutex
	warnings map[string]*warning.WarningSign
	updates  int
	getErr   error
}

func newFakeService(ws ...*warning.WarningSign) *fakeService {
	s := &fakeService{warnings: make(map[string]*warning.WarningSign)}
	for _, w := range ws {
		s.warnings[w.ID] = w
	}
	return s
}

func (s *fakeService) Get(ctx context.Context, id string) (*warning.WarningSign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	w, ok := s.warnings[id]
	if !ok {
		return nil, warning.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *fakeService) UpdateEvidence(ctx context.Context, id string, update warning.EvidenceUpdate) (*warning.WarningSign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.warnings[id]
	if !ok {
		return nil, warning.ErrNotFound
	}
	if w.Status.Terminal() {
		return nil, warning.ErrInvalidTransition
	}
	s.updates++
	w.Evidence = warning.MergeEvidence(w.Evidence, update)
	return w, nil
}

func (s *fakeService) ListActive(ctx context.Context, limit int) ([]*warning.WarningSign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*warning.WarningSign
	for _, w := range s.warnings {
		if w.Status == warning.StatusActive {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeService) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

func (s *fakeService) close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.warnings[id]; ok {
		w.Status = warning.StatusResolved
	}
}

type fakeProvider struct {
	mu          sync.Mutex
	reserves    float64
	calls       int
	riskCalls   int
	patterns    []string
	walletNonce uint64
	err         error
}

func (p *fakeProvider) TokenInfo(ctx context.Context, network, tokenAddr string) (*chain.TokenInfo, error) {
	return nil, chain.ErrUnsupportedNetwork
}

func (p *fakeProvider) ContractRisks(ctx context.Context, network, contractAddr string) (*chain.ContractRisks, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.riskCalls++
	if p.err != nil {
		return nil, p.err
	}
	return &chain.ContractRisks{IsContract: true, Patterns: p.patterns, CodeSize: 512}, nil
}

func (p *fakeProvider) PoolReserves(ctx context.Context, network, pairAddr string) (*chain.PoolReserves, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	half := big.NewInt(int64(p.reserves / 2))
	return &chain.PoolReserves{Reserve0: half, Reserve1: half}, nil
}

func (p *fakeProvider) LargeTransfers(ctx context.Context, network, tokenAddr string, fromBlock uint64, threshold *big.Int) ([]chain.LargeTransfer, error) {
	return nil, nil
}

func (p *fakeProvider) TrackTeamWallets(ctx context.Context, network string, addresses []string) ([]chain.TeamWalletActivity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([]chain.TeamWalletActivity, 0, len(addresses))
	for _, addr := range addresses {
		out = append(out, chain.TeamWalletActivity{
			Address:       addr,
			NativeBalance: big.NewInt(1000),
			Nonce:         p.walletNonce,
		})
	}
	return out, nil
}

func (p *fakeProvider) HeadBlock(ctx context.Context, network string) (uint64, error) {
	return 100, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) riskCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.riskCalls
}

func (p *fakeProvider) bumpWalletNonce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.walletNonce++
}

func activeWarning(id string) *warning.WarningSign {
	return &warning.WarningSign{
		ID:          id,
		Network:     warning.NetworkBSC,
		PairAddress: "0x00000000000000000000000000000000000000cc",
		RiskTypes:   []warning.RiskType{warning.RiskLiquidityReduction},
		Status:      warning.StatusActive,
	}
}

func testConfig() Config {
	return Config{
		Interval:      10 * time.Millisecond,
		SweepInterval: time.Hour, // sweeping driven explicitly in tests
		TickTimeout:   time.Second,
		RetryAttempts: 1,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestScheduler_TicksMergeEvidence(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"))
	provider := &fakeProvider{reserves: 10000}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	defer sched.StopMonitoring("warn_1")

	waitFor(t, 2*time.Second, func() bool { return svc.updateCount() >= 2 })

	if !sched.Monitoring("warn_1") {
		t.Error("warning should still be monitored")
	}
}

func TestScheduler_TicksRescanContractRisks(t *testing.T) {
	w := activeWarning("warn_1")
	w.ContractAddress = "0x00000000000000000000000000000000000000aa"
	svc := newFakeService(w)
	provider := &fakeProvider{reserves: 10000, patterns: []string{chain.PatternMintable}}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	defer sched.StopMonitoring("warn_1")

	// The bytecode scan must run on every tick, not just the first.
	waitFor(t, 2*time.Second, func() bool { return provider.riskCallCount() >= 3 })

	svc.mu.Lock()
	defer svc.mu.Unlock()
	oc := svc.warnings["warn_1"].Evidence.OnChain
	if oc == nil {
		t.Fatal("no on-chain evidence merged")
	}
	if got, _ := oc.Details[scoring.DetailSuspiciousPatterns].(int); got != 1 {
		t.Errorf("suspicious_patterns = %v, want 1", oc.Details[scoring.DetailSuspiciousPatterns])
	}
}

func TestScheduler_TracksTeamWallets(t *testing.T) {
	w := activeWarning("warn_1")
	w.ContractAddress = "0x00000000000000000000000000000000000000aa"
	w.Evidence.OnChain = &warning.OnChainEvidence{Details: map[string]any{
		"team_wallets": []string{"0xd1", "0xd2"},
	}}
	svc := newFakeService(w)
	provider := &fakeProvider{reserves: 10000}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	defer sched.StopMonitoring("warn_1")

	// First tick records the nonce baseline; a bump afterwards must surface
	// as a transaction delta on a later tick.
	waitFor(t, 2*time.Second, func() bool { return svc.updateCount() >= 1 })
	provider.bumpWalletNonce()

	waitFor(t, 2*time.Second, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		oc := svc.warnings["warn_1"].Evidence.OnChain
		if oc == nil {
			return false
		}
		delta, _ := oc.Details["team_wallet_tx_delta"].(int)
		return delta == 2
	})
}

func TestScheduler_IdempotentStart(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"))
	provider := &fakeProvider{reserves: 10000}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	sched.StartMonitoring(ctx, "warn_1")
	sched.StartMonitoring(ctx, "warn_1")
	defer sched.StopMonitoring("warn_1")

	if got := sched.Count(); got != 1 {
		t.Errorf("Count = %d, want 1 (start must be idempotent)", got)
	}
}

func TestScheduler_RetiresOnTerminal(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"))
	provider := &fakeProvider{reserves: 10000}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	waitFor(t, 2*time.Second, func() bool { return svc.updateCount() >= 1 })

	svc.close("warn_1")
	waitFor(t, 2*time.Second, func() bool { return !sched.Monitoring("warn_1") })
}

func TestScheduler_RetiresOnNotFound(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"))
	provider := &fakeProvider{reserves: 10000}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	waitFor(t, 2*time.Second, func() bool { return svc.updateCount() >= 1 })

	svc.mu.Lock()
	delete(svc.warnings, "warn_1")
	svc.mu.Unlock()

	waitFor(t, 2*time.Second, func() bool { return !sched.Monitoring("warn_1") })
}

func TestScheduler_ProviderFailureSkipsTick(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"))
	provider := &fakeProvider{err: errors.New("rpc down")}
	sched := NewScheduler(svc, provider, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	defer sched.StopMonitoring("warn_1")

	waitFor(t, 2*time.Second, func() bool { return provider.callCount() >= 2 })

	if svc.updateCount() != 0 {
		t.Errorf("updates = %d, want 0 when the provider is down", svc.updateCount())
	}
	if !sched.Monitoring("warn_1") {
		t.Error("failed ticks must not retire the task")
	}
}

func TestScheduler_StopMonitoringIdempotent(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"))
	sched := NewScheduler(svc, &fakeProvider{reserves: 100}, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.StartMonitoring(ctx, "warn_1")
	sched.StopMonitoring("warn_1")
	sched.StopMonitoring("warn_1") // no-op
	sched.StopMonitoring("warn_unknown")

	if sched.Count() != 0 {
		t.Errorf("Count = %d, want 0", sched.Count())
	}
}

func TestScheduler_SweepPicksUpActives(t *testing.T) {
	svc := newFakeService(activeWarning("warn_1"), activeWarning("warn_2"))
	closed := activeWarning("warn_closed")
	closed.Status = warning.StatusResolved
	svc.warnings[closed.ID] = closed

	sched := NewScheduler(svc, &fakeProvider{reserves: 100}, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.sweep(ctx)
	defer sched.stopAll()

	if got := sched.Count(); got != 2 {
		t.Errorf("Count = %d, want 2 (terminal warnings are not monitored)", got)
	}
}
