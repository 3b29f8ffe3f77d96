// Package monitor re-evaluates active warnings on a fixed interval.
//
// Each monitored warning gets its own goroutine and ticker, so a slow
// provider call for one warning never delays the others and two ticks for
// the same warning never overlap. Tasks retire themselves when the warning
// reaches a terminal status or disappears.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/rugsentry/rugsentry/internal/chain"
	"github.com/rugsentry/rugsentry/internal/circuitbreaker"
	"github.com/rugsentry/rugsentry/internal/metrics"
	"github.com/rugsentry/rugsentry/internal/retry"
	"github.com/rugsentry/rugsentry/internal/scoring"
	"github.com/rugsentry/rugsentry/internal/warning"
)

// WarningService is the slice of the warning service the scheduler needs.
type WarningService interface {
	Get(ctx context.Context, id string) (*warning.WarningSign, error)
	UpdateEvidence(ctx context.Context, id string, update warning.EvidenceUpdate) (*warning.WarningSign, error)
	ListActive(ctx context.Context, limit int) ([]*warning.WarningSign, error)
}

// Config for the scheduler.
type Config struct {
	// Interval between re-evaluations of one warning.
	Interval time.Duration
	// SweepInterval between scans for newly-created active warnings.
	SweepInterval time.Duration
	// TickTimeout bounds one full tick (all provider calls plus the write).
	TickTimeout time.Duration
	// RetryAttempts per provider call inside a tick.
	RetryAttempts int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Minute,
		SweepInterval: 1 * time.Minute,
		TickTimeout:   30 * time.Second,
		RetryAttempts: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = d.TickTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	return c
}

// task is one warning's monitoring loop state.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}

	// last observed chain state, owned by the task goroutine
	lastReserveSum float64
	lastBlock      uint64
	lastTeamNonce  uint64
	teamNonceSeen  bool
}

// Scheduler owns the per-warning monitoring loops.
type Scheduler struct {
	service  WarningService
	provider chain.Provider
	breaker  *circuitbreaker.Breaker
	config   Config
	logger   *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a monitoring scheduler.
func NewScheduler(service WarningService, provider chain.Provider, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  service,
		provider: provider,
		breaker:  circuitbreaker.New(5, 30*time.Second),
		config:   cfg.withDefaults(),
		logger:   logger,
		tasks:    make(map[string]*task),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop that picks up active warnings. Call in a
// goroutine; Stop shuts everything down.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-s.stop:
			s.stopAll()
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop shuts down the sweep loop and every monitoring task.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// StartMonitoring begins the re-evaluation loop for a warning. Idempotent:
// a warning already being monitored keeps its existing timer.
func (s *Scheduler) StartMonitoring(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; ok {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[id] = t
	metrics.MonitoredWarnings.Set(float64(len(s.tasks)))

	go s.run(taskCtx, id, t)
	s.logger.Info("monitoring started", "warningId", id)
}

// StopMonitoring cancels a warning's loop. Idempotent; unknown IDs are a no-op.
func (s *Scheduler) StopMonitoring(id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
		metrics.MonitoredWarnings.Set(float64(len(s.tasks)))
	}
	s.mu.Unlock()

	if ok {
		t.cancel()
		<-t.done
		s.logger.Info("monitoring stopped", "warningId", id)
	}
}

// Monitoring reports whether a warning currently has a timer.
func (s *Scheduler) Monitoring(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// Count returns the number of monitored warnings.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*task)
	metrics.MonitoredWarnings.Set(0)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
		<-t.done
	}
}

// sweep starts monitoring for active warnings that have no timer yet.
func (s *Scheduler) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in monitor sweep", "panic", fmt.Sprint(r))
		}
	}()

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
	defer cancel()

	active, err := s.service.ListActive(sweepCtx, 200)
	if err != nil {
		s.logger.Warn("failed to list active warnings", "error", err)
		return
	}
	for _, w := range active {
		s.StartMonitoring(ctx, w.ID)
	}
}

// run is one warning's loop. The ticker fires sequentially in this goroutine,
// so a tick that runs long simply delays the next one.
func (s *Scheduler) run(ctx context.Context, id string, t *task) {
	defer close(t.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if retired := s.safeTick(ctx, id, t); retired {
				s.retire(id)
				return
			}
		}
	}
}

// retire removes the task entry without joining the goroutine (the caller is
// the task goroutine itself).
func (s *Scheduler) retire(id string) {
	s.mu.Lock()
	if t, ok := s.tasks[id]; ok {
		delete(s.tasks, id)
		metrics.MonitoredWarnings.Set(float64(len(s.tasks)))
		t.cancel()
	}
	s.mu.Unlock()
	metrics.MonitorTicks.WithLabelValues("retired").Inc()
	s.logger.Info("monitoring retired", "warningId", id)
}

func (s *Scheduler) safeTick(ctx context.Context, id string, t *task) (retired bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in monitor tick", "warningId", id, "panic", fmt.Sprint(r))
		}
	}()
	return s.tick(ctx, id, t)
}

// tick re-reads chain state for one warning and merges the result as an
// evidence fragment. Returns true when the task should retire.
func (s *Scheduler) tick(ctx context.Context, id string, t *task) bool {
	tickCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
	defer cancel()

	w, err := s.service.Get(tickCtx, id)
	if errors.Is(err, warning.ErrNotFound) {
		return true
	}
	if err != nil {
		s.logger.Warn("monitor tick failed to load warning", "warningId", id, "error", err)
		metrics.MonitorTicks.WithLabelValues("skipped").Inc()
		return false
	}
	if w.Status.Terminal() {
		return true
	}

	update, err := s.collect(tickCtx, w, t)
	if err != nil {
		// Provider trouble is logged and the tick skipped; the warning keeps
		// its last evidence and the timer keeps running.
		s.logger.Warn("monitor tick skipped",
			"warningId", id,
			"network", w.Network,
			"error", err,
		)
		metrics.MonitorTicks.WithLabelValues("skipped").Inc()
		return false
	}
	if update.Empty() {
		metrics.MonitorTicks.WithLabelValues("skipped").Inc()
		return false
	}

	if _, err := s.service.UpdateEvidence(tickCtx, id, update); err != nil {
		if errors.Is(err, warning.ErrNotFound) || errors.Is(err, warning.ErrInvalidTransition) {
			return true
		}
		s.logger.Warn("monitor tick failed to merge evidence", "warningId", id, "error", err)
		metrics.MonitorTicks.WithLabelValues("skipped").Inc()
		return false
	}

	metrics.MonitorTicks.WithLabelValues("updated").Inc()
	return false
}

// collect gathers fresh chain state for a warning. Unsupported networks and
// warnings without usable addresses yield an empty update, not an error.
func (s *Scheduler) collect(ctx context.Context, w *warning.WarningSign, t *task) (warning.EvidenceUpdate, error) {
	var update warning.EvidenceUpdate
	network := string(w.Network)
	breakerKey := "provider:" + network

	if w.PairAddress != "" {
		if !s.breaker.Allow(breakerKey) {
			return update, fmt.Errorf("circuit open for %s", network)
		}

		var reserves *chain.PoolReserves
		err := retry.Do(ctx, s.config.RetryAttempts, 500*time.Millisecond, func() error {
			var callErr error
			reserves, callErr = s.provider.PoolReserves(ctx, network, w.PairAddress)
			if errors.Is(callErr, chain.ErrUnsupportedNetwork) {
				return retry.Permanent(callErr)
			}
			return callErr
		})
		switch {
		case errors.Is(err, chain.ErrUnsupportedNetwork):
			// Nothing to poll for this network; fall through to social-only.
		case err != nil:
			s.breaker.RecordFailure(breakerKey)
			return update, err
		default:
			s.breaker.RecordSuccess(breakerKey)
			sum := chain.ReserveSum(reserves)
			change := warning.LiquidityChangePct(t.lastReserveSum, sum)
			t.lastReserveSum = sum

			now := time.Now()
			update.Market = &warning.MarketUpdate{
				LiquidityChangePct: &change,
				Timestamp:          &now,
			}
		}
	}

	if w.ContractAddress != "" {
		onchain := &warning.OnChainUpdate{Details: map[string]any{}}

		// Re-scan the deployed bytecode each tick: upgradeable contracts can
		// grow risk patterns after the warning was filed.
		var risks *chain.ContractRisks
		err := retry.Do(ctx, s.config.RetryAttempts, 500*time.Millisecond, func() error {
			var callErr error
			risks, callErr = s.provider.ContractRisks(ctx, network, w.ContractAddress)
			if errors.Is(callErr, chain.ErrUnsupportedNetwork) {
				return retry.Permanent(callErr)
			}
			return callErr
		})
		switch {
		case errors.Is(err, chain.ErrUnsupportedNetwork):
		case err != nil:
			s.logger.Warn("contract risk scan failed", "warningId", w.ID, "network", network, "error", err)
		case risks.IsContract:
			onchain.Details[scoring.DetailSuspiciousPatterns] = len(risks.Patterns)
			if len(risks.Patterns) > 0 {
				onchain.Details["risk_patterns"] = risks.Patterns
			}
		}

		head, err := s.provider.HeadBlock(ctx, network)
		if err == nil && t.lastBlock > 0 {
			transfers, terr := s.provider.LargeTransfers(ctx, network, w.ContractAddress, t.lastBlock+1, minLargeTransferValue)
			if terr == nil && len(transfers) > 0 {
				latest := transfers[len(transfers)-1]
				onchain.TxHash = &latest.TxHash
				onchain.BlockNumber = &latest.BlockNumber
				onchain.Details["large_transfer_count"] = len(transfers)
				onchain.Details["largest_transfer"] = largest(transfers).String()
			}
		}
		if err == nil {
			t.lastBlock = head
		}

		if addrs := teamWallets(w); len(addrs) > 0 {
			activity, werr := s.provider.TrackTeamWallets(ctx, network, addrs)
			if werr != nil {
				s.logger.Warn("team wallet tracking failed", "warningId", w.ID, "network", network, "error", werr)
			} else {
				var total uint64
				for _, a := range activity {
					total += a.Nonce
				}
				// A rising total nonce means at least one team wallet sent a
				// transaction since the previous tick.
				if t.teamNonceSeen && total > t.lastTeamNonce {
					onchain.Details["team_wallet_tx_delta"] = int(total - t.lastTeamNonce)
				}
				t.lastTeamNonce = total
				t.teamNonceSeen = true
			}
		}

		if len(onchain.Details) > 0 {
			now := time.Now()
			onchain.Timestamp = &now
			update.OnChain = onchain
		}
	}

	return update, nil
}

// teamWallets pulls the known team wallet addresses out of a warning's
// evidence details. Tolerates both in-memory []string and the []any shape
// the JSON round-trip produces.
func teamWallets(w *warning.WarningSign) []string {
	if w.Evidence.OnChain == nil {
		return nil
	}
	switch v := w.Evidence.OnChain.Details["team_wallets"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// minLargeTransferValue filters transfer noise; raw token units.
var minLargeTransferValue = new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil)

func largest(transfers []chain.LargeTransfer) *big.Int {
	max := big.NewInt(0)
	for _, tr := range transfers {
		if tr.Value != nil && tr.Value.Cmp(max) > 0 {
			max = tr.Value
		}
	}
	return max
}
