package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
	"github.com/SynergiaOS/solana-hft-ninja/internal/risk"
	"github.com/SynergiaOS/solana-hft-ninja/internal/rpcpool"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakePauseStore struct {
	mu     sync.Mutex
	paused bool
	reason string
}

func (s *fakePauseStore) SetPaused(_ context.Context, paused bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused, s.reason = paused, reason
	return nil
}

func (s *fakePauseStore) Paused(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused, nil
}

type fakePositions struct {
	domain.PositionStore
	mu      sync.Mutex
	created []domain.Position
	dup     bool
}

func (s *fakePositions) Create(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dup {
		return domain.ErrAlreadyExists
	}
	s.created = append(s.created, pos)
	return nil
}

func (s *fakePositions) CountActive(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created), nil
}

type fakeFills struct {
	domain.FillStore
	mu       sync.Mutex
	inserted []domain.Fill
}

func (s *fakeFills) Insert(_ context.Context, fill domain.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, fill)
	return nil
}

func (s *fakeFills) SumRealizedPnLSince(context.Context, time.Time) (float64, error) {
	return 0, nil
}

type fakePrices struct {
	price float64
}

func (p *fakePrices) SetPrice(context.Context, string, float64, time.Time) error { return nil }

func (p *fakePrices) GetPrice(context.Context, string) (float64, time.Time, error) {
	if p.price == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p.price, time.Now(), nil
}

type fakeLocks struct {
	held bool
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

type fakeChain struct{}

func (fakeChain) GetLatestBlockhash(context.Context, string) (rpcpool.LatestBlockhash, error) {
	return rpcpool.LatestBlockhash{Blockhash: "hash", LastValidBlockHeight: 100}, nil
}

func (fakeChain) GetSlot(context.Context, string) (uint64, error) { return 500, nil }

type fakeBuilder struct{}

func (fakeBuilder) Build(opp domain.Opportunity, _ string, targetSlot uint64, validUntil time.Time) (domain.Bundle, error) {
	return domain.Bundle{
		ID:           "bundle-" + opp.ID,
		Strategy:     opp.Strategy,
		Asset:        opp.Asset,
		Transactions: [][]byte{{1}},
		TargetSlot:   targetSlot,
		ValidUntil:   validUntil,
	}, nil
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	err   error
	noop  bool
}

func (s *fakeSubmitter) Submit(_ context.Context, b domain.Bundle) (domain.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	res := domain.SubmissionResult{BundleID: b.ID, SubmittedAt: time.Now()}
	if s.err != nil {
		res.Status = domain.BundleRejected
		return res, s.err
	}
	if s.noop {
		res.Status = domain.BundleRejected
		res.Message = "submission in flight"
		return res, nil
	}
	res.Status = domain.BundleConfirmed
	return res, nil
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type harness struct {
	exec      *Executor
	positions *fakePositions
	fills     *fakeFills
	submitter *fakeSubmitter
	breaker   *risk.Breaker
	pause     *fakePauseStore
	locks     *fakeLocks
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := metrics.New()
	logger := discardLogger()

	pause := &fakePauseStore{}
	positions := &fakePositions{}
	fills := &fakeFills{}
	breaker := risk.NewBreaker(2, pause, m, logger)
	limits := domain.RiskLimits{
		MaxPositionSizeSOL:     10,
		MaxDailyLossSOL:        5,
		MaxSlippageBps:         1000,
		MinLiquiditySOL:        0,
		MaxConcurrentPositions: 10,
		MinProfitBps:           1,
	}
	gate := risk.NewGate(limits, breaker, positions, fills, nil, m, logger)

	submitter := &fakeSubmitter{}
	locks := &fakeLocks{}
	h := &harness{
		positions: positions,
		fills:     fills,
		submitter: submitter,
		breaker:   breaker,
		pause:     pause,
		locks:     locks,
	}
	h.exec = NewExecutor(
		nil, gate, breaker, fakeBuilder{}, submitter, fakeChain{}, locks,
		positions, fills, &fakePrices{price: 2.5}, nil,
		"wallet1",
		PositionDefaults{StopLossPct: 0.05, TakeProfitPct: 0.1, MaxHold: time.Minute},
		Config{},
		m, logger,
	)
	return h
}

func testOpp(id string) domain.Opportunity {
	return domain.Opportunity{
		ID:                 id,
		Strategy:           domain.StrategySniper,
		Asset:              "mint-" + id,
		Pair:               "mint/SOL",
		ExpectedProfitSOL:  0.05,
		ProfitBps:          500,
		RequiredCapitalSOL: 1,
		MaxSlippageBps:     100,
		EstLiquiditySOL:    50,
		SourceSignature:    "sig-" + id,
		CreatedAt:          time.Now().UTC(),
		ExpiresAt:          time.Now().UTC().Add(time.Second),
	}
}

func TestExecutorOpensPosition(t *testing.T) {
	h := newHarness(t)
	h.exec.process(context.Background(), testOpp("a"))

	if got := h.submitter.count(); got != 1 {
		t.Fatalf("submit calls = %d, want 1", got)
	}
	if len(h.positions.created) != 1 {
		t.Fatalf("positions created = %d, want 1", len(h.positions.created))
	}
	pos := h.positions.created[0]
	if pos.Status != domain.PositionStatusOpen {
		t.Fatalf("status = %s, want open", pos.Status)
	}
	if pos.EntryPrice != 2.5 {
		t.Fatalf("entry price = %f, want 2.5 from cache", pos.EntryPrice)
	}
	if pos.EntryBundleID == "" {
		t.Fatal("entry bundle ID not recorded")
	}
	if pos.StopLossPct != 0.05 || pos.MaxHold != time.Minute {
		t.Fatalf("exit parameters not stamped: %+v", pos)
	}
	if len(h.fills.inserted) != 1 || h.fills.inserted[0].Side != "entry" {
		t.Fatalf("entry fill not journaled: %+v", h.fills.inserted)
	}
}

func TestExecutorNoOpResubmitOpensNothing(t *testing.T) {
	h := newHarness(t)
	h.submitter.noop = true

	h.exec.process(context.Background(), testOpp("a"))
	if len(h.positions.created) != 0 {
		t.Fatalf("positions created = %d, want 0 for a no-op submission", len(h.positions.created))
	}
	if h.breaker.Paused() {
		t.Fatal("no-op submission must not count toward the breaker")
	}
}

func TestExecutorDeduplicates(t *testing.T) {
	h := newHarness(t)
	opp := testOpp("a")
	h.exec.process(context.Background(), opp)
	h.exec.process(context.Background(), opp)

	if got := h.submitter.count(); got != 1 {
		t.Fatalf("submit calls = %d, want 1 after duplicate", got)
	}
}

func TestExecutorDedupWindowExpires(t *testing.T) {
	h := newHarness(t)
	h.exec.SetDedupTTL(time.Millisecond)
	h.exec.SetCleanupInterval(10 * time.Millisecond)

	opp := testOpp("a")
	h.exec.process(context.Background(), opp)
	time.Sleep(5 * time.Millisecond)
	h.exec.process(context.Background(), opp)

	if got := h.submitter.count(); got != 2 {
		t.Fatalf("submit calls = %d, want 2 once the dedup window lapsed", got)
	}
}

func TestExecutorDeduplicatesBySourceSignature(t *testing.T) {
	h := newHarness(t)
	first := testOpp("a")
	second := testOpp("b")
	second.SourceSignature = first.SourceSignature
	second.Asset = "mint-other"

	h.exec.process(context.Background(), first)
	h.exec.process(context.Background(), second)

	if got := h.submitter.count(); got != 1 {
		t.Fatalf("submit calls = %d, want 1 when source signature repeats", got)
	}
}

func TestExecutorDropsExpiredOpportunity(t *testing.T) {
	h := newHarness(t)
	opp := testOpp("a")
	opp.ExpiresAt = time.Now().UTC().Add(-time.Millisecond)
	h.exec.process(context.Background(), opp)

	if got := h.submitter.count(); got != 0 {
		t.Fatalf("submit calls = %d, want 0 for expired opportunity", got)
	}
}

func TestExecutorRespectsPause(t *testing.T) {
	h := newHarness(t)
	h.breaker.Pause(context.Background(), "operator")
	h.exec.process(context.Background(), testOpp("a"))

	if got := h.submitter.count(); got != 0 {
		t.Fatalf("submit calls = %d, want 0 while paused", got)
	}
	if len(h.positions.created) != 0 {
		t.Fatal("position opened while paused")
	}
}

func TestExecutorSkipsHeldLock(t *testing.T) {
	h := newHarness(t)
	h.locks.held = true
	h.exec.process(context.Background(), testOpp("a"))

	if got := h.submitter.count(); got != 0 {
		t.Fatalf("submit calls = %d, want 0 when entry lock is held", got)
	}
}

func TestExecutorSubmitFailuresTripBreaker(t *testing.T) {
	h := newHarness(t)
	h.submitter.err = fmt.Errorf("engine: %w", domain.ErrSubmissionRejected)

	h.exec.process(context.Background(), testOpp("a"))
	if h.breaker.Paused() {
		t.Fatal("breaker tripped after a single failure, threshold is 2")
	}
	h.exec.process(context.Background(), testOpp("b"))
	if !h.breaker.Paused() {
		t.Fatal("breaker did not trip after consecutive submission failures")
	}
	if len(h.positions.created) != 0 {
		t.Fatal("position opened for rejected bundle")
	}
}

func TestExecutorExpiredBundleDoesNotTripBreaker(t *testing.T) {
	h := newHarness(t)
	h.submitter.err = fmt.Errorf("bundle: %w", domain.ErrBundleExpired)

	h.exec.process(context.Background(), testOpp("a"))
	h.exec.process(context.Background(), testOpp("b"))
	h.exec.process(context.Background(), testOpp("c"))

	if h.breaker.Paused() {
		t.Fatal("local expiry must not trip the breaker")
	}
}

func TestExecutorRunDrainsOnClose(t *testing.T) {
	h := newHarness(t)
	ch := make(chan domain.Opportunity, 1)
	h.exec.oppCh = ch

	done := make(chan error, 1)
	go func() { done <- h.exec.Run(context.Background()) }()

	ch <- testOpp("a")
	close(ch)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on channel close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if got := h.submitter.count(); got != 1 {
		t.Fatalf("submit calls = %d, want 1", got)
	}
}
