package risk

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakePauseStore struct {
	paused bool
	err    error
}

func (f *fakePauseStore) SetPaused(_ context.Context, paused bool, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.paused = paused
	return nil
}

func (f *fakePauseStore) Paused(_ context.Context) (bool, error) {
	return f.paused, f.err
}

type fakePositions struct {
	domain.PositionStore
	active int
	err    error
}

func (f *fakePositions) CountActive(_ context.Context) (int, error) {
	return f.active, f.err
}

type fakeFills struct {
	domain.FillStore
	pnl float64
	err error
}

func (f *fakeFills) SumRealizedPnLSince(_ context.Context, _ time.Time) (float64, error) {
	return f.pnl, f.err
}

func testLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxPositionSizeSOL:     1.0,
		MaxDailyLossSOL:        0.5,
		MaxSlippageBps:         300,
		MinLiquiditySOL:        5,
		MaxConcurrentPositions: 3,
		MinProfitBps:           10,
		MaxConsecutiveFailures: 3,
	}
}

func newTestGate(pause *fakePauseStore, positions *fakePositions, fills *fakeFills) (*Gate, *Breaker) {
	m := metrics.New()
	breaker := NewBreaker(3, pause, m, discardLogger())
	gate := NewGate(testLimits(), breaker, positions, fills, nil, m, discardLogger())
	return gate, breaker
}

func admissibleOpp() domain.Opportunity {
	return domain.Opportunity{
		ID:                 "opp1",
		Strategy:           domain.StrategySniper,
		Asset:              "mintA",
		ProfitBps:          120,
		RequiredCapitalSOL: 0.5,
		EstLiquiditySOL:    50,
		MaxSlippageBps:     100,
	}
}

func TestGateAdmits(t *testing.T) {
	gate, _ := newTestGate(&fakePauseStore{}, &fakePositions{active: 1}, &fakeFills{pnl: -0.1})
	if rej := gate.Admit(context.Background(), admissibleOpp()); rej != nil {
		t.Fatalf("Admit rejected: %s (%s)", rej.Reason, rej.Detail)
	}
}

func TestGateRejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domain.Opportunity)
		positions *fakePositions
		fills     *fakeFills
		want      domain.RejectReason
	}{
		{
			name:      "oversized position",
			mutate:    func(o *domain.Opportunity) { o.RequiredCapitalSOL = 1.5 },
			positions: &fakePositions{},
			fills:     &fakeFills{},
			want:      domain.RejectMaxPositionSize,
		},
		{
			name:      "below profit floor",
			mutate:    func(o *domain.Opportunity) { o.ProfitBps = 5 },
			positions: &fakePositions{},
			fills:     &fakeFills{},
			want:      domain.RejectBelowMinProfit,
		},
		{
			name:      "position slots exhausted",
			mutate:    func(o *domain.Opportunity) {},
			positions: &fakePositions{active: 3},
			fills:     &fakeFills{},
			want:      domain.RejectMaxPositions,
		},
		{
			name:      "thin liquidity",
			mutate:    func(o *domain.Opportunity) { o.EstLiquiditySOL = 1 },
			positions: &fakePositions{},
			fills:     &fakeFills{},
			want:      domain.RejectMinLiquidity,
		},
		{
			name:      "excessive slippage",
			mutate:    func(o *domain.Opportunity) { o.MaxSlippageBps = 400 },
			positions: &fakePositions{},
			fills:     &fakeFills{},
			want:      domain.RejectMaxSlippage,
		},
		{
			name:      "daily loss limit hit",
			mutate:    func(o *domain.Opportunity) {},
			positions: &fakePositions{},
			fills:     &fakeFills{pnl: -0.6},
			want:      domain.RejectDailyLoss,
		},
		{
			name:      "position count unavailable fails closed",
			mutate:    func(o *domain.Opportunity) {},
			positions: &fakePositions{err: errors.New("redis down")},
			fills:     &fakeFills{},
			want:      domain.RejectMaxPositions,
		},
		{
			name:      "pnl unavailable fails closed",
			mutate:    func(o *domain.Opportunity) {},
			positions: &fakePositions{},
			fills:     &fakeFills{err: errors.New("postgres down")},
			want:      domain.RejectDailyLoss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, _ := newTestGate(&fakePauseStore{}, tt.positions, tt.fills)
			opp := admissibleOpp()
			tt.mutate(&opp)

			rej := gate.Admit(context.Background(), opp)
			if rej == nil {
				t.Fatal("expected rejection, got admission")
			}
			if rej.Reason != tt.want {
				t.Fatalf("reason = %s, want %s", rej.Reason, tt.want)
			}
		})
	}
}

func TestDailyLossBreachTripsBreaker(t *testing.T) {
	pause := &fakePauseStore{}
	fills := &fakeFills{pnl: -0.6}
	gate, breaker := newTestGate(pause, &fakePositions{}, fills)

	ctx := context.Background()
	rej := gate.Admit(ctx, admissibleOpp())
	if rej == nil || rej.Reason != domain.RejectDailyLoss {
		t.Fatalf("rejection = %v, want %s", rej, domain.RejectDailyLoss)
	}
	if !breaker.Paused() {
		t.Fatal("daily-loss breach did not trip the breaker")
	}
	if !pause.paused {
		t.Fatal("pause state not mirrored to the store")
	}
	if breaker.Reason() != "max_daily_loss" {
		t.Fatalf("pause reason = %q, want max_daily_loss", breaker.Reason())
	}

	// The realized-loss window rolling over must not resume admission: the
	// pause holds until an explicit reset.
	fills.pnl = 0
	rej = gate.Admit(ctx, admissibleOpp())
	if rej == nil || rej.Reason != domain.RejectTradingPaused {
		t.Fatalf("rejection after window rollover = %v, want %s", rej, domain.RejectTradingPaused)
	}

	breaker.Reset(ctx, "operator")
	if rej := gate.Admit(ctx, admissibleOpp()); rej != nil {
		t.Fatalf("Admit after reset rejected: %s", rej.Reason)
	}
}

func TestPausedGateRejectsEverything(t *testing.T) {
	gate, breaker := newTestGate(&fakePauseStore{}, &fakePositions{}, &fakeFills{})
	breaker.Pause(context.Background(), "guardian")

	rej := gate.Admit(context.Background(), admissibleOpp())
	if rej == nil {
		t.Fatal("expected rejection while paused")
	}
	if rej.Reason != domain.RejectTradingPaused {
		t.Fatalf("reason = %s, want %s", rej.Reason, domain.RejectTradingPaused)
	}
}

func TestBreakerTripsOnConsecutiveFailures(t *testing.T) {
	pause := &fakePauseStore{}
	_, breaker := newTestGate(pause, &fakePositions{}, &fakeFills{})

	ctx := context.Background()
	breaker.RecordFailure(ctx)
	breaker.RecordFailure(ctx)
	if breaker.Paused() {
		t.Fatal("breaker tripped before the threshold")
	}
	breaker.RecordFailure(ctx)
	if !breaker.Paused() {
		t.Fatal("breaker did not trip at the threshold")
	}
	if !pause.paused {
		t.Fatal("pause state not mirrored to the store")
	}

	// A success after the trip must not resume trading.
	breaker.RecordSuccess()
	if !breaker.Paused() {
		t.Fatal("breaker resumed without an explicit reset")
	}

	breaker.Reset(ctx, "operator")
	if breaker.Paused() {
		t.Fatal("breaker still paused after explicit reset")
	}
	if pause.paused {
		t.Fatal("resume not mirrored to the store")
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	_, breaker := newTestGate(&fakePauseStore{}, &fakePositions{}, &fakeFills{})

	ctx := context.Background()
	breaker.RecordFailure(ctx)
	breaker.RecordFailure(ctx)
	breaker.RecordSuccess()
	breaker.RecordFailure(ctx)
	breaker.RecordFailure(ctx)
	if breaker.Paused() {
		t.Fatal("breaker tripped despite an interleaved success")
	}
}

func TestBreakerSyncFailsClosed(t *testing.T) {
	pause := &fakePauseStore{err: errors.New("redis down")}
	_, breaker := newTestGate(pause, &fakePositions{}, &fakeFills{})

	breaker.Sync(context.Background())
	if !breaker.Paused() {
		t.Fatal("breaker not paused when pause state is unreadable")
	}
}
