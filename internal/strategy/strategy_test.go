package strategy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func solToLamports(sol float64) uint64 {
	return uint64(sol * lamportsPerSOL)
}

func TestSandwichEvaluate(t *testing.T) {
	cfg := SandwichConfig{
		MinVictimAmountSOL:   0.1,
		SafetyMarginBps:      50,
		MaxVictimSlippageBps: 500,
		FrontRunFraction:     0.1,
	}
	s := NewSandwich(cfg, discardLogger())

	tests := []struct {
		name string
		cand domain.Candidate
		want bool
	}{
		{
			name: "profitable victim",
			cand: domain.Candidate{
				Kind:         domain.CandidateSwap,
				BaseMint:     "mintA",
				AmountIn:     solToLamports(1.0),
				MinAmountOut: solToLamports(0.99), // 100 bps tolerance
			},
			want: true,
		},
		{
			name: "victim too small",
			cand: domain.Candidate{
				Kind:         domain.CandidateSwap,
				AmountIn:     solToLamports(0.05),
				MinAmountOut: solToLamports(0.049),
			},
			want: false,
		},
		{
			name: "tight slippage",
			cand: domain.Candidate{
				Kind:         domain.CandidateSwap,
				AmountIn:     solToLamports(1.0),
				MinAmountOut: solToLamports(0.999), // 10 bps
			},
			want: false,
		},
		{
			name: "slippage over policy ceiling",
			cand: domain.Candidate{
				Kind:         domain.CandidateSwap,
				AmountIn:     solToLamports(1.0),
				MinAmountOut: solToLamports(0.9), // 1000 bps
			},
			want: false,
		},
		{
			name: "not a swap",
			cand: domain.Candidate{Kind: domain.CandidatePoolCreation, AmountIn: solToLamports(1.0)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, err := s.Evaluate(context.Background(), tt.cand)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := opp != nil; got != tt.want {
				t.Fatalf("got opportunity=%v, want %v", got, tt.want)
			}
			if opp != nil {
				if opp.Strategy != domain.StrategySandwich {
					t.Fatalf("strategy = %s, want sandwich", opp.Strategy)
				}
				if opp.ExpectedProfitSOL <= 0 {
					t.Fatalf("expected profit = %f, want > 0", opp.ExpectedProfitSOL)
				}
				if opp.SourceSignature != tt.cand.Signature {
					t.Fatalf("source signature not carried over")
				}
			}
		})
	}
}

func TestSniperEvaluate(t *testing.T) {
	cfg := SniperConfig{
		MinInitialLiqSOL: 10,
		SizeSOL:          0.5,
		OpportunityTTL:   3 * time.Second,
		MaxCandidateAge:  time.Second,
	}
	s := NewSniper(cfg, discardLogger())

	fresh := time.Now()

	tests := []struct {
		name string
		cand domain.Candidate
		want bool
	}{
		{
			name: "funded launch",
			cand: domain.Candidate{
				Kind:                     domain.CandidatePoolCreation,
				BaseMint:                 "newMint",
				InitialLiquidityLamports: solToLamports(50),
				ObservedAt:               fresh,
			},
			want: true,
		},
		{
			name: "dust pool",
			cand: domain.Candidate{
				Kind:                     domain.CandidatePoolCreation,
				BaseMint:                 "newMint",
				InitialLiquidityLamports: solToLamports(1),
				ObservedAt:               fresh,
			},
			want: false,
		},
		{
			name: "stale candidate",
			cand: domain.Candidate{
				Kind:                     domain.CandidatePoolCreation,
				BaseMint:                 "newMint",
				InitialLiquidityLamports: solToLamports(50),
				ObservedAt:               fresh.Add(-5 * time.Second),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, err := s.Evaluate(context.Background(), tt.cand)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := opp != nil; got != tt.want {
				t.Fatalf("got opportunity=%v, want %v", got, tt.want)
			}
			if opp != nil && opp.ExpiresAt.Before(opp.CreatedAt) {
				t.Fatal("opportunity expires before it is created")
			}
		})
	}
}

func TestArbitrageDetectsDivergence(t *testing.T) {
	a := NewArbitrage(ArbitrageConfig{
		MinProfitBps:   30,
		ExchangeFeeBps: 25,
		MaxCapitalSOL:  1,
	}, discardLogger())

	raydium := domain.Candidate{
		Kind:         domain.CandidateSwap,
		Program:      domain.DexRaydiumAMM,
		BaseMint:     "mintA",
		QuoteMint:    "mintB",
		AmountIn:     solToLamports(1.0),
		MinAmountOut: solToLamports(1.0),
	}
	if opp, err := a.Evaluate(context.Background(), raydium); err != nil || opp != nil {
		t.Fatalf("first quote: opp=%v err=%v, want nil/nil", opp, err)
	}

	// Orca quoting 2% away: 200 bps spread minus 50 bps fees clears the floor.
	orca := raydium
	orca.Program = domain.DexOrcaWhirlpool
	orca.MinAmountOut = solToLamports(1.02)

	opp, err := a.Evaluate(context.Background(), orca)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if opp == nil {
		t.Fatal("expected an opportunity on diverged venues")
	}
	if opp.Strategy != domain.StrategyArbitrage {
		t.Fatalf("strategy = %s, want arbitrage", opp.Strategy)
	}
	if opp.ProfitBps <= 0 {
		t.Fatalf("net profit bps = %f, want > 0", opp.ProfitBps)
	}
	if opp.RequiredCapitalSOL > 1 {
		t.Fatalf("capital = %f, want capped at 1", opp.RequiredCapitalSOL)
	}
}

func TestJupiterArbAgainstDirectQuote(t *testing.T) {
	j := NewJupiterArb(JupiterArbConfig{
		MinProfitBps:  30,
		MaxCapitalSOL: 2,
	}, discardLogger())

	direct := domain.Candidate{
		Kind:         domain.CandidateSwap,
		Program:      domain.DexRaydiumAMM,
		BaseMint:     "mintA",
		QuoteMint:    "mintB",
		AmountIn:     solToLamports(1.0),
		MinAmountOut: solToLamports(1.0),
	}
	if opp, _ := j.Evaluate(context.Background(), direct); opp != nil {
		t.Fatal("direct quote alone should not produce an opportunity")
	}

	route := direct
	route.Program = domain.DexJupiterV6
	route.MinAmountOut = solToLamports(0.99) // 100 bps below direct

	opp, err := j.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if opp == nil {
		t.Fatal("expected an opportunity when the route quotes below the pool")
	}
	if opp.Strategy != domain.StrategyJupiterArb {
		t.Fatalf("strategy = %s, want jupiter_arb", opp.Strategy)
	}
}

func TestLiquidationEvaluate(t *testing.T) {
	l := NewLiquidation(LiquidationConfig{
		MinBonusBps:    500,
		GasEstimateSOL: 0.001,
		SizeSOL:        0.5,
	}, discardLogger())

	opp, err := l.Evaluate(context.Background(), domain.Candidate{
		Kind:           domain.CandidateLiquidation,
		CollateralMint: "collateral",
		DebtMint:       "debt",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if opp == nil {
		t.Fatal("expected an opportunity for a liquidation candidate")
	}
	if opp.Asset != "collateral" {
		t.Fatalf("asset = %s, want collateral", opp.Asset)
	}

	if opp, _ := l.Evaluate(context.Background(), domain.Candidate{Kind: domain.CandidateSwap}); opp != nil {
		t.Fatal("swap candidate should not produce a liquidation opportunity")
	}
}
