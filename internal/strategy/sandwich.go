package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// SandwichConfig holds the sandwich strategy parameters.
type SandwichConfig struct {
	// MinVictimAmountSOL filters out swaps too small to move the pool.
	MinVictimAmountSOL float64
	// SafetyMarginBps is the minimum victim slippage tolerance worth acting on.
	SafetyMarginBps float64
	// MaxVictimSlippageBps is a policy ceiling: victims granting more
	// slippage than this are left alone.
	MaxVictimSlippageBps float64
	// FrontRunFraction sizes the front-run leg relative to the victim swap.
	FrontRunFraction float64
	// OpportunityTTL bounds how long the window stays actionable.
	OpportunityTTL time.Duration
}

// Sandwich detects large pending swaps with generous slippage tolerance and
// proposes a front-run/back-run pair around them.
type Sandwich struct {
	cfg    SandwichConfig
	logger *slog.Logger
}

// NewSandwich creates a Sandwich strategy.
func NewSandwich(cfg SandwichConfig, logger *slog.Logger) *Sandwich {
	if cfg.FrontRunFraction <= 0 {
		cfg.FrontRunFraction = 0.1
	}
	if cfg.OpportunityTTL <= 0 {
		cfg.OpportunityTTL = 2 * time.Second
	}
	return &Sandwich{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "sandwich")),
	}
}

// Name returns the strategy identifier.
func (s *Sandwich) Name() string { return string(domain.StrategySandwich) }

// Init is a no-op.
func (s *Sandwich) Init(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Sandwich) Close() error { return nil }

// Evaluate inspects a pending swap for a sandwich window.
func (s *Sandwich) Evaluate(_ context.Context, cand domain.Candidate) (*domain.Opportunity, error) {
	if cand.Kind != domain.CandidateSwap {
		return nil, nil
	}

	victimSOL := lamportsToSOL(cand.AmountIn)
	if victimSOL < s.cfg.MinVictimAmountSOL {
		return nil, nil
	}

	slippage := float64(cand.SlippageBps)
	if slippage == 0 {
		slippage = impliedSlippageBps(cand.AmountIn, cand.MinAmountOut)
	}
	if slippage < s.cfg.SafetyMarginBps {
		return nil, nil
	}
	if s.cfg.MaxVictimSlippageBps > 0 && slippage > s.cfg.MaxVictimSlippageBps {
		// Excessive tolerance usually means a trap or a trade we do not
		// want to be the counterparty of.
		return nil, nil
	}

	frontRunSOL := victimSOL * s.cfg.FrontRunFraction
	// The capturable edge is bounded by the victim's tolerance on the
	// front-run leg.
	expectedProfit := frontRunSOL * slippage / 10_000

	now := time.Now()
	return &domain.Opportunity{
		ID:                 uuid.New().String(),
		Strategy:           domain.StrategySandwich,
		Asset:              cand.Asset(),
		Pair:               cand.Pair(),
		ExpectedProfitSOL:  expectedProfit,
		ProfitBps:          slippage * s.cfg.FrontRunFraction,
		RequiredCapitalSOL: frontRunSOL,
		MaxSlippageBps:     slippage,
		SourceSignature:    cand.Signature,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.cfg.OpportunityTTL),
		Metadata: map[string]string{
			"victim_amount_sol": fmt.Sprintf("%.4f", victimSOL),
			"pool":              cand.PoolAddress,
		},
	}, nil
}

// Compile-time interface check.
var _ Strategy = (*Sandwich)(nil)
