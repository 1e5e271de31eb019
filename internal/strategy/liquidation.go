package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// LiquidationConfig holds the lending-liquidation parameters.
type LiquidationConfig struct {
	// MinBonusBps is the minimum liquidation bonus worth competing for.
	MinBonusBps float64
	// GasEstimateSOL is subtracted from the expected bonus.
	GasEstimateSOL float64
	// MaxHealthFactor ignores obligations that are not actually underwater.
	MaxHealthFactor float64
	// SizeSOL is the repay amount committed per liquidation.
	SizeSOL float64
	// OpportunityTTL bounds how long the window stays actionable.
	OpportunityTTL time.Duration
}

// Liquidation back-runs pending lending-protocol liquidations, competing for
// the liquidation bonus on underwater obligations.
type Liquidation struct {
	cfg    LiquidationConfig
	logger *slog.Logger
}

// NewLiquidation creates a Liquidation strategy.
func NewLiquidation(cfg LiquidationConfig, logger *slog.Logger) *Liquidation {
	if cfg.OpportunityTTL <= 0 {
		cfg.OpportunityTTL = 2 * time.Second
	}
	if cfg.MinBonusBps <= 0 {
		cfg.MinBonusBps = 500
	}
	return &Liquidation{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "liquidation")),
	}
}

// Name returns the strategy identifier.
func (l *Liquidation) Name() string { return string(domain.StrategyLiquidation) }

// Init is a no-op.
func (l *Liquidation) Init(_ context.Context) error { return nil }

// Close is a no-op.
func (l *Liquidation) Close() error { return nil }

// Evaluate proposes competing for the bonus on an observed liquidation.
func (l *Liquidation) Evaluate(_ context.Context, cand domain.Candidate) (*domain.Opportunity, error) {
	if cand.Kind != domain.CandidateLiquidation {
		return nil, nil
	}
	if l.cfg.MaxHealthFactor > 0 && cand.HealthFactor > l.cfg.MaxHealthFactor {
		return nil, nil
	}

	asset := cand.CollateralMint
	if asset == "" && len(cand.Accounts) > 0 {
		asset = cand.Accounts[0]
	}
	if asset == "" {
		return nil, nil
	}

	expectedProfit := l.cfg.SizeSOL*l.cfg.MinBonusBps/10_000 - l.cfg.GasEstimateSOL
	if expectedProfit <= 0 {
		return nil, nil
	}

	now := time.Now()
	return &domain.Opportunity{
		ID:                 uuid.New().String(),
		Strategy:           domain.StrategyLiquidation,
		Asset:              asset,
		ExpectedProfitSOL:  expectedProfit,
		ProfitBps:          l.cfg.MinBonusBps,
		RequiredCapitalSOL: l.cfg.SizeSOL,
		SourceSignature:    cand.Signature,
		CreatedAt:          now,
		ExpiresAt:          now.Add(l.cfg.OpportunityTTL),
		Metadata: map[string]string{
			"collateral_mint": cand.CollateralMint,
			"debt_mint":       cand.DebtMint,
		},
	}, nil
}

// Compile-time interface check.
var _ Strategy = (*Liquidation)(nil)
