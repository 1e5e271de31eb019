package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// SniperConfig holds the new-pool sniping parameters.
type SniperConfig struct {
	// MinInitialLiqSOL filters out pools seeded with dust.
	MinInitialLiqSOL float64
	// SizeSOL is the capital committed per snipe.
	SizeSOL float64
	// OpportunityTTL bounds how long after detection an entry is worth
	// attempting; launch windows decay in seconds.
	OpportunityTTL time.Duration
	// MaxCandidateAge drops pool creations observed too long ago.
	MaxCandidateAge time.Duration
}

// Sniper watches for pool creations and proposes an immediate entry on the
// newly listed token.
type Sniper struct {
	cfg    SniperConfig
	logger *slog.Logger
}

// NewSniper creates a Sniper strategy.
func NewSniper(cfg SniperConfig, logger *slog.Logger) *Sniper {
	if cfg.OpportunityTTL <= 0 {
		cfg.OpportunityTTL = 3 * time.Second
	}
	if cfg.MaxCandidateAge <= 0 {
		cfg.MaxCandidateAge = time.Second
	}
	return &Sniper{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "sniper")),
	}
}

// Name returns the strategy identifier.
func (s *Sniper) Name() string { return string(domain.StrategySniper) }

// Init is a no-op.
func (s *Sniper) Init(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Sniper) Close() error { return nil }

// Evaluate proposes an entry when a sufficiently funded pool is created.
func (s *Sniper) Evaluate(_ context.Context, cand domain.Candidate) (*domain.Opportunity, error) {
	if cand.Kind != domain.CandidatePoolCreation {
		return nil, nil
	}

	now := time.Now()
	if cand.Age(now) > s.cfg.MaxCandidateAge {
		return nil, nil
	}

	liqSOL := lamportsToSOL(cand.InitialLiquidityLamports)
	if liqSOL < s.cfg.MinInitialLiqSOL {
		return nil, nil
	}

	asset := cand.Asset()
	if asset == "" {
		return nil, nil
	}

	// Early entries on funded launches historically clear several percent;
	// claim a conservative fraction of the seed as the expected edge.
	expectedProfit := s.cfg.SizeSOL * 0.05

	return &domain.Opportunity{
		ID:                 uuid.New().String(),
		Strategy:           domain.StrategySniper,
		Asset:              asset,
		Pair:               cand.Pair(),
		ExpectedProfitSOL:  expectedProfit,
		ProfitBps:          500,
		RequiredCapitalSOL: s.cfg.SizeSOL,
		EstLiquiditySOL:    liqSOL,
		SourceSignature:    cand.Signature,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.cfg.OpportunityTTL),
		Metadata: map[string]string{
			"initial_liquidity_sol": fmt.Sprintf("%.4f", liqSOL),
			"pool":                  cand.PoolAddress,
			"program":               string(cand.Program),
		},
	}, nil
}

// Compile-time interface check.
var _ Strategy = (*Sniper)(nil)
