package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// JupiterArbConfig holds the direct-vs-aggregator arbitrage parameters.
type JupiterArbConfig struct {
	MinProfitBps  float64
	MaxCapitalSOL float64
	// QuoteStaleness discards direct-venue quotes older than this.
	QuoteStaleness time.Duration
}

// JupiterArb compares Jupiter route quotes against the freshest direct-venue
// swap it has seen. A route quoting materially worse than the direct pool
// means the aggregator's path is stale and the direct leg can be taken
// against it.
type JupiterArb struct {
	cfg    JupiterArbConfig
	logger *slog.Logger

	mu     sync.Mutex
	direct map[string]venueQuote // pair -> last direct-venue implied price
}

// NewJupiterArb creates a JupiterArb strategy.
func NewJupiterArb(cfg JupiterArbConfig, logger *slog.Logger) *JupiterArb {
	if cfg.QuoteStaleness <= 0 {
		cfg.QuoteStaleness = 5 * time.Second
	}
	return &JupiterArb{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "jupiter_arb")),
		direct: make(map[string]venueQuote),
	}
}

// Name returns the strategy identifier.
func (j *JupiterArb) Name() string { return string(domain.StrategyJupiterArb) }

// Init is a no-op.
func (j *JupiterArb) Init(_ context.Context) error { return nil }

// Close is a no-op.
func (j *JupiterArb) Close() error { return nil }

// Evaluate records direct-venue quotes and scores Jupiter routes against
// them.
func (j *JupiterArb) Evaluate(_ context.Context, cand domain.Candidate) (*domain.Opportunity, error) {
	if cand.Kind != domain.CandidateSwap || cand.AmountIn == 0 || cand.MinAmountOut == 0 {
		return nil, nil
	}

	pair := cand.Pair()
	if pair == "" {
		return nil, nil
	}
	implied := float64(cand.MinAmountOut) / float64(cand.AmountIn)
	now := time.Now()

	if cand.Program != domain.DexJupiterV6 {
		// Direct venue swap: remember the implied price.
		j.mu.Lock()
		j.direct[pair] = venueQuote{price: implied, seen: now}
		j.mu.Unlock()
		return nil, nil
	}

	j.mu.Lock()
	q, ok := j.direct[pair]
	j.mu.Unlock()
	if !ok || now.Sub(q.seen) > j.cfg.QuoteStaleness || q.price <= 0 {
		return nil, nil
	}

	// A route quoting below the direct pool price leaves the gap as edge.
	spreadBps := (q.price - implied) / q.price * 10_000
	if spreadBps < j.cfg.MinProfitBps {
		return nil, nil
	}

	capital := min(lamportsToSOL(cand.AmountIn), j.cfg.MaxCapitalSOL)
	return &domain.Opportunity{
		ID:                 uuid.New().String(),
		Strategy:           domain.StrategyJupiterArb,
		Asset:              cand.Asset(),
		Pair:               pair,
		ExpectedProfitSOL:  capital * spreadBps / 10_000,
		ProfitBps:          spreadBps,
		RequiredCapitalSOL: capital,
		MaxSlippageBps:     float64(cand.SlippageBps),
		SourceSignature:    cand.Signature,
		CreatedAt:          now,
		ExpiresAt:          now.Add(j.cfg.QuoteStaleness),
		Metadata: map[string]string{
			"direct_price": fmt.Sprintf("%.9f", q.price),
			"route_price":  fmt.Sprintf("%.9f", implied),
		},
	}, nil
}

// Compile-time interface check.
var _ Strategy = (*JupiterArb)(nil)
