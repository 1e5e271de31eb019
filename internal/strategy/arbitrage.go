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

// ArbitrageConfig holds the cross-venue arbitrage parameters.
type ArbitrageConfig struct {
	// MinProfitBps is the minimum net spread after fees.
	MinProfitBps float64
	// ExchangeFeeBps is charged once per leg.
	ExchangeFeeBps float64
	// MaxCapitalSOL caps the size of one arbitrage cycle.
	MaxCapitalSOL float64
	// QuoteStaleness discards venue quotes older than this.
	QuoteStaleness time.Duration
}

// venueQuote is the implied price last seen for a pool on one venue.
type venueQuote struct {
	price float64
	seen  time.Time
}

// Arbitrage tracks the implied price of each traded pair per venue and
// proposes a two-leg cycle when venues diverge beyond fees.
type Arbitrage struct {
	cfg    ArbitrageConfig
	logger *slog.Logger

	mu     sync.Mutex
	quotes map[string]map[domain.DexProtocol]venueQuote
}

// NewArbitrage creates an Arbitrage strategy.
func NewArbitrage(cfg ArbitrageConfig, logger *slog.Logger) *Arbitrage {
	if cfg.QuoteStaleness <= 0 {
		cfg.QuoteStaleness = 5 * time.Second
	}
	return &Arbitrage{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "arbitrage")),
		quotes: make(map[string]map[domain.DexProtocol]venueQuote),
	}
}

// Name returns the strategy identifier.
func (a *Arbitrage) Name() string { return string(domain.StrategyArbitrage) }

// Init is a no-op.
func (a *Arbitrage) Init(_ context.Context) error { return nil }

// Close is a no-op.
func (a *Arbitrage) Close() error { return nil }

// Evaluate updates the venue quote implied by a pending swap and checks for
// a profitable divergence against the other venues quoting the same pair.
func (a *Arbitrage) Evaluate(_ context.Context, cand domain.Candidate) (*domain.Opportunity, error) {
	if cand.Kind != domain.CandidateSwap {
		return nil, nil
	}
	if cand.AmountIn == 0 || cand.MinAmountOut == 0 {
		return nil, nil
	}

	pair := cand.Pair()
	if pair == "" {
		return nil, nil
	}

	implied := float64(cand.MinAmountOut) / float64(cand.AmountIn)
	now := time.Now()

	a.mu.Lock()
	venues, ok := a.quotes[pair]
	if !ok {
		venues = make(map[domain.DexProtocol]venueQuote)
		a.quotes[pair] = venues
	}
	venues[cand.Program] = venueQuote{price: implied, seen: now}

	var bestVenue domain.DexProtocol
	var bestSpreadBps float64
	for venue, q := range venues {
		if venue == cand.Program {
			continue
		}
		if now.Sub(q.seen) > a.cfg.QuoteStaleness {
			delete(venues, venue)
			continue
		}
		mid := (q.price + implied) / 2
		if mid <= 0 {
			continue
		}
		spreadBps := abs(q.price-implied) / mid * 10_000
		if spreadBps > bestSpreadBps {
			bestSpreadBps = spreadBps
			bestVenue = venue
		}
	}
	a.mu.Unlock()

	netBps := bestSpreadBps - 2*a.cfg.ExchangeFeeBps
	if bestVenue == "" || netBps < a.cfg.MinProfitBps {
		return nil, nil
	}

	capital := min(lamportsToSOL(cand.AmountIn), a.cfg.MaxCapitalSOL)
	return &domain.Opportunity{
		ID:                 uuid.New().String(),
		Strategy:           domain.StrategyArbitrage,
		Asset:              cand.Asset(),
		Pair:               pair,
		ExpectedProfitSOL:  capital * netBps / 10_000,
		ProfitBps:          netBps,
		RequiredCapitalSOL: capital,
		SourceSignature:    cand.Signature,
		CreatedAt:          now,
		ExpiresAt:          now.Add(a.cfg.QuoteStaleness),
		Metadata: map[string]string{
			"buy_venue":  string(cand.Program),
			"sell_venue": string(bestVenue),
			"spread_bps": fmt.Sprintf("%.1f", bestSpreadBps),
		},
	}, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Compile-time interface check.
var _ Strategy = (*Arbitrage)(nil)
