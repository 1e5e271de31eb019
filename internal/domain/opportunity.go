package domain

import "time"

// StrategyKind names one of the fixed strategy variants.
type StrategyKind string

const (
	StrategyArbitrage   StrategyKind = "arbitrage"
	StrategySandwich    StrategyKind = "sandwich"
	StrategySniper      StrategyKind = "sniper"
	StrategyJupiterArb  StrategyKind = "jupiter_arb"
	StrategyLiquidation StrategyKind = "liquidation"
)

// Opportunity is a strategy's proposal to act on a candidate. It is consumed
// by the risk gate and destroyed on accept or reject.
type Opportunity struct {
	ID       string
	Strategy StrategyKind

	// Asset is the mint the resulting position would be keyed by.
	Asset string
	// Pair is the traded pair, "base/quote".
	Pair string

	ExpectedProfitSOL   float64
	ProfitBps           float64
	RequiredCapitalSOL  float64
	MaxSlippageBps      float64
	EstLiquiditySOL     float64
	PriorityFeeLamports uint64

	// SourceSignature ties the opportunity back to the candidate it was
	// derived from. A rejected or expired submission must not be retried
	// without a fresh candidate producing a new opportunity.
	SourceSignature string

	CreatedAt time.Time
	ExpiresAt time.Time

	Metadata map[string]string
}

// Expired reports whether the opportunity's time-to-live has elapsed.
func (o Opportunity) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}
