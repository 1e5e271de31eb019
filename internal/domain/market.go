package domain

import "time"

// MarketData is a point-in-time snapshot of the market for a single asset,
// used by the Cerberus decision loop and the risk gate.
type MarketData struct {
	Asset           string
	Price           float64
	LiquiditySOL    float64
	BidAskSpreadPct float64
	Volume24hSOL    float64
	PriceChange24h  float64
	Timestamp       time.Time
}

// Stale reports whether the snapshot is older than maxAge at now.
func (m MarketData) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(m.Timestamp) > maxAge
}

// HasLiquidity reports whether the pool holds at least min SOL of liquidity.
func (m MarketData) HasLiquidity(min float64) bool {
	return m.LiquiditySOL >= min
}
