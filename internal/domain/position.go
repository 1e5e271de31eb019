package domain

import "time"

// PositionStatus tracks the Cerberus lifecycle of a position.
type PositionStatus string

const (
	PositionStatusOpen        PositionStatus = "open"
	PositionStatusExitPending PositionStatus = "exit_pending"
	PositionStatusClosed      PositionStatus = "closed"
)

// Active reports whether the status still counts against the
// one-position-per-asset invariant.
func (s PositionStatus) Active() bool {
	return s == PositionStatusOpen || s == PositionStatusExitPending
}

// Position is the durable unit Cerberus owns. At most one active Position
// exists per asset at any time; entries for an asset already open are
// rejected, never merged.
type Position struct {
	Asset    string       `json:"asset"`
	Strategy StrategyKind `json:"strategy"`

	EntryPrice float64 `json:"entry_price"`
	Quantity   float64 `json:"quantity"`
	SizeSOL    float64 `json:"size_sol"`

	// StopLossPct and TakeProfitPct are fractions of the entry price, e.g.
	// 0.05 means exit at entry*0.95 (stop) or entry*1.05 (profit).
	StopLossPct   float64       `json:"stop_loss_pct"`
	TakeProfitPct float64       `json:"take_profit_pct"`
	MaxHold       time.Duration `json:"max_hold_ns"`

	Status   PositionStatus `json:"status"`
	OpenedAt time.Time      `json:"opened_at"`

	// Runtime fields refreshed each tick.
	CurrentPrice     float64   `json:"current_price"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	UpdatedAt        time.Time `json:"updated_at"`

	// Exit bookkeeping.
	ExitRequestedAt *time.Time `json:"exit_requested_at,omitempty"`
	ExitReason      string     `json:"exit_reason,omitempty"`
	ExitBundleID    string     `json:"exit_bundle_id,omitempty"`

	Wallet            string      `json:"wallet"`
	Dex               DexProtocol `json:"dex"`
	SlippageTolerance float64     `json:"slippage_tolerance"`
	EntryBundleID     string      `json:"entry_bundle_id"`
}

// PnLPct returns the percentage move of price against the entry price.
func (p Position) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// Age reports the holding duration at now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}

// TimedOut reports whether the holding duration has reached MaxHold. The
// boundary is inclusive: a position held exactly MaxHold must exit on that
// tick.
func (p Position) TimedOut(now time.Time) bool {
	return p.MaxHold > 0 && p.Age(now) >= p.MaxHold
}

// StopLossPrice is the price at or below which the stop-loss rule fires.
func (p Position) StopLossPrice() float64 {
	return p.EntryPrice * (1 - p.StopLossPct)
}

// TakeProfitPrice is the price at or above which the take-profit rule fires.
func (p Position) TakeProfitPrice() float64 {
	return p.EntryPrice * (1 + p.TakeProfitPct)
}

// ValueSOL returns the position's value in SOL at the given price.
func (p Position) ValueSOL(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return p.SizeSOL * price / p.EntryPrice
}
