package domain

// RiskLimits holds the global risk configuration. It is read-mostly: only the
// trading pause flag (held by the circuit breaker, mirrored to the store)
// changes at runtime, and only through Guardian or operator action.
type RiskLimits struct {
	MaxPositionSizeSOL     float64
	MaxDailyLossSOL        float64
	MaxSlippageBps         float64
	MinLiquiditySOL        float64
	MaxConcurrentPositions int

	// MinProfitBps is the shared profitability filter applied to every
	// opportunity before it reaches the risk gate.
	MinProfitBps float64

	// MaxConsecutiveFailures trips the circuit breaker when this many
	// bundle submissions fail in a row.
	MaxConsecutiveFailures int
}

// RejectReason is a named risk-gate rejection. Rejections always carry a
// specific reason for observability, never a generic error.
type RejectReason string

const (
	RejectTradingPaused   RejectReason = "trading_paused"
	RejectMaxPositions    RejectReason = "max_concurrent_positions"
	RejectMaxPositionSize RejectReason = "max_position_size"
	RejectMinLiquidity    RejectReason = "min_liquidity"
	RejectDailyLoss       RejectReason = "max_daily_loss"
	RejectMaxSlippage     RejectReason = "max_slippage"
	RejectBelowMinProfit  RejectReason = "below_min_profit"
)
