package domain

import "time"

// CommandAction is a per-asset trading directive from the command channel.
type CommandAction string

const (
	CommandSell CommandAction = "SELL"
	CommandHold CommandAction = "HOLD"
	CommandBuy  CommandAction = "BUY"
)

// GuardianAction is a global directive from the external risk monitor.
type GuardianAction string

const (
	GuardianPauseTrading     GuardianAction = "PAUSE_TRADING"
	GuardianResumeTrading    GuardianAction = "RESUME_TRADING"
	GuardianExitAllPositions GuardianAction = "EXIT_ALL_POSITIONS"
)

// TradingCommand is addressed to a single position. Delivery is
// fire-and-forget; duplicates and reordering must be tolerated, so handling
// is keyed by asset+action.
type TradingCommand struct {
	Action CommandAction `json:"action"`
	Asset  string        `json:"asset"`
	Reason string        `json:"reason"`
	SentAt time.Time     `json:"sent_at,omitempty"`
}

// GuardianAlert carries a global trading directive.
type GuardianAlert struct {
	Action GuardianAction `json:"action"`
	Reason string         `json:"reason"`
	SentAt time.Time      `json:"sent_at,omitempty"`
}

// Key returns the idempotency key for duplicate suppression.
func (c TradingCommand) Key() string {
	return c.Asset + ":" + string(c.Action)
}
