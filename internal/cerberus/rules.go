// Package cerberus is the autonomous position-control loop. It owns every
// open position: each tick it re-evaluates exit conditions against live
// price, holding time, and external signals, and issues closing bundles
// without human involvement.
package cerberus

import (
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// Exit reasons recorded on the position and the fill journal.
const (
	ReasonOverride        = "override"
	ReasonGuardianPause   = "guardian_pause"
	ReasonGuardianExitAll = "guardian_exit_all"
	ReasonStopLoss        = "stop_loss"
	ReasonTakeProfit      = "take_profit"
	ReasonMaxHold         = "max_hold"
)

// Signals is the external-command state visible to one tick's evaluation.
type Signals struct {
	// OverrideExits maps asset to the reason of a pending SELL override.
	OverrideExits map[string]string
	// GuardianPause is set while a PAUSE_TRADING alert is in force.
	GuardianPause bool
	// GuardianExitAll is set when an EXIT_ALL_POSITIONS alert has arrived
	// and not yet been serviced.
	GuardianExitAll bool
	GuardianReason  string
}

// Snapshot is the immutable view one position is judged against. Rules read
// only the snapshot, never shared mutable state, so the priority order stays
// explicit and each rule is testable in isolation.
type Snapshot struct {
	Position domain.Position
	// Price is the current market price, zero when no price could be
	// obtained this tick. Price-based rules do not fire on a zero price.
	Price   float64
	PriceAt time.Time
	Signals Signals
	Now     time.Time
}

// Rule is a single exit predicate. It returns the exit reason and whether it
// fires for the snapshot.
type Rule struct {
	Name  string
	Fires func(Snapshot) (string, bool)
}

// DefaultRules returns the exit rule chain in strict priority order:
// external override, guardian pause/exit-all, stop-loss, take-profit,
// time-based exit. The first firing rule wins.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "override", Fires: overrideRule},
		{Name: "guardian", Fires: guardianRule},
		{Name: "stop_loss", Fires: stopLossRule},
		{Name: "take_profit", Fires: takeProfitRule},
		{Name: "max_hold", Fires: maxHoldRule},
	}
}

// Evaluate runs the chain and returns the name and reason of the first
// firing rule.
func Evaluate(rules []Rule, snap Snapshot) (name, reason string, fired bool) {
	for _, r := range rules {
		if reason, ok := r.Fires(snap); ok {
			return r.Name, reason, true
		}
	}
	return "", "", false
}

// overrideRule fires when an external exit command is addressed to this
// asset. It always wins, regardless of price.
func overrideRule(s Snapshot) (string, bool) {
	if s.Signals.OverrideExits == nil {
		return "", false
	}
	if _, ok := s.Signals.OverrideExits[s.Position.Asset]; ok {
		return ReasonOverride, true
	}
	return "", false
}

// guardianRule fires while a global pause or exit-all directive is active.
func guardianRule(s Snapshot) (string, bool) {
	if s.Signals.GuardianExitAll {
		return ReasonGuardianExitAll, true
	}
	if s.Signals.GuardianPause {
		return ReasonGuardianPause, true
	}
	return "", false
}

// stopLossRule fires when the price is at or below the stop level. A zero
// price or zero entry price means the level is unknown and the rule stays
// quiet.
func stopLossRule(s Snapshot) (string, bool) {
	p := s.Position
	if s.Price <= 0 || p.EntryPrice <= 0 || p.StopLossPct <= 0 {
		return "", false
	}
	if s.Price <= p.StopLossPrice() {
		return ReasonStopLoss, true
	}
	return "", false
}

// takeProfitRule fires when the price is at or above the profit level.
func takeProfitRule(s Snapshot) (string, bool) {
	p := s.Position
	if s.Price <= 0 || p.EntryPrice <= 0 || p.TakeProfitPct <= 0 {
		return "", false
	}
	if s.Price >= p.TakeProfitPrice() {
		return ReasonTakeProfit, true
	}
	return "", false
}

// maxHoldRule fires when the holding duration has reached the configured
// maximum. The boundary is inclusive.
func maxHoldRule(s Snapshot) (string, bool) {
	if s.Position.TimedOut(s.Now) {
		return ReasonMaxHold, true
	}
	return "", false
}
