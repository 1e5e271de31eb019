package cerberus

import (
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

func snapshotAt(pos domain.Position, price float64, signals Signals, now time.Time) Snapshot {
	return Snapshot{
		Position: pos,
		Price:    price,
		PriceAt:  now,
		Signals:  signals,
		Now:      now,
	}
}

func openPosition(entry float64) domain.Position {
	return domain.Position{
		Asset:         "mintA",
		Strategy:      domain.StrategySniper,
		EntryPrice:    entry,
		SizeSOL:       1,
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
		MaxHold:       time.Minute,
		Status:        domain.PositionStatusOpen,
		OpenedAt:      time.Now().UTC(),
	}
}

func TestRuleChain(t *testing.T) {
	now := time.Now().UTC()
	rules := DefaultRules()

	tests := []struct {
		name       string
		pos        domain.Position
		price      float64
		signals    Signals
		wantReason string
		wantFired  bool
	}{
		{
			// Entry 100, stop 5%: a tick at 94 exits via stop-loss.
			name:       "stop loss fires below threshold",
			pos:        openPosition(100),
			price:      94,
			wantReason: ReasonStopLoss,
			wantFired:  true,
		},
		{
			name:       "stop loss boundary is inclusive",
			pos:        openPosition(100),
			price:      95,
			wantReason: ReasonStopLoss,
			wantFired:  true,
		},
		{
			name:       "take profit fires above threshold",
			pos:        openPosition(100),
			price:      111,
			wantReason: ReasonTakeProfit,
			wantFired:  true,
		},
		{
			name:      "price inside band holds",
			pos:       openPosition(100),
			price:     101,
			wantFired: false,
		},
		{
			name:  "override beats take profit",
			pos:   openPosition(100),
			price: 120,
			signals: Signals{
				OverrideExits: map[string]string{"mintA": "ai sell signal"},
			},
			wantReason: ReasonOverride,
			wantFired:  true,
		},
		{
			name:  "override for another asset is ignored",
			pos:   openPosition(100),
			price: 101,
			signals: Signals{
				OverrideExits: map[string]string{"mintB": "ai sell signal"},
			},
			wantFired: false,
		},
		{
			name:       "guardian exit-all beats stop loss",
			pos:        openPosition(100),
			price:      90,
			signals:    Signals{GuardianExitAll: true},
			wantReason: ReasonGuardianExitAll,
			wantFired:  true,
		},
		{
			name:       "guardian pause exits a healthy position",
			pos:        openPosition(100),
			price:      101,
			signals:    Signals{GuardianPause: true},
			wantReason: ReasonGuardianPause,
			wantFired:  true,
		},
		{
			name:      "zero price keeps price rules quiet",
			pos:       openPosition(100),
			price:     0,
			wantFired: false,
		},
		{
			name: "unknown entry price keeps price rules quiet",
			pos: func() domain.Position {
				p := openPosition(0)
				return p
			}(),
			price:     0.0001,
			wantFired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, fired := Evaluate(rules, snapshotAt(tt.pos, tt.price, tt.signals, now))
			if fired != tt.wantFired {
				t.Fatalf("fired = %v, want %v (reason %q)", fired, tt.wantFired, reason)
			}
			if fired && reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestMaxHoldBoundaryIsInclusive(t *testing.T) {
	pos := openPosition(100)
	pos.OpenedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	atBoundary := snapshotAt(pos, 101, Signals{}, pos.OpenedAt.Add(pos.MaxHold))
	name, reason, fired := Evaluate(DefaultRules(), atBoundary)
	if !fired || reason != ReasonMaxHold {
		t.Fatalf("at boundary: fired=%v rule=%q reason=%q, want max_hold", fired, name, reason)
	}

	before := snapshotAt(pos, 101, Signals{}, pos.OpenedAt.Add(pos.MaxHold-time.Nanosecond))
	if _, _, fired := Evaluate(DefaultRules(), before); fired {
		t.Fatal("fired one nanosecond before the boundary")
	}
}
