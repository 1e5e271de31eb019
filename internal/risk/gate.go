package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

// Rejection is a refused admission with its named reason.
type Rejection struct {
	Reason domain.RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	return "risk: rejected: " + string(r.Reason)
}

// Gate admits or rejects opportunities against the global limits. Checks run
// in a fixed order; the first failure names the rejection.
type Gate struct {
	limits    domain.RiskLimits
	breaker   *Breaker
	positions domain.PositionStore
	fills     domain.FillStore
	audit     domain.AuditStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewGate creates a Gate over the given stores.
func NewGate(limits domain.RiskLimits, breaker *Breaker, positions domain.PositionStore, fills domain.FillStore, audit domain.AuditStore, m *metrics.Metrics, logger *slog.Logger) *Gate {
	return &Gate{
		limits:    limits,
		breaker:   breaker,
		positions: positions,
		fills:     fills,
		audit:     audit,
		metrics:   m,
		logger:    logger.With(slog.String("component", "risk_gate")),
	}
}

// Limits returns the configured limits.
func (g *Gate) Limits() domain.RiskLimits {
	return g.limits
}

// Admit runs the admission checks. It returns a *Rejection naming the first
// failed check, or nil when the opportunity may proceed to execution. Any
// store error during a check fails closed with that check's reason.
func (g *Gate) Admit(ctx context.Context, opp domain.Opportunity) *Rejection {
	if rej := g.check(ctx, opp); rej != nil {
		g.metrics.RejectionsTotal.WithLabelValues(string(rej.Reason)).Inc()
		g.logger.Info("opportunity rejected",
			slog.String("id", opp.ID),
			slog.String("strategy", string(opp.Strategy)),
			slog.String("reason", string(rej.Reason)),
			slog.String("detail", rej.Detail))
		g.auditLog(ctx, "risk.rejected", map[string]any{
			"opportunity_id": opp.ID,
			"strategy":       string(opp.Strategy),
			"asset":          opp.Asset,
			"reason":         string(rej.Reason),
			"detail":         rej.Detail,
		})
		return rej
	}

	g.metrics.AdmissionsTotal.Inc()
	g.auditLog(ctx, "risk.admitted", map[string]any{
		"opportunity_id": opp.ID,
		"strategy":       string(opp.Strategy),
		"asset":          opp.Asset,
		"capital_sol":    opp.RequiredCapitalSOL,
	})
	return nil
}

func (g *Gate) check(ctx context.Context, opp domain.Opportunity) *Rejection {
	if g.breaker.Paused() {
		return &Rejection{Reason: domain.RejectTradingPaused, Detail: g.breaker.Reason()}
	}

	if opp.ProfitBps < g.limits.MinProfitBps {
		return &Rejection{
			Reason: domain.RejectBelowMinProfit,
			Detail: detailf("%.1f bps < %.1f bps floor", opp.ProfitBps, g.limits.MinProfitBps),
		}
	}

	if g.limits.MaxConcurrentPositions > 0 {
		active, err := g.positions.CountActive(ctx)
		if err != nil {
			return &Rejection{Reason: domain.RejectMaxPositions, Detail: "position count unavailable"}
		}
		if active >= g.limits.MaxConcurrentPositions {
			return &Rejection{
				Reason: domain.RejectMaxPositions,
				Detail: detailf("%d active >= limit %d", active, g.limits.MaxConcurrentPositions),
			}
		}
	}

	if opp.RequiredCapitalSOL > g.limits.MaxPositionSizeSOL {
		return &Rejection{
			Reason: domain.RejectMaxPositionSize,
			Detail: detailf("%.4f SOL > limit %.4f SOL", opp.RequiredCapitalSOL, g.limits.MaxPositionSizeSOL),
		}
	}

	if g.limits.MinLiquiditySOL > 0 && opp.EstLiquiditySOL > 0 && opp.EstLiquiditySOL < g.limits.MinLiquiditySOL {
		return &Rejection{
			Reason: domain.RejectMinLiquidity,
			Detail: detailf("%.4f SOL < floor %.4f SOL", opp.EstLiquiditySOL, g.limits.MinLiquiditySOL),
		}
	}

	if g.limits.MaxSlippageBps > 0 && opp.MaxSlippageBps > g.limits.MaxSlippageBps {
		return &Rejection{
			Reason: domain.RejectMaxSlippage,
			Detail: detailf("%.1f bps > limit %.1f bps", opp.MaxSlippageBps, g.limits.MaxSlippageBps),
		}
	}

	if g.limits.MaxDailyLossSOL > 0 {
		pnl, err := g.fills.SumRealizedPnLSince(ctx, midnight(time.Now()))
		if err != nil {
			return &Rejection{Reason: domain.RejectDailyLoss, Detail: "realized pnl unavailable"}
		}
		g.metrics.RealizedPnLSOL.Set(pnl)
		if -pnl >= g.limits.MaxDailyLossSOL {
			// A daily-loss breach trips the breaker: admission must not
			// quietly resume when the realized-loss window rolls over.
			if !g.breaker.Paused() {
				g.metrics.BreakerTrips.Inc()
				g.breaker.Pause(ctx, "max_daily_loss")
			}
			return &Rejection{
				Reason: domain.RejectDailyLoss,
				Detail: detailf("%.4f SOL lost >= limit %.4f SOL", -pnl, g.limits.MaxDailyLossSOL),
			}
		}
	}

	return nil
}

func (g *Gate) auditLog(ctx context.Context, event string, detail map[string]any) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Log(ctx, event, detail); err != nil {
		g.logger.Warn("audit log write failed", slog.String("error", err.Error()))
	}
}

// midnight returns the start of the local day containing t.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func detailf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
