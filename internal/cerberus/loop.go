package cerberus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

// Config tunes the decision loop.
type Config struct {
	// TickInterval is the fixed re-evaluation cadence.
	TickInterval time.Duration
	// PriceTimeout bounds each position's price lookup so one slow lookup
	// cannot stall the rest of the tick.
	PriceTimeout time.Duration
	// ExitRetryTimeout is how long a position may sit in ExitPending before
	// its exit is rebuilt with fresh market data.
	ExitRetryTimeout time.Duration
	// MaxMarketAge is how old a cached price may be before the live source
	// is consulted.
	MaxMarketAge time.Duration
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = 200 * time.Millisecond
	}
	if c.PriceTimeout <= 0 {
		c.PriceTimeout = 100 * time.Millisecond
	}
	if c.ExitRetryTimeout <= 0 {
		c.ExitRetryTimeout = 5 * time.Second
	}
	if c.MaxMarketAge <= 0 {
		c.MaxMarketAge = 2 * time.Second
	}
}

// Loop is the fixed-interval decision loop. Each tick it snapshots the
// active positions, prices each one under a per-position timeout, runs the
// exit rule chain, and drives firing positions through the ExitEngine.
type Loop struct {
	positions domain.PositionStore
	prices    domain.PriceCache
	source    domain.PriceSource
	commands  *CommandProcessor
	exits     *ExitEngine
	rules     []Rule
	cfg       Config
	kick      <-chan struct{}
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewLoop wires the decision loop. source may be nil, in which case only the
// cache supplies prices. kick may be nil.
func NewLoop(
	positions domain.PositionStore,
	prices domain.PriceCache,
	source domain.PriceSource,
	commands *CommandProcessor,
	exits *ExitEngine,
	cfg Config,
	kick <-chan struct{},
	m *metrics.Metrics,
	logger *slog.Logger,
) *Loop {
	cfg.applyDefaults()
	return &Loop{
		positions: positions,
		prices:    prices,
		source:    source,
		commands:  commands,
		exits:     exits,
		rules:     DefaultRules(),
		cfg:       cfg,
		kick:      kick,
		metrics:   m,
		logger:    logger.With(slog.String("component", "cerberus")),
	}
}

// Run drives the loop until ctx is cancelled. Shutdown is graceful: an
// in-progress tick always completes, so no position is left half-evaluated.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("decision loop started",
		slog.Duration("tick_interval", l.cfg.TickInterval))
	defer l.logger.Info("decision loop stopped")

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		case <-l.kickCh():
			// Emergency directives bypass the tick interval.
			l.Tick(ctx)
		}
	}
}

func (l *Loop) kickCh() <-chan struct{} {
	if l.kick == nil {
		// A nil channel blocks forever, disabling the branch.
		return nil
	}
	return l.kick
}

// Tick evaluates every active position once. A momentarily unreachable
// position store is treated as "no positions this tick", never as a loop
// error.
func (l *Loop) Tick(ctx context.Context) {
	start := time.Now()

	positions, err := l.positions.ListActive(ctx)
	if err != nil {
		l.logger.Warn("position store unreachable, empty tick",
			slog.String("error", err.Error()))
		return
	}
	l.metrics.ActivePositions.Set(float64(len(positions)))

	signals := l.commands.Signals()
	exitAllServiced := signals.GuardianExitAll && len(positions) > 0

	for _, pos := range positions {
		// One position's decision error must not block the others.
		l.evaluate(ctx, pos, signals)
	}

	if exitAllServiced {
		l.commands.AcknowledgeExitAll()
	}

	elapsed := time.Since(start)
	l.metrics.CerberusTickAge.Observe(elapsed.Seconds())
	if elapsed > l.cfg.TickInterval {
		l.metrics.CerberusTickSkew.Inc()
		l.logger.Warn("tick overran interval",
			slog.Duration("elapsed", elapsed),
			slog.Int("positions", len(positions)))
	}
}

// evaluate runs one position through the rule chain, or retries a stuck
// exit.
func (l *Loop) evaluate(ctx context.Context, pos domain.Position, signals Signals) {
	log := l.logger.With(slog.String("asset", pos.Asset))

	price, priceAt := l.lookupPrice(ctx, pos.Asset, log)

	if pos.Status == domain.PositionStatusExitPending {
		l.retryExit(ctx, pos, price, log)
		return
	}

	snap := Snapshot{
		Position: pos,
		Price:    price,
		PriceAt:  priceAt,
		Signals:  signals,
		Now:      time.Now().UTC(),
	}
	ruleName, reason, fired := Evaluate(l.rules, snap)
	if !fired {
		l.refresh(ctx, pos, price, log)
		return
	}

	log.Info("exit rule fired",
		slog.String("rule", ruleName),
		slog.String("reason", reason),
		slog.Float64("price", price),
		slog.Float64("entry_price", pos.EntryPrice))

	if err := l.positions.SetStatus(ctx, pos.Asset, domain.PositionStatusExitPending, reason); err != nil {
		log.Error("exit transition failed", slog.String("error", err.Error()))
		return
	}
	if ruleName == "override" {
		l.commands.ClearOverride(pos.Asset)
	}

	if err := l.exits.Execute(ctx, pos, price, reason); err != nil {
		// The position stays ExitPending; the retry timeout governs the
		// next attempt with fresh data.
		log.Warn("exit submission failed, will retry",
			slog.String("error", err.Error()))
	}
}

// retryExit re-prices and re-submits a position stuck in ExitPending beyond
// the retry timeout. The original bundle is never resubmitted verbatim.
func (l *Loop) retryExit(ctx context.Context, pos domain.Position, price float64, log *slog.Logger) {
	if pos.ExitRequestedAt == nil {
		// Defensive default so the position is not stuck forever.
		now := time.Now().UTC()
		pos.ExitRequestedAt = &now
	}
	if time.Since(*pos.ExitRequestedAt) < l.cfg.ExitRetryTimeout {
		return
	}

	log.Info("retrying stuck exit",
		slog.String("reason", pos.ExitReason),
		slog.Time("exit_requested_at", *pos.ExitRequestedAt))

	if err := l.exits.Execute(ctx, pos, price, pos.ExitReason); err != nil {
		log.Warn("exit retry failed", slog.String("error", err.Error()))
		// Restart the retry window.
		now := time.Now().UTC()
		pos.ExitRequestedAt = &now
		pos.UpdatedAt = now
		if uerr := l.positions.Update(ctx, pos); uerr != nil {
			log.Warn("exit retry bookkeeping failed", slog.String("error", uerr.Error()))
		}
	}
}

// refresh updates the runtime fields of a position that stays open.
func (l *Loop) refresh(ctx context.Context, pos domain.Position, price float64, log *slog.Logger) {
	if price <= 0 {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnLPct = pos.PnLPct(price)
	pos.UpdatedAt = time.Now().UTC()
	if err := l.positions.Update(ctx, pos); err != nil {
		log.Debug("position refresh failed", slog.String("error", err.Error()))
	}
}

// lookupPrice resolves the asset's current price under the per-position
// timeout: the cache when fresh, else the live source, writing back to the
// cache. Zero means no price this tick.
func (l *Loop) lookupPrice(ctx context.Context, asset string, log *slog.Logger) (float64, time.Time) {
	lctx, cancel := context.WithTimeout(ctx, l.cfg.PriceTimeout)
	defer cancel()

	now := time.Now().UTC()
	if l.prices != nil {
		price, ts, err := l.prices.GetPrice(lctx, asset)
		if err == nil && price > 0 && now.Sub(ts) <= l.cfg.MaxMarketAge {
			return price, ts
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Debug("price cache read failed", slog.String("error", err.Error()))
		}
	}

	if l.source == nil {
		return 0, time.Time{}
	}
	market, err := l.source.MarketData(lctx, asset)
	if err != nil {
		log.Debug("live price lookup failed", slog.String("error", err.Error()))
		return 0, time.Time{}
	}
	if market.Price <= 0 {
		return 0, time.Time{}
	}
	if l.prices != nil {
		if err := l.prices.SetPrice(lctx, asset, market.Price, market.Timestamp); err != nil {
			log.Debug("price cache write failed", slog.String("error", err.Error()))
		}
	}
	return market.Price, market.Timestamp
}
