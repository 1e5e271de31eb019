package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
	"github.com/SynergiaOS/solana-hft-ninja/internal/risk"
	"github.com/SynergiaOS/solana-hft-ninja/internal/rpcpool"
)

// bundleEventStream is the durable journal of submission outcomes, consumed
// by operators and offline tooling.
const bundleEventStream = "bundle_events"

// BundleBuilder assembles a signed bundle for an admitted opportunity.
type BundleBuilder interface {
	Build(opp domain.Opportunity, blockhash string, targetSlot uint64, validUntil time.Time) (domain.Bundle, error)
}

// BundleSubmitter delivers a bundle to the block engine.
type BundleSubmitter interface {
	Submit(ctx context.Context, b domain.Bundle) (domain.SubmissionResult, error)
}

// ChainReader provides the recent blockhash and slot needed to build a
// transaction. Implemented by the RPC pool.
type ChainReader interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (rpcpool.LatestBlockhash, error)
	GetSlot(ctx context.Context, commitment string) (uint64, error)
}

// PositionDefaults are the exit parameters stamped onto every position the
// executor opens. Cerberus reads them back each tick.
type PositionDefaults struct {
	StopLossPct   float64
	TakeProfitPct float64
	MaxHold       time.Duration
}

// Config tunes the executor's locking and bundle validity behaviour.
type Config struct {
	// LockTTL bounds how long an entry lock may outlive a crashed holder.
	LockTTL time.Duration
	// BundleValidity is the window after build during which a bundle may be
	// submitted.
	BundleValidity time.Duration
	// Commitment is the commitment level used for blockhash and slot reads.
	Commitment string
	// SlotOffset is added to the current slot to pick the target slot.
	SlotOffset uint64
}

func (c *Config) applyDefaults() {
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Second
	}
	if c.BundleValidity <= 0 {
		c.BundleValidity = 2 * time.Second
	}
	if c.Commitment == "" {
		c.Commitment = "confirmed"
	}
	if c.SlotOffset == 0 {
		c.SlotOffset = 1
	}
}

// Executor reads opportunities from a channel, applies deduplication, expiry,
// and risk admission, then builds and submits bundles. Successful entries are
// persisted as positions and journaled as fills; submission outcomes feed the
// circuit breaker.
type Executor struct {
	oppCh     <-chan domain.Opportunity
	gate      *risk.Gate
	breaker   *risk.Breaker
	builder   BundleBuilder
	submitter BundleSubmitter
	chain     ChainReader
	locks     domain.LockManager
	positions domain.PositionStore
	fills     domain.FillStore
	prices    domain.PriceCache
	bus       domain.SignalBus
	dedup     *Dedup
	wallet    string
	defaults  PositionDefaults
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger

	cleanupInterval time.Duration
}

// NewExecutor wires the execution stage of the pipeline. bus and prices may be
// nil; event journaling and entry-price capture degrade gracefully without
// them.
func NewExecutor(
	oppCh <-chan domain.Opportunity,
	gate *risk.Gate,
	breaker *risk.Breaker,
	builder BundleBuilder,
	submitter BundleSubmitter,
	chain ChainReader,
	locks domain.LockManager,
	positions domain.PositionStore,
	fills domain.FillStore,
	prices domain.PriceCache,
	bus domain.SignalBus,
	wallet string,
	defaults PositionDefaults,
	cfg Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Executor {
	cfg.applyDefaults()
	return &Executor{
		oppCh:           oppCh,
		gate:            gate,
		breaker:         breaker,
		builder:         builder,
		submitter:       submitter,
		chain:           chain,
		locks:           locks,
		positions:       positions,
		fills:           fills,
		prices:          prices,
		bus:             bus,
		dedup:           NewDedup(2 * time.Minute),
		wallet:          wallet,
		defaults:        defaults,
		cfg:             cfg,
		metrics:         m,
		logger:          logger.With(slog.String("component", "executor")),
		cleanupInterval: 30 * time.Second,
	}
}

// Run starts the executor's main loop. It processes opportunities until the
// context is cancelled, at which point it drains any remaining buffered
// opportunities and returns.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()

		case opp, ok := <-e.oppCh:
			if !ok {
				return nil
			}
			e.process(ctx, opp)

		case <-cleanupTicker.C:
			e.dedup.Cleanup()
		}
	}
}

// process handles a single opportunity through the full admission and
// execution pipeline.
func (e *Executor) process(ctx context.Context, opp domain.Opportunity) {
	log := e.logger.With(
		slog.String("opportunity_id", opp.ID),
		slog.String("strategy", string(opp.Strategy)),
		slog.String("asset", opp.Asset),
	)

	// 1. Deduplication: the same detected opportunity, and any other
	// opportunity derived from the same observed transaction, runs once.
	if e.dedup.IsDuplicate(opp.ID) {
		log.Debug("opportunity deduplicated, skipping")
		return
	}
	if opp.SourceSignature != "" && e.dedup.IsDuplicate("src:"+opp.SourceSignature) {
		log.Debug("source transaction already executed against, skipping")
		return
	}

	// 2. Expiry check.
	if opp.Expired(time.Now().UTC()) {
		e.metrics.OpportunitiesExpired.Inc()
		log.Debug("opportunity expired before execution",
			slog.Time("expires_at", opp.ExpiresAt))
		return
	}

	// 3. Risk admission.
	if rej := e.gate.Admit(ctx, opp); rej != nil {
		log.Info("opportunity rejected",
			slog.String("reason", string(rej.Reason)),
			slog.String("detail", rej.Detail))
		return
	}

	// 4. Per-asset entry lock, so concurrent executors cannot double-enter.
	unlock, err := e.locks.Acquire(ctx, "entry:"+opp.Asset, e.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			log.Debug("entry lock held elsewhere, skipping")
			return
		}
		log.Warn("entry lock acquisition failed", slog.String("error", err.Error()))
		return
	}
	defer unlock()

	// 5. Fresh chain state for the bundle.
	blockhash, err := e.chain.GetLatestBlockhash(ctx, e.cfg.Commitment)
	if err != nil {
		log.Error("blockhash fetch failed", slog.String("error", err.Error()))
		e.breaker.RecordFailure(ctx)
		return
	}
	slot, err := e.chain.GetSlot(ctx, e.cfg.Commitment)
	if err != nil {
		log.Error("slot fetch failed", slog.String("error", err.Error()))
		e.breaker.RecordFailure(ctx)
		return
	}

	// The pause flag may have flipped while we were fetching chain state.
	if e.breaker.Paused() {
		log.Info("trading paused before submission, dropping",
			slog.String("reason", e.breaker.Reason()))
		return
	}

	bundle, err := e.builder.Build(opp, blockhash.Blockhash, slot+e.cfg.SlotOffset, time.Now().Add(e.cfg.BundleValidity))
	if err != nil {
		log.Error("bundle build failed", slog.String("error", err.Error()))
		return
	}

	result, err := e.submitter.Submit(ctx, bundle)
	e.appendBundleEvent(ctx, result)
	if err != nil {
		log.Warn("bundle submission failed",
			slog.String("bundle_id", bundle.ID),
			slog.String("status", string(result.Status)),
			slog.String("error", err.Error()))
		// A locally-expired bundle never reached the engine and must not
		// trip the breaker.
		if !errors.Is(err, domain.ErrBundleExpired) {
			e.breaker.RecordFailure(ctx)
		}
		return
	}
	if !result.Accepted() {
		// Deduplicated resubmit whose original outcome was not a
		// confirmation; nothing reached the engine this time.
		log.Info("bundle submission was a no-op",
			slog.String("bundle_id", bundle.ID),
			slog.String("status", string(result.Status)),
			slog.String("message", result.Message))
		return
	}

	e.breaker.RecordSuccess()
	log.Info("bundle accepted",
		slog.String("bundle_id", bundle.ID),
		slog.Uint64("tip_lamports", bundle.TipLamports),
		slog.Duration("submit_duration", result.Duration))

	e.openPosition(ctx, opp, bundle, log)
}

// openPosition persists the position Cerberus will manage and journals the
// entry fill.
func (e *Executor) openPosition(ctx context.Context, opp domain.Opportunity, bundle domain.Bundle, log *slog.Logger) {
	now := time.Now().UTC()
	entryPrice := e.entryPrice(ctx, opp)

	pos := domain.Position{
		Asset:             opp.Asset,
		Strategy:          opp.Strategy,
		EntryPrice:        entryPrice,
		SizeSOL:           opp.RequiredCapitalSOL,
		StopLossPct:       e.defaults.StopLossPct,
		TakeProfitPct:     e.defaults.TakeProfitPct,
		MaxHold:           e.defaults.MaxHold,
		Status:            domain.PositionStatusOpen,
		OpenedAt:          now,
		CurrentPrice:      entryPrice,
		UpdatedAt:         now,
		Wallet:            e.wallet,
		SlippageTolerance: opp.MaxSlippageBps,
		EntryBundleID:     bundle.ID,
	}
	if entryPrice > 0 {
		pos.Quantity = opp.RequiredCapitalSOL / entryPrice
	}

	if err := e.positions.Create(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			log.Warn("position already open for asset, entry not recorded")
			return
		}
		log.Error("position create failed", slog.String("error", err.Error()))
		return
	}
	e.metrics.ActivePositions.Inc()

	fill := domain.Fill{
		ID:        uuid.New().String(),
		Asset:     opp.Asset,
		Strategy:  opp.Strategy,
		Side:      "entry",
		Price:     entryPrice,
		SizeSOL:   opp.RequiredCapitalSOL,
		BundleID:  bundle.ID,
		CreatedAt: now,
	}
	if err := e.fills.Insert(ctx, fill); err != nil {
		log.Warn("entry fill journal failed", slog.String("error", err.Error()))
	}

	log.Info("position opened",
		slog.Float64("size_sol", pos.SizeSOL),
		slog.Float64("entry_price", entryPrice))
}

// entryPrice resolves the price the position is marked against: the cached
// market price when fresh, else the price the strategy observed in the
// triggering transaction. Zero means unknown; Cerberus skips price-based
// exit rules until a price is seen.
func (e *Executor) entryPrice(ctx context.Context, opp domain.Opportunity) float64 {
	if e.prices != nil {
		if price, _, err := e.prices.GetPrice(ctx, opp.Asset); err == nil && price > 0 {
			return price
		}
	}
	if raw, ok := opp.Metadata["price"]; ok {
		if price, err := strconv.ParseFloat(raw, 64); err == nil && price > 0 {
			return price
		}
	}
	return 0
}

// appendBundleEvent journals the submission outcome to the durable event
// stream. Failures are logged and otherwise ignored; the journal is advisory.
func (e *Executor) appendBundleEvent(ctx context.Context, result domain.SubmissionResult) {
	if e.bus == nil || result.BundleID == "" {
		return
	}
	streamer, ok := e.bus.(interface {
		StreamAppend(ctx context.Context, stream string, payload []byte) error
	})
	if !ok {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := streamer.StreamAppend(ctx, bundleEventStream, payload); err != nil {
		e.logger.Debug("bundle event journal failed", slog.String("error", err.Error()))
	}
}

// drain processes any opportunities already buffered in the channel after
// context cancellation, so admitted work is not silently dropped.
func (e *Executor) drain() {
	for {
		select {
		case opp, ok := <-e.oppCh:
			if !ok {
				return
			}
			e.logger.Warn("draining opportunity after shutdown",
				slog.String("opportunity_id", opp.ID))
			// Short-lived context so we don't hang on external calls during
			// shutdown.
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.process(drainCtx, opp)
			cancel()
		default:
			return
		}
	}
}

// SetDedupTTL replaces the dedup instance with a new one using the given TTL.
// Must be called before Run.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// SetCleanupInterval changes how often the dedup map is garbage-collected.
// Must be called before Run.
func (e *Executor) SetCleanupInterval(d time.Duration) {
	e.cleanupInterval = d
}
