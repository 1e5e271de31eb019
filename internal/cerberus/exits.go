package cerberus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
	"github.com/SynergiaOS/solana-hft-ninja/internal/rpcpool"
)

// BundleBuilder assembles a signed closing bundle.
type BundleBuilder interface {
	Build(opp domain.Opportunity, blockhash string, targetSlot uint64, validUntil time.Time) (domain.Bundle, error)
}

// BundleSubmitter delivers a bundle to the block engine.
type BundleSubmitter interface {
	Submit(ctx context.Context, b domain.Bundle) (domain.SubmissionResult, error)
}

// ChainReader provides the blockhash and slot needed to build a transaction.
type ChainReader interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (rpcpool.LatestBlockhash, error)
	GetSlot(ctx context.Context, commitment string) (uint64, error)
}

// ExitEngine turns an ExitPending position into a closing bundle and, on
// confirmed submission, into a Closed position plus an exit fill.
type ExitEngine struct {
	builder   BundleBuilder
	submitter BundleSubmitter
	chain     ChainReader
	positions domain.PositionStore
	fills     domain.FillStore

	commitment     string
	bundleValidity time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewExitEngine wires the closing-bundle path. fills may be nil; journaling
// degrades gracefully without it.
func NewExitEngine(
	builder BundleBuilder,
	submitter BundleSubmitter,
	chain ChainReader,
	positions domain.PositionStore,
	fills domain.FillStore,
	commitment string,
	bundleValidity time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ExitEngine {
	if commitment == "" {
		commitment = "confirmed"
	}
	if bundleValidity <= 0 {
		bundleValidity = 2 * time.Second
	}
	return &ExitEngine{
		builder:        builder,
		submitter:      submitter,
		chain:          chain,
		positions:      positions,
		fills:          fills,
		commitment:     commitment,
		bundleValidity: bundleValidity,
		metrics:        m,
		logger:         logger.With(slog.String("component", "exit_engine")),
	}
}

// Execute builds and submits a closing bundle for the position. On confirmed
// submission it closes the position, journals the exit fill, and returns nil.
// On any failure the position stays ExitPending for a later retry with fresh
// data.
func (e *ExitEngine) Execute(ctx context.Context, pos domain.Position, price float64, reason string) error {
	blockhash, err := e.chain.GetLatestBlockhash(ctx, e.commitment)
	if err != nil {
		return fmt.Errorf("cerberus: exit blockhash: %w", err)
	}
	slot, err := e.chain.GetSlot(ctx, e.commitment)
	if err != nil {
		return fmt.Errorf("cerberus: exit slot: %w", err)
	}

	exitOpp := domain.Opportunity{
		ID:                 uuid.New().String(),
		Strategy:           pos.Strategy,
		Asset:              pos.Asset,
		RequiredCapitalSOL: pos.ValueSOL(priceOrEntry(pos, price)),
		MaxSlippageBps:     pos.SlippageTolerance,
		CreatedAt:          time.Now().UTC(),
		Metadata:           map[string]string{"exit_reason": reason},
	}
	if exitOpp.RequiredCapitalSOL <= 0 {
		exitOpp.RequiredCapitalSOL = pos.SizeSOL
	}

	bundle, err := e.builder.Build(exitOpp, blockhash.Blockhash, slot+1, time.Now().Add(e.bundleValidity))
	if err != nil {
		return fmt.Errorf("cerberus: build exit bundle: %w", err)
	}
	result, err := e.submitter.Submit(ctx, bundle)
	if err != nil {
		return fmt.Errorf("cerberus: submit exit bundle: %w", err)
	}
	if !result.Accepted() {
		return fmt.Errorf("cerberus: exit bundle %s not accepted: %s", bundle.ID, result.Status)
	}

	if err := e.positions.Close(ctx, pos.Asset, reason, price); err != nil {
		return fmt.Errorf("cerberus: close position %s: %w", pos.Asset, err)
	}
	e.metrics.ActivePositions.Dec()
	e.metrics.PositionsClosed.WithLabelValues(reason).Inc()

	e.journalExit(ctx, pos, price, reason, bundle.ID)

	e.logger.Info("position closed",
		slog.String("asset", pos.Asset),
		slog.String("reason", reason),
		slog.Float64("exit_price", price),
		slog.String("bundle_id", bundle.ID))
	return nil
}

// journalExit records the exit fill with realized PnL.
func (e *ExitEngine) journalExit(ctx context.Context, pos domain.Position, price float64, reason, bundleID string) {
	if e.fills == nil {
		return
	}
	realized := 0.0
	if price > 0 && pos.EntryPrice > 0 {
		realized = pos.SizeSOL * pos.PnLPct(price) / 100
	}
	fill := domain.Fill{
		ID:             uuid.New().String(),
		Asset:          pos.Asset,
		Strategy:       pos.Strategy,
		Side:           "exit",
		Price:          price,
		SizeSOL:        pos.SizeSOL,
		RealizedPnLSOL: realized,
		BundleID:       bundleID,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.fills.Insert(ctx, fill); err != nil {
		e.logger.Warn("exit fill journal failed",
			slog.String("asset", pos.Asset),
			slog.String("error", err.Error()))
	}
}

// priceOrEntry falls back to the entry price when no fresh price is known,
// so the closing bundle is still sized sensibly.
func priceOrEntry(pos domain.Position, price float64) float64 {
	if price > 0 {
		return price
	}
	return pos.EntryPrice
}
