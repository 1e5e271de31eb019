// Package risk gates opportunities against the global limits and holds the
// circuit breaker that pauses trading after repeated failures.
package risk

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

// Breaker is the trading circuit breaker. It trips after a configured number
// of consecutive submission failures, or on an explicit pause. A tripped
// breaker never resumes on its own: only an explicit Reset (operator or
// Guardian RESUME_TRADING) re-enables trading. If the mirrored pause state
// cannot be read, the breaker reports paused.
type Breaker struct {
	maxConsecutive int
	store          domain.PauseStore
	metrics        *metrics.Metrics
	logger         *slog.Logger

	mu       sync.Mutex
	failures int
	paused   bool
	reason   string
}

// NewBreaker creates a Breaker that trips after maxConsecutive failures.
func NewBreaker(maxConsecutive int, store domain.PauseStore, m *metrics.Metrics, logger *slog.Logger) *Breaker {
	return &Breaker{
		maxConsecutive: maxConsecutive,
		store:          store,
		metrics:        m,
		logger:         logger.With(slog.String("component", "breaker")),
	}
}

// Sync loads the mirrored pause state, so a restart keeps an operator pause
// in force. A read failure leaves the breaker paused.
func (b *Breaker) Sync(ctx context.Context) {
	paused, err := b.store.Paused(ctx)
	if err != nil {
		b.logger.Error("pause state unavailable, failing closed", slog.String("error", err.Error()))
		paused = true
	}
	b.mu.Lock()
	b.paused = paused
	b.mu.Unlock()
	b.publishGauge()
}

// Paused reports whether trading is currently paused.
func (b *Breaker) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Reason returns the cause of the current pause, if any.
func (b *Breaker) Reason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// RecordFailure counts one failed submission and trips the breaker when the
// consecutive-failure threshold is reached.
func (b *Breaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()
	b.failures++
	trip := b.maxConsecutive > 0 && b.failures >= b.maxConsecutive && !b.paused
	failures := b.failures
	b.mu.Unlock()

	if trip {
		b.logger.Warn("consecutive failure threshold reached, tripping breaker",
			slog.Int("failures", failures))
		b.metrics.BreakerTrips.Inc()
		b.Pause(ctx, "consecutive_failures")
	}
}

// RecordSuccess resets the consecutive-failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Pause trips the breaker and mirrors the state to the pause store.
func (b *Breaker) Pause(ctx context.Context, reason string) {
	b.mu.Lock()
	b.paused = true
	b.reason = reason
	b.mu.Unlock()

	if err := b.store.SetPaused(ctx, true, reason); err != nil {
		b.logger.Error("failed to mirror pause state", slog.String("error", err.Error()))
	}
	b.publishGauge()
	b.logger.Warn("trading paused", slog.String("reason", reason))
}

// Reset clears the breaker after an explicit resume. It is never called from
// a timer.
func (b *Breaker) Reset(ctx context.Context, reason string) {
	b.mu.Lock()
	b.paused = false
	b.failures = 0
	b.reason = ""
	b.mu.Unlock()

	if err := b.store.SetPaused(ctx, false, reason); err != nil {
		b.logger.Error("failed to mirror resume state", slog.String("error", err.Error()))
	}
	b.publishGauge()
	b.logger.Info("trading resumed", slog.String("reason", reason))
}

func (b *Breaker) publishGauge() {
	if b.Paused() {
		b.metrics.TradingPaused.Set(1)
	} else {
		b.metrics.TradingPaused.Set(0)
	}
}
