package mempool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

const reconnectDelay = 2 * time.Second

// Watcher streams pending transactions, decodes them, and emits classified
// candidates on a bounded channel. When the consumer falls behind the oldest
// buffered candidate is dropped; stale data is worthless in this pipeline.
type Watcher struct {
	wsURL      string
	commitment string
	parser     *Parser
	out        chan domain.Candidate
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// WatcherConfig holds the tunables for a mempool watcher.
type WatcherConfig struct {
	WSURL      string
	Commitment string
	BufferSize int
	MaxTxBytes int
}

// NewWatcher creates a watcher with a buffer of cfg.BufferSize candidates.
func NewWatcher(cfg WatcherConfig, m *metrics.Metrics, logger *slog.Logger) *Watcher {
	size := cfg.BufferSize
	if size <= 0 {
		size = 1024
	}
	return &Watcher{
		wsURL:      cfg.WSURL,
		commitment: cfg.Commitment,
		parser:     NewParser(cfg.MaxTxBytes),
		out:        make(chan domain.Candidate, size),
		metrics:    m,
		logger:     logger.With(slog.String("component", "mempool_watcher")),
	}
}

// Candidates returns the stream of classified candidates. The channel is
// closed when Run returns.
func (w *Watcher) Candidates() <-chan domain.Candidate {
	return w.out
}

// Run connects, subscribes to the watched programs, and emits candidates
// until ctx is cancelled. Disconnects are retried with a fixed delay.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := w.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("mempool feed disconnected, reconnecting", slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *Watcher) runConnection(ctx context.Context) error {
	client := NewWSClient(w.wsURL)
	defer client.Close()

	client.OnTransaction(w.handle)

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(ctx, WatchedPrograms(), w.commitment); err != nil {
		return err
	}
	w.logger.Info("mempool feed subscribed",
		slog.Int("programs", len(programRegistry)),
		slog.String("commitment", w.commitment))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Done():
		return domain.ErrWSDisconnect
	}
}

func (w *Watcher) handle(raw RawTransaction) {
	w.metrics.TxObserved.Inc()

	tx, err := w.parser.Parse(raw)
	if err != nil {
		w.metrics.TxDecodeFailures.Inc()
		var de *DecodeError
		if errors.As(err, &de) {
			w.logger.Debug("dropped undecodable transaction",
				slog.String("signature", de.Signature),
				slog.String("reason", de.Reason))
		}
		return
	}

	cand, ok := Classify(tx, time.Now())
	if !ok {
		return
	}

	select {
	case w.out <- cand:
	default:
		// Buffer full: evict the oldest candidate to make room.
		select {
		case <-w.out:
			w.metrics.TxDropped.Inc()
		default:
		}
		select {
		case w.out <- cand:
		default:
			w.metrics.TxDropped.Inc()
		}
	}
}
