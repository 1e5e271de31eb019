package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

// strategyBuf is the per-strategy candidate channel depth. A slow strategy
// misses candidates instead of stalling its siblings.
const strategyBuf = 64

// Engine fans mempool candidates out to the active strategies and forwards
// the opportunities they produce to the output channel consumed by the
// executor. Each strategy runs on its own goroutine with a bounded inbox.
type Engine struct {
	registry     *Registry
	out          chan<- domain.Opportunity
	minProfitBps float64
	metrics      *metrics.Metrics
	logger       *slog.Logger

	mu          sync.Mutex
	activeNames []string
	inboxes     map[string]chan domain.Candidate
}

// NewEngine creates an Engine. Opportunities whose ProfitBps falls below
// minProfitBps are discarded before they reach the output channel.
func NewEngine(registry *Registry, out chan<- domain.Opportunity, minProfitBps float64, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		registry:     registry,
		out:          out,
		minProfitBps: minProfitBps,
		metrics:      m,
		logger:       logger.With(slog.String("component", "strategy_engine")),
	}
}

// SetActive selects which registered strategies receive candidates. Names
// must be registered.
func (e *Engine) SetActive(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("active strategies cannot be empty")
	}
	for _, name := range names {
		if _, err := e.registry.Get(name); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeNames = names
	e.inboxes = make(map[string]chan domain.Candidate, len(names))
	for _, name := range names {
		e.inboxes[name] = make(chan domain.Candidate, strategyBuf)
	}
	e.logger.Info("active strategies set", slog.Any("strategies", names))
	return nil
}

// Dispatch offers a candidate to every active strategy. A strategy whose
// inbox is full skips the candidate.
func (e *Engine) Dispatch(ctx context.Context, cand domain.Candidate) {
	e.mu.Lock()
	inboxes := e.inboxes
	names := e.activeNames
	e.mu.Unlock()

	for _, name := range names {
		ch, ok := inboxes[name]
		if !ok {
			continue
		}
		select {
		case ch <- cand:
		case <-ctx.Done():
			return
		default:
			// Inbox full; this strategy misses the candidate.
		}
	}
}

// Run consumes the candidate stream, starts one goroutine per active
// strategy, and blocks until the stream closes or the context is cancelled.
func (e *Engine) Run(ctx context.Context, candidates <-chan domain.Candidate) error {
	e.mu.Lock()
	names := make([]string, len(e.activeNames))
	copy(names, e.activeNames)
	inboxes := make(map[string]chan domain.Candidate, len(e.inboxes))
	for name, ch := range e.inboxes {
		inboxes[name] = ch
	}
	e.mu.Unlock()
	if len(names) == 0 {
		return fmt.Errorf("strategy engine: no active strategies")
	}

	e.logger.Info("strategy engine started", slog.Any("strategies", names))
	defer e.logger.Info("strategy engine stopped")

	g, gctx := errgroup.WithContext(ctx)

	for _, name := range names {
		name, inbox := name, inboxes[name]
		g.Go(func() error {
			return e.runStrategy(gctx, name, inbox)
		})
	}

	g.Go(func() error {
		// Closing the inboxes lets each worker drain what it has buffered
		// and exit; the map itself stays intact for the workers.
		defer func() {
			for _, ch := range inboxes {
				close(ch)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case cand, ok := <-candidates:
				if !ok {
					return nil
				}
				e.Dispatch(gctx, cand)
			}
		}
	})

	return g.Wait()
}

// runStrategy drains one strategy's inbox until it closes.
func (e *Engine) runStrategy(ctx context.Context, name string, inbox <-chan domain.Candidate) error {
	if inbox == nil {
		return nil
	}
	strat, err := e.registry.Get(name)
	if err != nil {
		return err
	}
	if err := strat.Init(ctx); err != nil {
		e.logger.Error("strategy init failed", slog.String("strategy", name), slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = strat.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cand, ok := <-inbox:
			if !ok {
				return nil
			}
			opp, err := strat.Evaluate(ctx, cand)
			if err != nil {
				e.logger.Warn("strategy evaluate error",
					slog.String("strategy", name),
					slog.String("signature", cand.Signature),
					slog.String("error", err.Error()))
				continue
			}
			if opp == nil {
				continue
			}
			e.emit(ctx, *opp)
		}
	}
}

// emit applies the profitability floor and forwards the opportunity.
func (e *Engine) emit(ctx context.Context, opp domain.Opportunity) {
	if opp.Asset == "" {
		// Without an asset identity the position ledger cannot key the
		// trade; such opportunities are unexecutable.
		e.logger.Debug("opportunity dropped without asset identity",
			slog.String("strategy", string(opp.Strategy)),
			slog.String("signature", opp.SourceSignature))
		return
	}
	if opp.ProfitBps < e.minProfitBps {
		e.logger.Debug("opportunity below profit floor",
			slog.String("strategy", string(opp.Strategy)),
			slog.Float64("profit_bps", opp.ProfitBps))
		return
	}
	if opp.Expired(time.Now()) {
		e.metrics.OpportunitiesExpired.Inc()
		return
	}

	select {
	case <-ctx.Done():
	case e.out <- opp:
		e.metrics.OpportunitiesDetected.WithLabelValues(string(opp.Strategy)).Inc()
		e.logger.Debug("opportunity emitted",
			slog.String("id", opp.ID),
			slog.String("strategy", string(opp.Strategy)),
			slog.String("asset", opp.Asset),
			slog.Float64("expected_profit_sol", opp.ExpectedProfitSOL))
	}
}
