package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/SynergiaOS/solana-hft-ninja/internal/bundle"
	"github.com/SynergiaOS/solana-hft-ninja/internal/cerberus"
	"github.com/SynergiaOS/solana-hft-ninja/internal/config"
	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/executor"
	"github.com/SynergiaOS/solana-hft-ninja/internal/mempool"
	"github.com/SynergiaOS/solana-hft-ninja/internal/risk"
	"github.com/SynergiaOS/solana-hft-ninja/internal/strategy"
)

// opportunityBuffer sizes the channel between the strategy engine and the
// executor. Bursts beyond it apply backpressure to dispatch rather than
// dropping opportunities.
const opportunityBuffer = 256

func riskLimits(cfg *config.Config) domain.RiskLimits {
	return domain.RiskLimits{
		MaxPositionSizeSOL:     cfg.Risk.MaxPositionSizeSOL,
		MaxDailyLossSOL:        cfg.Risk.MaxDailyLossSOL,
		MaxSlippageBps:         cfg.Risk.MaxSlippageBps,
		MinLiquiditySOL:        cfg.Risk.MinLiquiditySOL,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		MinProfitBps:           cfg.Risk.MinProfitBps,
	}
}

// buildRegistry registers every enabled strategy from the config.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *strategy.Registry {
	reg := strategy.NewRegistry()
	sc := cfg.Strategy

	if sc.Sandwich.Enabled {
		reg.Register(strategy.NewSandwich(strategy.SandwichConfig{
			MinVictimAmountSOL:   sc.Sandwich.MinVictimAmountSOL,
			SafetyMarginBps:      sc.Sandwich.SafetyMarginBps,
			MaxVictimSlippageBps: sc.Sandwich.MaxVictimSlippageBps,
			FrontRunFraction:     sc.Sandwich.FrontRunFraction,
		}, logger))
	}
	if sc.Sniper.Enabled {
		reg.Register(strategy.NewSniper(strategy.SniperConfig{
			MinInitialLiqSOL: sc.Sniper.MinInitialLiqSOL,
			SizeSOL:          sc.Sniper.SizeSOL,
			OpportunityTTL:   sc.Sniper.OpportunityTTL.Duration,
			MaxCandidateAge:  sc.Sniper.MaxPoolAgeAtDecode.Duration,
		}, logger))
	}
	if sc.Arbitrage.Enabled {
		reg.Register(strategy.NewArbitrage(strategy.ArbitrageConfig{
			MinProfitBps:   sc.Arbitrage.MinProfitBps,
			ExchangeFeeBps: sc.Arbitrage.ExchangeFeeBps,
			MaxCapitalSOL:  sc.Arbitrage.MaxCapitalSOL,
		}, logger))
	}
	if sc.JupiterArb.Enabled {
		reg.Register(strategy.NewJupiterArb(strategy.JupiterArbConfig{
			MinProfitBps:  sc.JupiterArb.MinProfitBps,
			MaxCapitalSOL: sc.JupiterArb.MaxCapitalSOL,
		}, logger))
	}
	if sc.Liquidation.Enabled {
		reg.Register(strategy.NewLiquidation(strategy.LiquidationConfig{
			MinBonusBps:     sc.Liquidation.MinBonusBps,
			GasEstimateSOL:  sc.Liquidation.GasEstimateSOL,
			MaxHealthFactor: sc.Liquidation.MaxHealthFactor,
			SizeSOL:         sc.SizeSOL,
		}, logger))
	}
	return reg
}

func newBuilder(cfg *config.Config, deps *Dependencies) *bundle.Builder {
	return bundle.NewBuilder(deps.Wallet, bundle.NewTemplateSet(), bundle.BuilderConfig{
		TipAccount:     cfg.Jito.TipAccount,
		MinTipLamports: cfg.Jito.MinTipLamports,
		MaxTipLamports: cfg.Jito.MaxTipLamports,
	})
}

func newSubmitter(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *bundle.Submitter {
	return bundle.NewSubmitter(bundle.SubmitterConfig{
		Endpoint:      cfg.Jito.Endpoint,
		SubmitTimeout: cfg.Jito.SubmitTimeout.Duration,
	}, deps.RateLimiter, deps.Metrics, logger)
}

func cerberusConfig(cfg *config.Config) cerberus.Config {
	return cerberus.Config{
		TickInterval:     cfg.Cerberus.TickInterval.Duration,
		PriceTimeout:     cfg.Cerberus.PriceTimeout.Duration,
		ExitRetryTimeout: cfg.Cerberus.ExitRetryTimeout.Duration,
		MaxMarketAge:     cfg.Cerberus.MaxMarketAge.Duration,
	}
}

// waitGroup runs g.Wait and treats context cancellation as a clean shutdown.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// TradeMode runs the full pipeline: mempool watcher, strategy engine,
// executor, and the Cerberus position manager, all against live
// infrastructure.
func TradeMode(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) error {
	logger.Info("starting trade mode", slog.String("wallet", deps.Wallet.PublicKey()))

	breaker := risk.NewBreaker(cfg.Risk.MaxConsecutiveFailures, deps.PauseStore, deps.Metrics, logger)
	breaker.Sync(ctx)
	gate := risk.NewGate(riskLimits(cfg), breaker, deps.PositionStore, deps.FillStore, deps.AuditStore, deps.Metrics, logger)

	builder := newBuilder(cfg, deps)
	submitter := newSubmitter(cfg, deps, logger)

	watcher := mempool.NewWatcher(mempool.WatcherConfig{
		WSURL:      cfg.RPC.WSURL,
		Commitment: cfg.Mempool.Commitment,
		BufferSize: cfg.Mempool.BufferSize,
		MaxTxBytes: cfg.Mempool.MaxTxBytes,
	}, deps.Metrics, logger)

	oppCh := make(chan domain.Opportunity, opportunityBuffer)
	engine := strategy.NewEngine(buildRegistry(cfg, logger), oppCh, cfg.Risk.MinProfitBps, deps.Metrics, logger)
	if err := engine.SetActive(cfg.Strategy.Active); err != nil {
		return err
	}

	exec := executor.NewExecutor(
		oppCh,
		gate,
		breaker,
		builder,
		submitter,
		deps.RPC,
		deps.LockManager,
		deps.PositionStore,
		deps.FillStore,
		deps.PriceCache,
		deps.SignalBus,
		deps.Wallet.PublicKey(),
		executor.PositionDefaults{
			StopLossPct:   cfg.Strategy.StopLossPct,
			TakeProfitPct: cfg.Strategy.TakeProfitPct,
			MaxHold:       cfg.Strategy.MaxHold.Duration,
		},
		executor.Config{Commitment: cfg.Mempool.Commitment},
		deps.Metrics,
		logger,
	)

	kick := make(chan struct{}, 1)
	commands := cerberus.NewCommandProcessor(deps.SignalBus, breaker, kick, logger)
	exits := cerberus.NewExitEngine(builder, submitter, deps.RPC, deps.PositionStore, deps.FillStore, cfg.Mempool.Commitment, 0, deps.Metrics, logger)
	loop := cerberus.NewLoop(deps.PositionStore, deps.PriceCache, nil, commands, exits, cerberusConfig(cfg), kick, deps.Metrics, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return engine.Run(ctx, watcher.Candidates()) })
	g.Go(func() error { return exec.Run(ctx) })
	g.Go(func() error { return commands.Run(ctx) })
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return submitter.Run(ctx) })
	g.Go(func() error { return deps.RPC.RunHealthChecks(ctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return deps.Metrics.Serve(ctx, cfg.Metrics.Addr, logger) })
	}
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}
	return waitGroup(g)
}

// CerberusMode runs only the position manager: it evaluates open positions,
// services operator commands and guardian alerts, and executes exits. No new
// entries are made in this mode.
func CerberusMode(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) error {
	logger.Info("starting cerberus mode", slog.String("wallet", deps.Wallet.PublicKey()))

	breaker := risk.NewBreaker(cfg.Risk.MaxConsecutiveFailures, deps.PauseStore, deps.Metrics, logger)
	breaker.Sync(ctx)

	builder := newBuilder(cfg, deps)
	submitter := newSubmitter(cfg, deps, logger)

	kick := make(chan struct{}, 1)
	commands := cerberus.NewCommandProcessor(deps.SignalBus, breaker, kick, logger)
	exits := cerberus.NewExitEngine(builder, submitter, deps.RPC, deps.PositionStore, deps.FillStore, cfg.Mempool.Commitment, 0, deps.Metrics, logger)
	loop := cerberus.NewLoop(deps.PositionStore, deps.PriceCache, nil, commands, exits, cerberusConfig(cfg), kick, deps.Metrics, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return commands.Run(ctx) })
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return submitter.Run(ctx) })
	g.Go(func() error { return deps.RPC.RunHealthChecks(ctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return deps.Metrics.Serve(ctx, cfg.Metrics.Addr, logger) })
	}
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}
	return waitGroup(g)
}

// MonitorMode runs the watcher and strategy engine without execution. Every
// opportunity is logged and discarded, which makes it safe to point at
// mainnet while tuning strategy thresholds.
func MonitorMode(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) error {
	logger.Info("starting monitor mode")

	watcher := mempool.NewWatcher(mempool.WatcherConfig{
		WSURL:      cfg.RPC.WSURL,
		Commitment: cfg.Mempool.Commitment,
		BufferSize: cfg.Mempool.BufferSize,
		MaxTxBytes: cfg.Mempool.MaxTxBytes,
	}, deps.Metrics, logger)

	oppCh := make(chan domain.Opportunity, opportunityBuffer)
	engine := strategy.NewEngine(buildRegistry(cfg, logger), oppCh, cfg.Risk.MinProfitBps, deps.Metrics, logger)
	if err := engine.SetActive(cfg.Strategy.Active); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return engine.Run(ctx, watcher.Candidates()) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case opp, ok := <-oppCh:
				if !ok {
					return nil
				}
				logger.Info("opportunity detected",
					slog.String("strategy", string(opp.Strategy)),
					slog.String("asset", opp.Asset),
					slog.Float64("expected_profit_sol", opp.ExpectedProfitSOL),
					slog.Float64("required_capital_sol", opp.RequiredCapitalSOL))
			}
		}
	})
	g.Go(func() error { return deps.RPC.RunHealthChecks(ctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return deps.Metrics.Serve(ctx, cfg.Metrics.Addr, logger) })
	}
	return waitGroup(g)
}
