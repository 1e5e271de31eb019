package cerberus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/executor"
	"github.com/SynergiaOS/solana-hft-ninja/internal/risk"
)

// Pub/sub channels the processor listens on.
const (
	CommandChannel  = "trading_commands"
	GuardianChannel = "guardian_alerts"
)

// CommandProcessor is the single task that owns all signal-state mutations
// driven by the inbound command channels. Delivery is fire-and-forget, so
// duplicates and reordering are tolerated: handling is idempotent, keyed by
// asset+action.
type CommandProcessor struct {
	bus     domain.SignalBus
	breaker *risk.Breaker
	seen    *executor.Dedup
	logger  *slog.Logger

	// kick, when non-nil, wakes the decision loop without waiting for the
	// tick interval. Used by EXIT_ALL_POSITIONS.
	kick chan<- struct{}

	mu        sync.RWMutex
	overrides map[string]string
	pause     bool
	exitAll   bool
	reason    string
}

// NewCommandProcessor creates the processor. kick may be nil.
func NewCommandProcessor(bus domain.SignalBus, breaker *risk.Breaker, kick chan<- struct{}, logger *slog.Logger) *CommandProcessor {
	return &CommandProcessor{
		bus:       bus,
		breaker:   breaker,
		seen:      executor.NewDedup(30 * time.Second),
		logger:    logger.With(slog.String("component", "command_processor")),
		kick:      kick,
		overrides: make(map[string]string),
	}
}

// Signals returns the command state visible to the current tick.
func (p *CommandProcessor) Signals() Signals {
	p.mu.RLock()
	defer p.mu.RUnlock()
	overrides := make(map[string]string, len(p.overrides))
	for asset, reason := range p.overrides {
		overrides[asset] = reason
	}
	return Signals{
		OverrideExits:   overrides,
		GuardianPause:   p.pause,
		GuardianExitAll: p.exitAll,
		GuardianReason:  p.reason,
	}
}

// ClearOverride removes a serviced per-asset override.
func (p *CommandProcessor) ClearOverride(asset string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overrides, asset)
}

// AcknowledgeExitAll clears the exit-all flag once every active position has
// been transitioned.
func (p *CommandProcessor) AcknowledgeExitAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitAll = false
}

// Run subscribes to both channels and processes messages until ctx is
// cancelled.
func (p *CommandProcessor) Run(ctx context.Context) error {
	commands, err := p.bus.Subscribe(ctx, CommandChannel)
	if err != nil {
		return err
	}
	alerts, err := p.bus.Subscribe(ctx, GuardianChannel)
	if err != nil {
		return err
	}

	p.logger.Info("command processor started")
	defer p.logger.Info("command processor stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-commands:
			if !ok {
				return nil
			}
			p.handleCommand(ctx, payload)
		case payload, ok := <-alerts:
			if !ok {
				return nil
			}
			p.handleAlert(ctx, payload)
		}
	}
}

func (p *CommandProcessor) handleCommand(_ context.Context, payload []byte) {
	var cmd domain.TradingCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.logger.Warn("undecodable trading command", slog.String("error", err.Error()))
		return
	}
	if cmd.Asset == "" {
		p.logger.Warn("trading command without asset, dropped")
		return
	}
	if p.seen.IsDuplicate(cmd.Key()) {
		return
	}

	switch cmd.Action {
	case domain.CommandSell:
		p.mu.Lock()
		p.overrides[cmd.Asset] = cmd.Reason
		p.mu.Unlock()
		p.logger.Info("exit override received",
			slog.String("asset", cmd.Asset),
			slog.String("reason", cmd.Reason))
		p.wake()
	case domain.CommandHold:
		p.mu.Lock()
		_, had := p.overrides[cmd.Asset]
		delete(p.overrides, cmd.Asset)
		p.mu.Unlock()
		if had {
			p.logger.Info("exit override withdrawn", slog.String("asset", cmd.Asset))
		}
	case domain.CommandBuy:
		// Entries come from the opportunity pipeline, not the command
		// channel.
		p.logger.Debug("buy command ignored", slog.String("asset", cmd.Asset))
	default:
		p.logger.Warn("unknown command action", slog.String("action", string(cmd.Action)))
	}
}

func (p *CommandProcessor) handleAlert(ctx context.Context, payload []byte) {
	var alert domain.GuardianAlert
	if err := json.Unmarshal(payload, &alert); err != nil {
		p.logger.Warn("undecodable guardian alert", slog.String("error", err.Error()))
		return
	}

	switch alert.Action {
	case domain.GuardianPauseTrading:
		p.mu.Lock()
		p.pause = true
		p.reason = alert.Reason
		p.mu.Unlock()
		p.breaker.Pause(ctx, "guardian: "+alert.Reason)
	case domain.GuardianResumeTrading:
		p.mu.Lock()
		p.pause = false
		p.exitAll = false
		p.reason = ""
		p.mu.Unlock()
		// The one sanctioned breaker reset path.
		p.breaker.Reset(ctx, "guardian: "+alert.Reason)
	case domain.GuardianExitAllPositions:
		p.mu.Lock()
		p.exitAll = true
		p.reason = alert.Reason
		p.mu.Unlock()
		p.logger.Warn("guardian exit-all received", slog.String("reason", alert.Reason))
		p.wake()
	default:
		p.logger.Warn("unknown guardian action", slog.String("action", string(alert.Action)))
	}
}

// wake nudges the decision loop so emergency directives do not wait out the
// tick interval.
func (p *CommandProcessor) wake() {
	if p.kick == nil {
		return
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
}
