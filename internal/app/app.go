// Package app wires configuration into concrete dependencies and runs the
// selected application mode.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SynergiaOS/solana-hft-ninja/internal/config"
)

// App is the top-level application. One App runs exactly one mode.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	cleanup func()
}

// New validates the configuration and returns an App ready to run.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Run wires dependencies and blocks until the mode finishes or ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.cleanup = cleanup

	a.logger.Info("dependencies wired", slog.String("mode", a.cfg.Mode))

	switch a.cfg.Mode {
	case "trade":
		return TradeMode(ctx, a.cfg, deps, a.logger)
	case "cerberus":
		return CerberusMode(ctx, a.cfg, deps, a.logger)
	case "monitor":
		return MonitorMode(ctx, a.cfg, deps, a.logger)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close releases all wired dependencies in reverse construction order.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
