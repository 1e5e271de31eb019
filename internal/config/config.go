// Package config defines the top-level configuration for the HFT engine and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HFT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	RPC      RPCConfig      `toml:"rpc"`
	Jito     JitoConfig     `toml:"jito"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Mempool  MempoolConfig  `toml:"mempool"`
	Strategy StrategyConfig `toml:"strategy"`
	Risk     RiskConfig     `toml:"risk"`
	Cerberus CerberusConfig `toml:"cerberus"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the trading wallet credentials.
type WalletConfig struct {
	// KeypairPath points at a Solana CLI keypair file (JSON array of 64
	// bytes). PrivateKey is the base58 alternative for env injection.
	KeypairPath string `toml:"keypair_path"`
	PrivateKey  string `toml:"private_key"`
}

// RPCConfig holds the upstream provider pool parameters.
type RPCConfig struct {
	PrimaryURL     string   `toml:"primary_url"`
	FallbackURLs   []string `toml:"fallback_urls"`
	WSURL          string   `toml:"ws_url"`
	RequestTimeout duration `toml:"request_timeout"`
	// HealthInterval is how often endpoints are probed; FailureWindow is how
	// long a failed endpoint stays demoted.
	HealthInterval duration `toml:"health_interval"`
	FailureWindow  duration `toml:"failure_window"`
	MaxFailures    int      `toml:"max_failures"`
}

// JitoConfig holds block-engine submission parameters.
type JitoConfig struct {
	Endpoint       string   `toml:"endpoint"`
	TipAccount     string   `toml:"tip_account"`
	MinTipLamports uint64   `toml:"min_tip_lamports"`
	MaxTipLamports uint64   `toml:"max_tip_lamports"`
	SubmitTimeout  duration `toml:"submit_timeout"`
}

// RedisConfig holds Redis/DragonflyDB connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds connection parameters for the fill/audit journal.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// MempoolConfig holds the pending-transaction stream parameters.
type MempoolConfig struct {
	Commitment string `toml:"commitment"`
	// BufferSize is the candidate channel depth; when full, the oldest
	// buffered candidate is dropped in favor of the newest.
	BufferSize int `toml:"buffer_size"`
	MaxTxBytes int `toml:"max_tx_bytes"`
}

// StrategyConfig holds the per-variant strategy parameters.
type StrategyConfig struct {
	// Active lists the strategy names to run concurrently.
	Active []string `toml:"active"`

	Arbitrage   ArbitrageConfig   `toml:"arbitrage"`
	Sandwich    SandwichConfig    `toml:"sandwich"`
	Sniper      SniperConfig      `toml:"sniper"`
	JupiterArb  JupiterArbConfig  `toml:"jupiter_arb"`
	Liquidation LiquidationConfig `toml:"liquidation"`

	// Position shape applied on entry.
	SizeSOL       float64  `toml:"size_sol"`
	StopLossPct   float64  `toml:"stop_loss_pct"`
	TakeProfitPct float64  `toml:"take_profit_pct"`
	MaxHold       duration `toml:"max_hold"`
}

// ArbitrageConfig holds config for the reserve-divergence strategy.
type ArbitrageConfig struct {
	Enabled        bool    `toml:"enabled"`
	MinProfitBps   float64 `toml:"min_profit_bps"`
	ExchangeFeeBps float64 `toml:"exchange_fee_bps"`
	MaxCapitalSOL  float64 `toml:"max_capital_sol"`
}

// SandwichConfig holds config for the sandwich strategy. MaxVictimSlippageBps
// is the policy ceiling on slippage imposed on the victim transaction.
type SandwichConfig struct {
	Enabled              bool    `toml:"enabled"`
	MinVictimAmountSOL   float64 `toml:"min_victim_amount_sol"`
	SafetyMarginBps      float64 `toml:"safety_margin_bps"`
	MaxVictimSlippageBps float64 `toml:"max_victim_slippage_bps"`
	FrontRunFraction     float64 `toml:"front_run_fraction"`
}

// SniperConfig holds config for new-pool sniping.
type SniperConfig struct {
	Enabled            bool     `toml:"enabled"`
	MinInitialLiqSOL   float64  `toml:"min_initial_liq_sol"`
	SizeSOL            float64  `toml:"size_sol"`
	OpportunityTTL     duration `toml:"opportunity_ttl"`
	MaxPoolAgeAtDecode duration `toml:"max_pool_age_at_decode"`
}

// JupiterArbConfig holds config for direct-vs-aggregator arbitrage.
type JupiterArbConfig struct {
	Enabled       bool    `toml:"enabled"`
	MinProfitBps  float64 `toml:"min_profit_bps"`
	MaxCapitalSOL float64 `toml:"max_capital_sol"`
}

// LiquidationConfig holds config for lending-protocol liquidations.
type LiquidationConfig struct {
	Enabled         bool    `toml:"enabled"`
	MinBonusBps     float64 `toml:"min_bonus_bps"`
	GasEstimateSOL  float64 `toml:"gas_estimate_sol"`
	MaxHealthFactor float64 `toml:"max_health_factor"`
}

// RiskConfig holds the global risk limits.
type RiskConfig struct {
	MaxPositionSizeSOL     float64 `toml:"max_position_size_sol"`
	MaxDailyLossSOL        float64 `toml:"max_daily_loss_sol"`
	MaxSlippageBps         float64 `toml:"max_slippage_bps"`
	MinLiquiditySOL        float64 `toml:"min_liquidity_sol"`
	MaxConcurrentPositions int     `toml:"max_concurrent_positions"`
	MinProfitBps           float64 `toml:"min_profit_bps"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
}

// CerberusConfig holds the decision-loop parameters.
type CerberusConfig struct {
	TickInterval     duration `toml:"tick_interval"`
	PriceTimeout     duration `toml:"price_timeout"`
	ExitRetryTimeout duration `toml:"exit_retry_timeout"`
	MaxMarketAge     duration `toml:"max_market_age"`
}

// MetricsConfig holds the Prometheus endpoint parameters.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "200ms", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match config.example.toml.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			PrimaryURL:     "https://api.mainnet-beta.solana.com",
			WSURL:          "wss://api.mainnet-beta.solana.com",
			RequestTimeout: duration{10 * time.Second},
			HealthInterval: duration{5 * time.Second},
			FailureWindow:  duration{30 * time.Second},
			MaxFailures:    3,
		},
		Jito: JitoConfig{
			Endpoint:       "https://mainnet.block-engine.jito.wtf/api/v1/bundles",
			TipAccount:     "96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
			MinTipLamports: 10_000,
			MaxTipLamports: 1_000_000,
			SubmitTimeout:  duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "hftninja",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "hftninja-archive",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveInterval: duration{15 * time.Minute},
		},
		Mempool: MempoolConfig{
			Commitment: "processed",
			BufferSize: 4096,
			MaxTxBytes: 64 * 1024,
		},
		Strategy: StrategyConfig{
			Active: []string{"arbitrage", "sniper"},
			Arbitrage: ArbitrageConfig{
				Enabled:        true,
				MinProfitBps:   50,
				ExchangeFeeBps: 25,
				MaxCapitalSOL:  1.0,
			},
			Sandwich: SandwichConfig{
				Enabled:              false,
				MinVictimAmountSOL:   0.1,
				SafetyMarginBps:      20,
				MaxVictimSlippageBps: 300,
				FrontRunFraction:     0.1,
			},
			Sniper: SniperConfig{
				Enabled:            true,
				MinInitialLiqSOL:   10,
				SizeSOL:            0.1,
				OpportunityTTL:     duration{5 * time.Second},
				MaxPoolAgeAtDecode: duration{2 * time.Second},
			},
			JupiterArb: JupiterArbConfig{
				Enabled:       false,
				MinProfitBps:  60,
				MaxCapitalSOL: 2.0,
			},
			Liquidation: LiquidationConfig{
				Enabled:         false,
				MinBonusBps:     100,
				GasEstimateSOL:  0.002,
				MaxHealthFactor: 1.0,
			},
			SizeSOL:       0.1,
			StopLossPct:   0.25,
			TakeProfitPct: 1.0,
			MaxHold:       duration{10 * time.Minute},
		},
		Risk: RiskConfig{
			MaxPositionSizeSOL:     1.0,
			MaxDailyLossSOL:        0.5,
			MaxSlippageBps:         200,
			MinLiquiditySOL:        100,
			MaxConcurrentPositions: 50,
			MinProfitBps:           10,
			MaxConsecutiveFailures: 5,
		},
		Cerberus: CerberusConfig{
			TickInterval:     duration{200 * time.Millisecond},
			PriceTimeout:     duration{150 * time.Millisecond},
			ExitRetryTimeout: duration{5 * time.Second},
			MaxMarketAge:     duration{5 * time.Second},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9464",
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":    true,
	"cerberus": true,
	"monitor":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, cerberus, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet is required for any mode that submits bundles.
	needsWallet := c.Mode == "trade" || c.Mode == "cerberus"
	if needsWallet && c.Wallet.KeypairPath == "" && c.Wallet.PrivateKey == "" {
		errs = append(errs, "wallet: either keypair_path or private_key must be set for mode "+c.Mode)
	}

	if c.RPC.PrimaryURL == "" {
		errs = append(errs, "rpc: primary_url must not be empty")
	}
	if c.Mode == "trade" && c.RPC.WSURL == "" {
		errs = append(errs, "rpc: ws_url must not be empty in trade mode")
	}
	if c.Jito.Endpoint == "" && c.Mode != "monitor" {
		errs = append(errs, "jito: endpoint must not be empty")
	}
	if c.Jito.MinTipLamports > c.Jito.MaxTipLamports {
		errs = append(errs, "jito: min_tip_lamports exceeds max_tip_lamports")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Mempool.BufferSize <= 0 {
		errs = append(errs, "mempool: buffer_size must be positive")
	}

	if c.Risk.MaxPositionSizeSOL <= 0 {
		errs = append(errs, "risk: max_position_size_sol must be positive")
	}
	if c.Risk.MaxDailyLossSOL <= 0 {
		errs = append(errs, "risk: max_daily_loss_sol must be positive")
	}
	if c.Risk.MaxConcurrentPositions <= 0 {
		errs = append(errs, "risk: max_concurrent_positions must be positive")
	}

	if c.Cerberus.TickInterval.Duration <= 0 {
		errs = append(errs, "cerberus: tick_interval must be positive")
	}
	if c.Cerberus.PriceTimeout.Duration >= c.Cerberus.TickInterval.Duration*10 {
		errs = append(errs, "cerberus: price_timeout is too large relative to tick_interval")
	}

	if c.Strategy.Sandwich.Enabled && c.Strategy.Sandwich.MaxVictimSlippageBps <= 0 {
		errs = append(errs, "strategy.sandwich: max_victim_slippage_bps must be positive when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
