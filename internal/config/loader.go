package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HFT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HFT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.KeypairPath, "HFT_WALLET_KEYPAIR_PATH")
	setStr(&cfg.Wallet.PrivateKey, "HFT_WALLET_PRIVATE_KEY")

	// ── RPC ──
	setStr(&cfg.RPC.PrimaryURL, "HFT_RPC_PRIMARY_URL")
	setStringSlice(&cfg.RPC.FallbackURLs, "HFT_RPC_FALLBACK_URLS")
	setStr(&cfg.RPC.WSURL, "HFT_RPC_WS_URL")
	setDuration(&cfg.RPC.RequestTimeout, "HFT_RPC_REQUEST_TIMEOUT")
	setDuration(&cfg.RPC.HealthInterval, "HFT_RPC_HEALTH_INTERVAL")
	setDuration(&cfg.RPC.FailureWindow, "HFT_RPC_FAILURE_WINDOW")
	setInt(&cfg.RPC.MaxFailures, "HFT_RPC_MAX_FAILURES")

	// ── Jito ──
	setStr(&cfg.Jito.Endpoint, "HFT_JITO_ENDPOINT")
	setStr(&cfg.Jito.TipAccount, "HFT_JITO_TIP_ACCOUNT")
	setUint64(&cfg.Jito.MinTipLamports, "HFT_JITO_MIN_TIP_LAMPORTS")
	setUint64(&cfg.Jito.MaxTipLamports, "HFT_JITO_MAX_TIP_LAMPORTS")
	setDuration(&cfg.Jito.SubmitTimeout, "HFT_JITO_SUBMIT_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "HFT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HFT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HFT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HFT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HFT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HFT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "HFT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "HFT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "HFT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "HFT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "HFT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "HFT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "HFT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "HFT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HFT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "HFT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "HFT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "HFT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "HFT_S3_REGION")
	setStr(&cfg.S3.Bucket, "HFT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "HFT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "HFT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "HFT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "HFT_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "HFT_S3_ARCHIVE_INTERVAL")

	// ── Mempool ──
	setStr(&cfg.Mempool.Commitment, "HFT_MEMPOOL_COMMITMENT")
	setInt(&cfg.Mempool.BufferSize, "HFT_MEMPOOL_BUFFER_SIZE")
	setInt(&cfg.Mempool.MaxTxBytes, "HFT_MEMPOOL_MAX_TX_BYTES")

	// ── Strategy ──
	setStringSlice(&cfg.Strategy.Active, "HFT_STRATEGY_ACTIVE")
	setBool(&cfg.Strategy.Arbitrage.Enabled, "HFT_STRATEGY_ARBITRAGE_ENABLED")
	setBool(&cfg.Strategy.Sandwich.Enabled, "HFT_STRATEGY_SANDWICH_ENABLED")
	setBool(&cfg.Strategy.Sniper.Enabled, "HFT_STRATEGY_SNIPER_ENABLED")
	setBool(&cfg.Strategy.JupiterArb.Enabled, "HFT_STRATEGY_JUPITER_ARB_ENABLED")
	setBool(&cfg.Strategy.Liquidation.Enabled, "HFT_STRATEGY_LIQUIDATION_ENABLED")
	setFloat64(&cfg.Strategy.SizeSOL, "HFT_STRATEGY_SIZE_SOL")
	setFloat64(&cfg.Strategy.StopLossPct, "HFT_STRATEGY_STOP_LOSS_PCT")
	setFloat64(&cfg.Strategy.TakeProfitPct, "HFT_STRATEGY_TAKE_PROFIT_PCT")
	setDuration(&cfg.Strategy.MaxHold, "HFT_STRATEGY_MAX_HOLD")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxPositionSizeSOL, "HFT_RISK_MAX_POSITION_SIZE_SOL")
	setFloat64(&cfg.Risk.MaxDailyLossSOL, "HFT_RISK_MAX_DAILY_LOSS_SOL")
	setFloat64(&cfg.Risk.MaxSlippageBps, "HFT_RISK_MAX_SLIPPAGE_BPS")
	setFloat64(&cfg.Risk.MinLiquiditySOL, "HFT_RISK_MIN_LIQUIDITY_SOL")
	setInt(&cfg.Risk.MaxConcurrentPositions, "HFT_RISK_MAX_CONCURRENT_POSITIONS")
	setFloat64(&cfg.Risk.MinProfitBps, "HFT_RISK_MIN_PROFIT_BPS")
	setInt(&cfg.Risk.MaxConsecutiveFailures, "HFT_RISK_MAX_CONSECUTIVE_FAILURES")

	// ── Cerberus ──
	setDuration(&cfg.Cerberus.TickInterval, "HFT_CERBERUS_TICK_INTERVAL")
	setDuration(&cfg.Cerberus.PriceTimeout, "HFT_CERBERUS_PRICE_TIMEOUT")
	setDuration(&cfg.Cerberus.ExitRetryTimeout, "HFT_CERBERUS_EXIT_RETRY_TIMEOUT")
	setDuration(&cfg.Cerberus.MaxMarketAge, "HFT_CERBERUS_MAX_MARKET_AGE")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "HFT_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "HFT_METRICS_ADDR")

	// ── Top-level ──
	setStr(&cfg.Mode, "HFT_MODE")
	setStr(&cfg.LogLevel, "HFT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
