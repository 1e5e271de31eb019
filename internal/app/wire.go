package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/SynergiaOS/solana-hft-ninja/internal/blob/s3"
	cacheredis "github.com/SynergiaOS/solana-hft-ninja/internal/cache/redis"
	"github.com/SynergiaOS/solana-hft-ninja/internal/config"
	"github.com/SynergiaOS/solana-hft-ninja/internal/crypto"
	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
	"github.com/SynergiaOS/solana-hft-ninja/internal/rpcpool"
	storepostgres "github.com/SynergiaOS/solana-hft-ninja/internal/store/postgres"
	storeredis "github.com/SynergiaOS/solana-hft-ninja/internal/store/redis"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	Metrics *metrics.Metrics
	Wallet  *crypto.Wallet
	RPC     *rpcpool.Pool

	// Stores
	PositionStore domain.PositionStore
	PauseStore    domain.PauseStore
	FillStore     domain.FillStore
	AuditStore    domain.AuditStore

	// Caches / coordination
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver
}

// needsWallet returns true for modes that sign and submit bundles.
func needsWallet(mode string) bool {
	switch mode {
	case "trade", "cerberus":
		return true
	default:
		return false
	}
}

// needsPostgres returns true for modes that journal fills and audit events.
func needsPostgres(mode string) bool {
	return needsWallet(mode)
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
	}

	// --- Wallet (only for modes that submit) ---
	if needsWallet(cfg.Mode) {
		wallet, err := crypto.LoadWallet(cfg.Wallet.KeypairPath, cfg.Wallet.PrivateKey)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Wallet = wallet
	}

	// --- RPC provider pool ---
	deps.RPC = rpcpool.New(rpcpool.Config{
		PrimaryURL:     cfg.RPC.PrimaryURL,
		FallbackURLs:   cfg.RPC.FallbackURLs,
		RequestTimeout: cfg.RPC.RequestTimeout.Duration,
		HealthInterval: cfg.RPC.HealthInterval.Duration,
		FailureWindow:  cfg.RPC.FailureWindow.Duration,
		MaxFailures:    cfg.RPC.MaxFailures,
	}, slog.Default())

	// --- Redis ---
	redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = cacheredis.NewPriceCache(redisClient)
	deps.RateLimiter = cacheredis.NewRateLimiter(redisClient)
	deps.LockManager = cacheredis.NewLockManager(redisClient)
	deps.SignalBus = cacheredis.NewSignalBus(redisClient)
	deps.PositionStore = storeredis.NewPositionStore(redisClient.Underlying())
	deps.PauseStore = storeredis.NewPauseStore(redisClient.Underlying())

	// --- PostgreSQL journal (only for modes that persist fills) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := storepostgres.New(ctx, storepostgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.FillStore = storepostgres.NewFillStore(pool)
		deps.AuditStore = storepostgres.NewAuditStore(pool)
	}

	// --- S3 archiver (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.FillStore != nil && deps.AuditStore != nil {
			interval := cfg.S3.ArchiveInterval.Duration
			if interval <= 0 {
				interval = 15 * time.Minute
			}
			deps.Archiver = s3blob.NewArchiver(
				deps.BlobWriter,
				deps.FillStore,
				deps.AuditStore,
				interval,
				slog.Default(),
			)
		}
	}

	return deps, cleanup, nil
}
