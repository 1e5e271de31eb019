package domain

import (
	"context"
	"io"
	"time"
)

// PositionStore persists positions keyed by asset, with a separate index of
// active assets for fast per-tick iteration. Writes must be visible to the
// next decision-loop tick.
type PositionStore interface {
	// Create stores a new position. It returns ErrAlreadyExists when an
	// active position for the same asset is present.
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	Get(ctx context.Context, asset string) (Position, error)
	// SetStatus transitions a position's status and records the reason.
	SetStatus(ctx context.Context, asset string, status PositionStatus, reason string) error
	// Close marks the position closed and removes it from the active index.
	Close(ctx context.Context, asset, reason string, exitPrice float64) error
	// ListActive returns every Open or ExitPending position.
	ListActive(ctx context.Context) ([]Position, error)
	CountActive(ctx context.Context) (int, error)
}

// PauseStore mirrors the trading pause flag so external processes (Guardian)
// can observe it.
type PauseStore interface {
	SetPaused(ctx context.Context, paused bool, reason string) error
	Paused(ctx context.Context) (bool, error)
}

// Fill is one executed entry or exit, journaled for PnL accounting.
type Fill struct {
	ID             string
	Asset          string
	Strategy       StrategyKind
	Side           string // "entry" or "exit"
	Price          float64
	SizeSOL        float64
	RealizedPnLSOL float64 // set on exit fills
	BundleID       string
	Reason         string
	CreatedAt      time.Time
}

// FillStore persists the fill journal. The daily-loss risk check is a query
// over realized PnL since local midnight.
type FillStore interface {
	Insert(ctx context.Context, fill Fill) error
	SumRealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]Fill, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of admissions, rejections,
// breaker trips, and guardian commands.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	ListSince(ctx context.Context, since time.Time, limit int) ([]AuditEntry, error)
}

// PriceCache caches the latest observed price per asset.
type PriceCache interface {
	SetPrice(ctx context.Context, asset string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, asset string) (float64, time.Time, error)
}

// PriceSource provides live market data for an asset. Implementations must
// honor the context deadline; Cerberus applies per-position timeouts.
type PriceSource interface {
	MarketData(ctx context.Context, asset string) (MarketData, error)
}

// SignalBus is pub/sub messaging for the inbound command channel.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads. It is closed when ctx is
	// cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// StreamMessage is one entry read from a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// RateLimiter throttles outbound requests against shared endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locks for per-asset entry serialization.
type LockManager interface {
	// Acquire returns an unlock function, or ErrLockHeld when the lock is
	// already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter writes archive objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
