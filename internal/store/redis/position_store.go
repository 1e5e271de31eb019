// Package redis implements the position and pause stores on Redis, keeping
// the hot trading state in memory-speed storage shared across processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	redisv9 "github.com/redis/go-redis/v9"
)

const (
	// activeSetKey indexes the assets with an open or exit-pending position.
	activeSetKey = "active_positions"

	// closedRetention keeps the final record of a closed position around for
	// post-trade inspection.
	closedRetention = 7 * 24 * time.Hour
)

// createLua stores a position only when the asset is not already in the
// active set. SET and SADD happen atomically so a concurrent entry attempt
// for the same asset cannot slip through.
const createLua = `
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
    return 0
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`

// PositionStore implements domain.PositionStore on Redis. Each position lives
// at "position:{asset}" as a JSON document, with an "active_positions" set as
// the per-tick iteration index.
type PositionStore struct {
	rdb      *redisv9.Client
	createSc *redisv9.Script
}

// NewPositionStore creates a PositionStore backed by the given driver client.
func NewPositionStore(rdb *redisv9.Client) *PositionStore {
	return &PositionStore{
		rdb:      rdb,
		createSc: redisv9.NewScript(createLua),
	}
}

func positionKey(asset string) string {
	return "position:" + asset
}

func closedKey(asset string) string {
	return "position:closed:" + asset
}

// Create stores a new position. It returns domain.ErrAlreadyExists when an
// active position for the same asset is present.
func (ps *PositionStore) Create(ctx context.Context, pos domain.Position) error {
	payload, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("store: marshal position %s: %w", pos.Asset, err)
	}

	created, err := ps.createSc.Run(
		ctx,
		ps.rdb,
		[]string{positionKey(pos.Asset), activeSetKey},
		pos.Asset,
		payload,
	).Int64()
	if err != nil {
		return fmt.Errorf("store: create position %s: %w: %v", pos.Asset, domain.ErrStoreUnavailable, err)
	}
	if created == 0 {
		return fmt.Errorf("store: position %s: %w", pos.Asset, domain.ErrAlreadyExists)
	}
	return nil
}

// Update overwrites the stored position document.
func (ps *PositionStore) Update(ctx context.Context, pos domain.Position) error {
	payload, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("store: marshal position %s: %w", pos.Asset, err)
	}
	if err := ps.rdb.Set(ctx, positionKey(pos.Asset), payload, 0).Err(); err != nil {
		return fmt.Errorf("store: update position %s: %w: %v", pos.Asset, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get retrieves a position by asset. It returns domain.ErrNotFound when no
// active position exists for the asset.
func (ps *PositionStore) Get(ctx context.Context, asset string) (domain.Position, error) {
	raw, err := ps.rdb.Get(ctx, positionKey(asset)).Bytes()
	if err != nil {
		if errors.Is(err, redisv9.Nil) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("store: get position %s: %w: %v", asset, domain.ErrStoreUnavailable, err)
	}

	var pos domain.Position
	if err := json.Unmarshal(raw, &pos); err != nil {
		return domain.Position{}, fmt.Errorf("store: decode position %s: %w", asset, err)
	}
	return pos, nil
}

// applyStatus returns the position after a status transition. The first
// transition into exit-pending stamps ExitRequestedAt; later transitions
// keep the original timestamp.
func applyStatus(pos domain.Position, status domain.PositionStatus, reason string, now time.Time) domain.Position {
	pos.Status = status
	if reason != "" {
		pos.ExitReason = reason
	}
	if status == domain.PositionStatusExitPending && pos.ExitRequestedAt == nil {
		at := now
		pos.ExitRequestedAt = &at
	}
	pos.UpdatedAt = now
	return pos
}

// SetStatus transitions a position's status and records the reason.
func (ps *PositionStore) SetStatus(ctx context.Context, asset string, status domain.PositionStatus, reason string) error {
	pos, err := ps.Get(ctx, asset)
	if err != nil {
		return err
	}
	return ps.Update(ctx, applyStatus(pos, status, reason, time.Now().UTC()))
}

// Close marks the position closed, removes it from the active index, and
// retains the final record for a week.
func (ps *PositionStore) Close(ctx context.Context, asset, reason string, exitPrice float64) error {
	pos, err := ps.Get(ctx, asset)
	if err != nil {
		return err
	}

	pos.Status = domain.PositionStatusClosed
	pos.ExitReason = reason
	pos.CurrentPrice = exitPrice
	if pos.EntryPrice > 0 {
		pos.UnrealizedPnLPct = pos.PnLPct(exitPrice)
	}
	pos.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("store: marshal position %s: %w", asset, err)
	}

	pipe := ps.rdb.TxPipeline()
	pipe.SRem(ctx, activeSetKey, asset)
	pipe.Set(ctx, closedKey(asset), payload, closedRetention)
	pipe.Del(ctx, positionKey(asset))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: close position %s: %w: %v", asset, domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListActive returns every open or exit-pending position.
func (ps *PositionStore) ListActive(ctx context.Context) ([]domain.Position, error) {
	assets, err := ps.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list active: %w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(assets) == 0 {
		return nil, nil
	}

	keys := make([]string, len(assets))
	for i, a := range assets {
		keys[i] = positionKey(a)
	}
	raws, err := ps.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list active: %w: %v", domain.ErrStoreUnavailable, err)
	}

	return decodeActive(assets, raws), nil
}

// decodeActive turns MGET results into positions, dropping index entries
// without a document and documents that fail to decode. One corrupt record
// must not block the guard loop from seeing the other positions.
func decodeActive(assets []string, raws []interface{}) []domain.Position {
	positions := make([]domain.Position, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var pos domain.Position
		if err := json.Unmarshal([]byte(s), &pos); err != nil {
			slog.Warn("skipping undecodable position",
				slog.String("asset", assets[i]),
				slog.String("error", err.Error()))
			continue
		}
		positions = append(positions, pos)
	}
	return positions
}

// CountActive returns the size of the active index.
func (ps *PositionStore) CountActive(ctx context.Context) (int, error) {
	n, err := ps.rdb.SCard(ctx, activeSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("store: count active: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
