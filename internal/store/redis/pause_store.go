package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	redisv9 "github.com/redis/go-redis/v9"
)

const (
	pausedKey       = "trading:paused"
	pausedReasonKey = "trading:paused:reason"
)

// PauseStore mirrors the trading pause flag in Redis so Guardian and monitor
// processes observe the same state. The flag never expires; trading resumes
// only on an explicit operator command.
type PauseStore struct {
	rdb *redisv9.Client
}

// NewPauseStore creates a PauseStore backed by the given driver client.
func NewPauseStore(rdb *redisv9.Client) *PauseStore {
	return &PauseStore{rdb: rdb}
}

// SetPaused writes the pause flag and its reason.
func (s *PauseStore) SetPaused(ctx context.Context, paused bool, reason string) error {
	val := "0"
	if paused {
		val = "1"
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, pausedKey, val, 0)
	pipe.Set(ctx, pausedReasonKey, reason, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: set paused: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Paused reads the pause flag. A missing key means trading is not paused.
func (s *PauseStore) Paused(ctx context.Context) (bool, error) {
	val, err := s.rdb.Get(ctx, pausedKey).Result()
	if err != nil {
		if errors.Is(err, redisv9.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("store: get paused: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return val == "1", nil
}

// Compile-time interface check.
var _ domain.PauseStore = (*PauseStore)(nil)
