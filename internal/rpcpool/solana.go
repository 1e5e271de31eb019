package rpcpool

import (
	"context"
	"encoding/json"
	"fmt"
)

// LatestBlockhash is the subset of getLatestBlockhash we need for building
// transactions.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// GetLatestBlockhash fetches a recent blockhash at the given commitment.
func (p *Pool) GetLatestBlockhash(ctx context.Context, commitment string) (LatestBlockhash, error) {
	params := []any{map[string]string{"commitment": commitment}}
	raw, err := p.Call(ctx, "getLatestBlockhash", params)
	if err != nil {
		return LatestBlockhash{}, err
	}
	var result struct {
		Value LatestBlockhash `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return LatestBlockhash{}, fmt.Errorf("rpcpool: decode blockhash: %w", err)
	}
	return result.Value, nil
}

// GetSlot returns the current slot at the given commitment.
func (p *Pool) GetSlot(ctx context.Context, commitment string) (uint64, error) {
	params := []any{map[string]string{"commitment": commitment}}
	raw, err := p.Call(ctx, "getSlot", params)
	if err != nil {
		return 0, err
	}
	var slot uint64
	if err := json.Unmarshal(raw, &slot); err != nil {
		return 0, fmt.Errorf("rpcpool: decode slot: %w", err)
	}
	return slot, nil
}

// GetBalance returns the lamport balance of the given account.
func (p *Pool) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	raw, err := p.Call(ctx, "getBalance", []any{pubkey})
	if err != nil {
		return 0, err
	}
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("rpcpool: decode balance: %w", err)
	}
	return result.Value, nil
}
