// Package strategy evaluates mempool candidates and proposes opportunities.
package strategy

import (
	"context"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// Strategy defines the contract for trading strategies. Evaluate returns nil
// when the candidate is not actionable; a non-nil opportunity is handed to
// the risk gate.
type Strategy interface {
	Name() string
	Init(ctx context.Context) error
	Evaluate(ctx context.Context, cand domain.Candidate) (*domain.Opportunity, error)
	Close() error
}

// lamportsPerSOL converts between the wire unit and SOL.
const lamportsPerSOL = 1_000_000_000

func lamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / lamportsPerSOL
}

// impliedSlippageBps estimates the slippage tolerance a swap grants its pool,
// from the gap between the input amount and the minimum acceptable output.
// Both legs are assumed to be quoted in comparable units; this is a heuristic
// filter, not an exact quote.
func impliedSlippageBps(amountIn, minAmountOut uint64) float64 {
	if amountIn == 0 || minAmountOut >= amountIn {
		return 0
	}
	return float64(amountIn-minAmountOut) / float64(amountIn) * 10_000
}
