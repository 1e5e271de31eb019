package domain

import "time"

// DexProtocol identifies the on-chain program a transaction interacts with.
type DexProtocol string

const (
	DexRaydiumAMM    DexProtocol = "raydium_amm"
	DexOrcaWhirlpool DexProtocol = "orca_whirlpool"
	DexPumpFun       DexProtocol = "pump_fun"
	DexJupiterV6     DexProtocol = "jupiter_v6"
	DexSolendLending DexProtocol = "solend"
	DexUnknown       DexProtocol = "unknown"
)

// CandidateKind classifies what a pending transaction is doing.
type CandidateKind string

const (
	CandidateSwap         CandidateKind = "swap"
	CandidatePoolCreation CandidateKind = "pool_creation"
	CandidateLiquidityAdd CandidateKind = "liquidity_add"
	CandidateLiquidation  CandidateKind = "liquidation"
)

// Candidate is a decoded pending transaction emitted by the mempool watcher.
// It is ephemeral: created per mempool event, scored by the strategies, and
// discarded. Fields are copied out of the parse buffer before emission, so a
// Candidate never aliases watcher-owned memory.
type Candidate struct {
	Signature string
	Slot      uint64
	Program   DexProtocol
	Kind      CandidateKind

	// Accounts referenced by the recognized instruction, base58-encoded.
	Accounts []string

	// Swap fields.
	BaseMint     string
	QuoteMint    string
	AmountIn     uint64 // lamports of the input token
	MinAmountOut uint64
	SlippageBps  uint64

	// Pool-creation fields.
	PoolAddress              string
	InitialLiquidityLamports uint64

	// Liquidation fields.
	CollateralMint string
	DebtMint       string
	HealthFactor   float64

	ObservedAt time.Time
}

// WrappedSOLMint is the SPL mint address of wrapped SOL.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// Pair returns the "base/quote" identifier used by arbitrage bookkeeping.
// Swap instructions on Raydium and Whirlpool reference token vaults rather
// than mints, so when neither mint is known the pool address stands in as
// the pair identity.
func (c Candidate) Pair() string {
	if c.BaseMint == "" && c.QuoteMint == "" {
		return c.PoolAddress
	}
	return c.BaseMint + "/" + c.QuoteMint
}

// Asset returns the identifier positions are keyed by: the base mint when
// the instruction carries it, otherwise the pool address.
func (c Candidate) Asset() string {
	if c.BaseMint != "" {
		return c.BaseMint
	}
	return c.PoolAddress
}

// Age reports how long ago the candidate was observed.
func (c Candidate) Age(now time.Time) time.Duration {
	return now.Sub(c.ObservedAt)
}
