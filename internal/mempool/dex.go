package mempool

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// Mainnet program IDs for the venues the engine understands.
const (
	RaydiumAMMProgram    = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	OrcaWhirlpoolProgram = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	PumpFunProgram       = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	JupiterV6Program     = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	SolendProgram        = "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"
)

// programRegistry maps program IDs to protocols. Transactions that touch no
// registered program are dropped before classification.
var programRegistry = map[string]domain.DexProtocol{
	RaydiumAMMProgram:    domain.DexRaydiumAMM,
	OrcaWhirlpoolProgram: domain.DexOrcaWhirlpool,
	PumpFunProgram:       domain.DexPumpFun,
	JupiterV6Program:     domain.DexJupiterV6,
	SolendProgram:        domain.DexSolendLending,
}

// Raydium AMM v4 single-byte instruction tags.
const (
	raydiumTagInitialize2 = 1
	raydiumTagDeposit     = 3
	raydiumTagSwapBaseIn  = 9
	raydiumTagSwapBaseOut = 11
)

// Solend single-byte instruction tags.
const solendTagLiquidateObligation = 12

// Anchor 8-byte instruction discriminators.
var (
	whirlpoolSwapDisc = []byte{0xf8, 0xc6, 0x9e, 0x91, 0xe1, 0x75, 0x87, 0xc8}
	pumpFunCreateDisc = []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	pumpFunBuyDisc    = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	pumpFunSellDisc   = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
	jupiterRouteDisc  = []byte{0xe5, 0x17, 0xcb, 0x97, 0x7a, 0xe3, 0xad, 0x2a}
)

// WatchedPrograms returns the program IDs the feed should subscribe to.
func WatchedPrograms() []string {
	out := make([]string, 0, len(programRegistry))
	for id := range programRegistry {
		out = append(out, id)
	}
	return out
}

// Classify inspects a parsed transaction and produces a candidate for the
// first recognized DEX instruction. The second return is false when no
// registered program or known instruction shape is present.
func Classify(tx ParsedTx, now time.Time) (domain.Candidate, bool) {
	for _, ins := range tx.Instructions {
		protocol, ok := programRegistry[ins.ProgramID]
		if !ok {
			continue
		}

		cand, ok := classifyInstruction(tx, ins, protocol)
		if !ok {
			continue
		}
		cand.Signature = tx.Signature
		cand.Slot = tx.Slot
		cand.Program = protocol
		cand.ObservedAt = now
		return cand, true
	}
	return domain.Candidate{}, false
}

func classifyInstruction(tx ParsedTx, ins Instruction, protocol domain.DexProtocol) (domain.Candidate, bool) {
	switch protocol {
	case domain.DexRaydiumAMM:
		return classifyRaydium(tx, ins)
	case domain.DexOrcaWhirlpool:
		return classifyWhirlpool(tx, ins)
	case domain.DexPumpFun:
		return classifyPumpFun(tx, ins)
	case domain.DexJupiterV6:
		return classifyJupiter(tx, ins)
	case domain.DexSolendLending:
		return classifySolend(tx, ins)
	}
	return domain.Candidate{}, false
}

func classifyRaydium(tx ParsedTx, ins Instruction) (domain.Candidate, bool) {
	if len(ins.Data) == 0 {
		return domain.Candidate{}, false
	}
	switch ins.Data[0] {
	case raydiumTagSwapBaseIn, raydiumTagSwapBaseOut:
		if len(ins.Data) < 17 {
			return domain.Candidate{}, false
		}
		return domain.Candidate{
			Kind:         domain.CandidateSwap,
			Accounts:     resolveAccounts(tx, ins),
			PoolAddress:  accountAt(tx, ins, 1),
			AmountIn:     binary.LittleEndian.Uint64(ins.Data[1:9]),
			MinAmountOut: binary.LittleEndian.Uint64(ins.Data[9:17]),
		}, true
	case raydiumTagInitialize2:
		// initialize2 account order: token program, associated token
		// program, system program, rent, amm, authority, open orders,
		// lp mint, coin mint, pc mint, ...
		cand := domain.Candidate{
			Kind:        domain.CandidatePoolCreation,
			Accounts:    resolveAccounts(tx, ins),
			PoolAddress: accountAt(tx, ins, 4),
			BaseMint:    accountAt(tx, ins, 8),
			QuoteMint:   accountAt(tx, ins, 9),
		}
		// initialize2 carries nonce u8, openTime u64, initPcAmount u64,
		// initCoinAmount u64.
		if len(ins.Data) >= 26 {
			cand.InitialLiquidityLamports = binary.LittleEndian.Uint64(ins.Data[10:18])
		}
		return cand, true
	case raydiumTagDeposit:
		return domain.Candidate{
			Kind:        domain.CandidateLiquidityAdd,
			Accounts:    resolveAccounts(tx, ins),
			PoolAddress: accountAt(tx, ins, 1),
		}, true
	}
	return domain.Candidate{}, false
}

func classifyWhirlpool(tx ParsedTx, ins Instruction) (domain.Candidate, bool) {
	if len(ins.Data) < 8 || !bytes.Equal(ins.Data[:8], whirlpoolSwapDisc) {
		return domain.Candidate{}, false
	}
	cand := domain.Candidate{
		Kind:        domain.CandidateSwap,
		Accounts:    resolveAccounts(tx, ins),
		PoolAddress: accountAt(tx, ins, 2),
	}
	// swap args: amount u64, otherAmountThreshold u64, ...
	if len(ins.Data) >= 24 {
		cand.AmountIn = binary.LittleEndian.Uint64(ins.Data[8:16])
		cand.MinAmountOut = binary.LittleEndian.Uint64(ins.Data[16:24])
	}
	return cand, true
}

func classifyPumpFun(tx ParsedTx, ins Instruction) (domain.Candidate, bool) {
	if len(ins.Data) < 8 {
		return domain.Candidate{}, false
	}
	disc := ins.Data[:8]
	switch {
	case bytes.Equal(disc, pumpFunCreateDisc):
		// Bonding-curve tokens always trade against SOL.
		return domain.Candidate{
			Kind:      domain.CandidatePoolCreation,
			Accounts:  resolveAccounts(tx, ins),
			BaseMint:  accountAt(tx, ins, 0),
			QuoteMint: domain.WrappedSOLMint,
		}, true
	case bytes.Equal(disc, pumpFunBuyDisc), bytes.Equal(disc, pumpFunSellDisc):
		cand := domain.Candidate{
			Kind:      domain.CandidateSwap,
			Accounts:  resolveAccounts(tx, ins),
			BaseMint:  accountAt(tx, ins, 2),
			QuoteMint: domain.WrappedSOLMint,
		}
		if len(ins.Data) >= 24 {
			cand.AmountIn = binary.LittleEndian.Uint64(ins.Data[8:16])
			cand.MinAmountOut = binary.LittleEndian.Uint64(ins.Data[16:24])
		}
		return cand, true
	}
	return domain.Candidate{}, false
}

func classifyJupiter(tx ParsedTx, ins Instruction) (domain.Candidate, bool) {
	if len(ins.Data) < 8 || !bytes.Equal(ins.Data[:8], jupiterRouteDisc) {
		return domain.Candidate{}, false
	}
	// The route account list varies with the selected hops, so neither
	// mints nor a single pool can be named here; downstream consumers
	// drop opportunities that end up without an asset identity.
	cand := domain.Candidate{
		Kind:     domain.CandidateSwap,
		Accounts: resolveAccounts(tx, ins),
	}
	// Route args end with in_amount u64, quoted_out_amount u64,
	// slippage_bps u16, platform_fee_bps u8.
	if n := len(ins.Data); n >= 8+19 {
		cand.AmountIn = binary.LittleEndian.Uint64(ins.Data[n-19 : n-11])
		cand.MinAmountOut = binary.LittleEndian.Uint64(ins.Data[n-11 : n-3])
		cand.SlippageBps = uint64(binary.LittleEndian.Uint16(ins.Data[n-3 : n-1]))
	}
	return cand, true
}

func classifySolend(tx ParsedTx, ins Instruction) (domain.Candidate, bool) {
	if len(ins.Data) == 0 || ins.Data[0] != solendTagLiquidateObligation {
		return domain.Candidate{}, false
	}
	return domain.Candidate{
		Kind:     domain.CandidateLiquidation,
		Accounts: resolveAccounts(tx, ins),
	}, true
}

func resolveAccounts(tx ParsedTx, ins Instruction) []string {
	out := make([]string, 0, len(ins.Accounts))
	for _, idx := range ins.Accounts {
		if int(idx) < len(tx.Accounts) {
			out = append(out, tx.Accounts[idx])
		}
	}
	return out
}

// accountAt returns the resolved account at position i of the instruction's
// account list, or "" when the transaction only lists it via address lookup.
func accountAt(tx ParsedTx, ins Instruction, i int) string {
	if i >= len(ins.Accounts) {
		return ""
	}
	idx := int(ins.Accounts[i])
	if idx >= len(tx.Accounts) {
		return ""
	}
	return tx.Accounts[idx]
}
