// Package bundle builds and submits Jito bundles: pre-compiled transaction
// templates, tip sizing, and the block-engine submission client.
package bundle

import (
	"encoding/binary"
	"fmt"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// Well-known program IDs referenced by the templates.
const (
	systemProgram        = "11111111111111111111111111111111"
	computeBudgetProgram = "ComputeBudget111111111111111111111111111111"
)

// Template is a pre-compiled instruction skeleton for one strategy variant.
// The static parts (program, discriminator, compute budget) are fixed at
// startup; per-opportunity fields are spliced in at build time so the hot
// path does no layout work.
type Template struct {
	Strategy domain.StrategyKind
	// Program is the venue program invoked by the action instruction.
	Program string
	// Discriminator prefixes the action instruction data.
	Discriminator []byte
	// ComputeUnitLimit requested for the transaction.
	ComputeUnitLimit uint32
}

// TemplateSet holds one template per strategy, compiled once at startup.
type TemplateSet struct {
	templates map[domain.StrategyKind]Template
}

// NewTemplateSet compiles the default templates.
func NewTemplateSet() *TemplateSet {
	ts := &TemplateSet{templates: make(map[domain.StrategyKind]Template)}
	for _, t := range []Template{
		{
			Strategy:         domain.StrategyArbitrage,
			Program:          "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
			Discriminator:    []byte{9},
			ComputeUnitLimit: 400_000,
		},
		{
			Strategy:         domain.StrategySandwich,
			Program:          "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
			Discriminator:    []byte{9},
			ComputeUnitLimit: 600_000,
		},
		{
			Strategy:         domain.StrategySniper,
			Program:          "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
			Discriminator:    []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea},
			ComputeUnitLimit: 300_000,
		},
		{
			Strategy:         domain.StrategyJupiterArb,
			Program:          "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4",
			Discriminator:    []byte{0xe5, 0x17, 0xcb, 0x97, 0x7a, 0xe3, 0xad, 0x2a},
			ComputeUnitLimit: 800_000,
		},
		{
			Strategy:         domain.StrategyLiquidation,
			Program:          "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo",
			Discriminator:    []byte{12},
			ComputeUnitLimit: 500_000,
		},
	} {
		ts.templates[t.Strategy] = t
	}
	return ts
}

// Get returns the template for a strategy.
func (ts *TemplateSet) Get(strategy domain.StrategyKind) (Template, error) {
	t, ok := ts.templates[strategy]
	if !ok {
		return Template{}, fmt.Errorf("bundle: no template for strategy %s", strategy)
	}
	return t, nil
}

// actionData builds the action instruction data from a template: the
// discriminator followed by the input amount and minimum output in lamports.
func (t Template) actionData(amountIn, minAmountOut uint64) []byte {
	data := make([]byte, 0, len(t.Discriminator)+16)
	data = append(data, t.Discriminator...)
	data = binary.LittleEndian.AppendUint64(data, amountIn)
	data = binary.LittleEndian.AppendUint64(data, minAmountOut)
	return data
}
