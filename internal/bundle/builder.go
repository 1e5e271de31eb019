package bundle

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/SynergiaOS/solana-hft-ninja/internal/crypto"
	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// tipFraction is the share of expected profit offered as the tip.
const tipFraction = 0.5

// BuilderConfig holds the tip policy.
type BuilderConfig struct {
	TipAccount     string
	MinTipLamports uint64
	MaxTipLamports uint64
}

// Builder assembles signed bundles from opportunities using the pre-compiled
// templates.
type Builder struct {
	wallet    *crypto.Wallet
	templates *TemplateSet
	cfg       BuilderConfig
}

// NewBuilder creates a Builder signing with the given wallet.
func NewBuilder(wallet *crypto.Wallet, templates *TemplateSet, cfg BuilderConfig) *Builder {
	return &Builder{
		wallet:    wallet,
		templates: templates,
		cfg:       cfg,
	}
}

// TipForProfit sizes the tip as a share of expected profit, clamped to the
// configured band.
func (b *Builder) TipForProfit(expectedProfitSOL float64) uint64 {
	tip := uint64(expectedProfitSOL * tipFraction * 1e9)
	if tip < b.cfg.MinTipLamports {
		tip = b.cfg.MinTipLamports
	}
	if b.cfg.MaxTipLamports > 0 && tip > b.cfg.MaxTipLamports {
		tip = b.cfg.MaxTipLamports
	}
	return tip
}

// Build assembles one signed transaction for the opportunity plus the tip
// transfer, wrapped in a bundle valid until validUntil.
func (b *Builder) Build(opp domain.Opportunity, blockhash string, targetSlot uint64, validUntil time.Time) (domain.Bundle, error) {
	tmpl, err := b.templates.Get(opp.Strategy)
	if err != nil {
		return domain.Bundle{}, err
	}

	tip := b.TipForProfit(opp.ExpectedProfitSOL)

	amountIn := uint64(opp.RequiredCapitalSOL * 1e9)
	// Grant the pool the opportunity's slippage allowance on the output leg.
	minOut := amountIn - uint64(float64(amountIn)*opp.MaxSlippageBps/10_000)

	tx, err := b.buildTransaction(tmpl, opp, blockhash, amountIn, minOut, tip)
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("bundle: build %s: %w", opp.ID, err)
	}

	return domain.Bundle{
		ID:           uuid.New().String(),
		Strategy:     opp.Strategy,
		Asset:        opp.Asset,
		Transactions: [][]byte{tx},
		TipLamports:  tip,
		TargetSlot:   targetSlot,
		ValidUntil:   validUntil,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// buildTransaction serializes and signs a legacy-format transaction carrying
// the compute budget, action, and tip instructions.
func (b *Builder) buildTransaction(tmpl Template, opp domain.Opportunity, blockhash string, amountIn, minOut, tip uint64) ([]byte, error) {
	payer := b.wallet.PublicKeyBytes()

	programKey, err := base58.Decode(tmpl.Program)
	if err != nil {
		return nil, fmt.Errorf("template program: %w", err)
	}
	assetKey, err := base58.Decode(opp.Asset)
	if err != nil {
		// Synthetic assets (pairs without a resolvable mint) ride on the
		// payer key; the venue program derives the real accounts.
		assetKey = payer
	}
	tipKey, err := base58.Decode(b.cfg.TipAccount)
	if err != nil {
		return nil, fmt.Errorf("tip account: %w", err)
	}
	systemKey, err := base58.Decode(systemProgram)
	if err != nil {
		return nil, fmt.Errorf("system program: %w", err)
	}
	budgetKey, err := base58.Decode(computeBudgetProgram)
	if err != nil {
		return nil, fmt.Errorf("compute budget program: %w", err)
	}
	hash, err := base58.Decode(blockhash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("bad blockhash %q", blockhash)
	}

	// Account table: payer (writable signer), asset and tip (writable),
	// then the readonly programs.
	accounts := [][]byte{payer, assetKey, tipKey, budgetKey, systemKey, programKey}

	var msg []byte
	// Header: 1 signer, 0 readonly signed, 3 readonly unsigned.
	msg = append(msg, 1, 0, 3)
	msg = appendCompactU16(msg, uint16(len(accounts)))
	for _, key := range accounts {
		msg = append(msg, key...)
	}
	msg = append(msg, hash...)

	// Instructions: compute unit limit, action, tip transfer.
	type ins struct {
		program  byte
		accounts []byte
		data     []byte
	}
	computeData := append([]byte{2}, binary.LittleEndian.AppendUint32(nil, tmpl.ComputeUnitLimit)...)
	tipData := append([]byte{2, 0, 0, 0}, binary.LittleEndian.AppendUint64(nil, tip)...)
	instructions := []ins{
		{program: 3, data: computeData},
		{program: 5, accounts: []byte{0, 1}, data: tmpl.actionData(amountIn, minOut)},
		{program: 4, accounts: []byte{0, 2}, data: tipData},
	}

	msg = appendCompactU16(msg, uint16(len(instructions)))
	for _, in := range instructions {
		msg = append(msg, in.program)
		msg = appendCompactU16(msg, uint16(len(in.accounts)))
		msg = append(msg, in.accounts...)
		msg = appendCompactU16(msg, uint16(len(in.data)))
		msg = append(msg, in.data...)
	}

	sig := b.wallet.Sign(msg)

	tx := make([]byte, 0, 1+len(sig)+len(msg))
	tx = appendCompactU16(tx, 1)
	tx = append(tx, sig...)
	tx = append(tx, msg...)
	return tx, nil
}

// appendCompactU16 appends the Solana shortvec length encoding.
func appendCompactU16(buf []byte, v uint16) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
