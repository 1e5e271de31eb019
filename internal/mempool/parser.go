package mempool

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"
)

// DecodeError reports a transaction that could not be decoded. Malformed
// transactions are counted and dropped, never propagated as pipeline
// failures.
type DecodeError struct {
	Signature string
	Reason    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Signature, e.Reason)
}

// Instruction is one decoded instruction with its resolved program ID.
type Instruction struct {
	ProgramID string
	// Accounts are indexes into ParsedTx.Accounts.
	Accounts []byte
	Data     []byte
}

// ParsedTx is the subset of a wire transaction the classifier needs.
type ParsedTx struct {
	Signature    string
	Slot         uint64
	FeePayer     string
	Accounts     []string
	Instructions []Instruction
}

// Parser decodes base64 wire transactions. Scratch buffers are pooled so the
// hot path performs a single allocation-free base64 decode per transaction.
type Parser struct {
	bufPool sync.Pool
	maxSize int
}

// NewParser creates a Parser that rejects transactions larger than maxTxBytes.
func NewParser(maxTxBytes int) *Parser {
	if maxTxBytes <= 0 {
		maxTxBytes = 1646 // larger than any packet the cluster accepts
	}
	p := &Parser{maxSize: maxTxBytes}
	p.bufPool.New = func() any {
		buf := make([]byte, maxTxBytes)
		return &buf
	}
	return p
}

// Parse decodes a raw transaction into its account keys and instructions.
// Versioned (v0) messages are supported; address table lookups are ignored,
// so only statically listed accounts are resolved.
func (p *Parser) Parse(raw RawTransaction) (ParsedTx, error) {
	bufPtr := p.bufPool.Get().(*[]byte)
	defer p.bufPool.Put(bufPtr)
	buf := *bufPtr

	need := base64.StdEncoding.DecodedLen(len(raw.Base64))
	if need > len(buf) {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "transaction exceeds size limit"}
	}
	n, err := base64.StdEncoding.Decode(buf, []byte(raw.Base64))
	if err != nil {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "invalid base64"}
	}
	data := buf[:n]

	r := reader{data: data}

	// Signatures prefix the message.
	sigCount, ok := r.compactU16()
	if !ok {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated signature count"}
	}
	if !r.skip(int(sigCount) * 64) {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated signatures"}
	}

	// Message: an optional version prefix, then the legacy layout.
	prefix, ok := r.byte()
	if !ok {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "empty message"}
	}
	if prefix&0x80 != 0 {
		version := prefix & 0x7f
		if version != 0 {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: fmt.Sprintf("unsupported message version %d", version)}
		}
		// v0: the header starts at the next byte.
		if _, ok = r.byte(); !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated header"}
		}
	}
	// Remaining two header bytes (readonly signed / readonly unsigned).
	if !r.skip(2) {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated header"}
	}

	keyCount, ok := r.compactU16()
	if !ok {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated account count"}
	}
	accounts := make([]string, 0, keyCount)
	for i := 0; i < int(keyCount); i++ {
		key, ok := r.bytes(32)
		if !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated account keys"}
		}
		accounts = append(accounts, base58.Encode(key))
	}

	// Recent blockhash.
	if !r.skip(32) {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated blockhash"}
	}

	insCount, ok := r.compactU16()
	if !ok {
		return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated instruction count"}
	}
	instructions := make([]Instruction, 0, insCount)
	for i := 0; i < int(insCount); i++ {
		progIdx, ok := r.byte()
		if !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated program index"}
		}
		if int(progIdx) >= len(accounts) {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "program index out of range"}
		}

		accCount, ok := r.compactU16()
		if !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated instruction accounts"}
		}
		accIdx, ok := r.bytes(int(accCount))
		if !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated instruction accounts"}
		}

		dataLen, ok := r.compactU16()
		if !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated instruction data"}
		}
		insData, ok := r.bytes(int(dataLen))
		if !ok {
			return ParsedTx{}, &DecodeError{Signature: raw.Signature, Reason: "truncated instruction data"}
		}

		// Copy out of the pooled buffer.
		instructions = append(instructions, Instruction{
			ProgramID: accounts[progIdx],
			Accounts:  append([]byte(nil), accIdx...),
			Data:      append([]byte(nil), insData...),
		})
	}

	var feePayer string
	if len(accounts) > 0 {
		feePayer = accounts[0]
	}

	return ParsedTx{
		Signature:    raw.Signature,
		Slot:         raw.Slot,
		FeePayer:     feePayer,
		Accounts:     accounts,
		Instructions: instructions,
	}, nil
}

// reader is a bounds-checked cursor over the decode buffer.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *reader) bytes(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, false
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *reader) skip(n int) bool {
	if n < 0 || r.pos+n > len(r.data) {
		return false
	}
	r.pos += n
	return true
}

// compactU16 decodes the Solana shortvec length encoding: up to three bytes,
// seven bits per byte, little-endian.
func (r *reader) compactU16() (uint16, bool) {
	var out uint16
	for i := 0; i < 3; i++ {
		b, ok := r.byte()
		if !ok {
			return 0, false
		}
		out |= uint16(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return out, true
		}
	}
	return 0, false
}
