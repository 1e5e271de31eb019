// Package crypto provides ed25519 wallet loading and transaction signing.
package crypto

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
)

// Wallet holds an ed25519 keypair used to sign transactions.
type Wallet struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// LoadWallet loads a keypair either from a JSON keypair file (the 64-byte
// array format produced by solana-keygen) or from a base58-encoded private
// key string. Exactly one source must be provided.
func LoadWallet(keypairPath, privateKey string) (*Wallet, error) {
	switch {
	case keypairPath != "" && privateKey != "":
		return nil, fmt.Errorf("wallet: both keypair path and private key set, want one")
	case keypairPath != "":
		return loadKeypairFile(keypairPath)
	case privateKey != "":
		return loadBase58Key(privateKey)
	default:
		return nil, fmt.Errorf("wallet: no keypair path or private key configured")
	}
}

func loadKeypairFile(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read keypair file: %w", err)
	}

	var bytes []byte
	if err := json.Unmarshal(raw, &bytes); err != nil {
		return nil, fmt.Errorf("wallet: parse keypair file %s: %w", path, err)
	}
	return fromSeed64(bytes)
}

func loadBase58Key(key string) (*Wallet, error) {
	bytes, err := base58.Decode(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode private key: %w", err)
	}
	return fromSeed64(bytes)
}

func fromSeed64(b []byte) (*Wallet, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: keypair is %d bytes, want %d", len(b), ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(b)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("wallet: derive public key")
	}
	return &Wallet{priv: priv, pub: pub}, nil
}

// PublicKey returns the base58-encoded public key.
func (w *Wallet) PublicKey() string {
	return base58.Encode(w.pub)
}

// PublicKeyBytes returns the raw 32-byte public key.
func (w *Wallet) PublicKeyBytes() []byte {
	out := make([]byte, len(w.pub))
	copy(out, w.pub)
	return out
}

// Sign signs an arbitrary message, typically a serialized transaction body.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}
