package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
)

func newTestKeypair(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return priv
}

func TestLoadWalletFromFile(t *testing.T) {
	priv := newTestKeypair(t)

	raw, err := json.Marshal([]byte(priv))
	if err != nil {
		t.Fatalf("marshal keypair: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write keypair file: %v", err)
	}

	w, err := LoadWallet(path, "")
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}

	msg := []byte("test message")
	sig := w.Sign(msg)
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), msg, sig) {
		t.Fatal("signature did not verify against the source keypair")
	}
}

func TestLoadWalletFromBase58(t *testing.T) {
	priv := newTestKeypair(t)

	w, err := LoadWallet("", base58.Encode(priv))
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}

	wantPub := base58.Encode(priv.Public().(ed25519.PublicKey))
	if got := w.PublicKey(); got != wantPub {
		t.Fatalf("PublicKey() = %s, want %s", got, wantPub)
	}
}

func TestLoadWalletErrors(t *testing.T) {
	tests := []struct {
		name        string
		keypairPath string
		privateKey  string
	}{
		{name: "neither source"},
		{name: "both sources", keypairPath: "/tmp/id.json", privateKey: "abc"},
		{name: "bad base58", privateKey: "0OIl"},
		{name: "wrong length", privateKey: base58.Encode([]byte{1, 2, 3})},
		{name: "missing file", keypairPath: "/nonexistent/id.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadWallet(tt.keypairPath, tt.privateKey); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
