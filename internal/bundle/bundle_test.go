package bundle

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"github.com/SynergiaOS/solana-hft-ninja/internal/crypto"
	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testWallet(t *testing.T) *crypto.Wallet {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	w, err := crypto.LoadWallet("", base58.Encode(priv))
	if err != nil {
		t.Fatalf("LoadWallet: %v", err)
	}
	return w
}

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(testWallet(t), NewTemplateSet(), BuilderConfig{
		TipAccount:     "96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
		MinTipLamports: 10_000,
		MaxTipLamports: 1_000_000,
	})
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:                 "opp1",
		Strategy:           domain.StrategySniper,
		Asset:              "So11111111111111111111111111111111111111112",
		ExpectedProfitSOL:  0.01,
		RequiredCapitalSOL: 0.5,
		MaxSlippageBps:     100,
	}
}

func TestTipClamping(t *testing.T) {
	b := testBuilder(t)

	tests := []struct {
		name   string
		profit float64
		want   uint64
	}{
		{name: "below floor", profit: 0.000001, want: 10_000},
		{name: "inside band", profit: 0.001, want: 500_000}, // half the expected profit
		{name: "above ceiling", profit: 10, want: 1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.TipForProfit(tt.profit); got != tt.want {
				t.Fatalf("TipForProfit(%f) = %d, want %d", tt.profit, got, tt.want)
			}
		})
	}
}

func TestBuildProducesSignedBundle(t *testing.T) {
	b := testBuilder(t)
	blockhash := base58.Encode(make([]byte, 32))

	bundle, err := b.Build(testOpportunity(), blockhash, 500, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if bundle.ID == "" {
		t.Fatal("bundle has no ID")
	}
	if len(bundle.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(bundle.Transactions))
	}
	if bundle.TipLamports < 10_000 {
		t.Fatalf("tip = %d, want >= floor", bundle.TipLamports)
	}

	// The transaction starts with one signature over the message body.
	tx := bundle.Transactions[0]
	if tx[0] != 1 {
		t.Fatalf("signature count = %d, want 1", tx[0])
	}
	sig, msg := tx[1:65], tx[65:]
	pub := ed25519.PublicKey(b.wallet.PublicKeyBytes())
	if !ed25519.Verify(pub, msg, sig) {
		t.Fatal("transaction signature does not verify")
	}

	// Distinct builds of the same opportunity produce distinct bundle IDs.
	again, err := b.Build(testOpportunity(), blockhash, 500, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if again.ID == bundle.ID {
		t.Fatal("rebuild reused the bundle ID")
	}
}

func TestBuildUnknownStrategy(t *testing.T) {
	b := testBuilder(t)
	opp := testOpportunity()
	opp.Strategy = domain.StrategyKind("unknown")
	if _, err := b.Build(opp, base58.Encode(make([]byte, 32)), 0, time.Time{}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func testSubmitter(endpoint string, timeout time.Duration) *Submitter {
	return NewSubmitter(SubmitterConfig{
		Endpoint:      endpoint,
		SubmitTimeout: timeout,
	}, nil, metrics.New(), discardLogger())
}

func testBundle(id string) domain.Bundle {
	return domain.Bundle{
		ID:           id,
		Strategy:     domain.StrategySniper,
		Transactions: [][]byte{{1, 2, 3}},
		TipLamports:  10_000,
		ValidUntil:   time.Now().Add(time.Minute),
	}
}

func TestSubmitAccepted(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req sendBundleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "sendBundle" {
			t.Errorf("method = %s, want sendBundle", req.Method)
		}
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "engine-bundle-1"})
	}))
	defer srv.Close()

	s := testSubmitter(srv.URL, 2*time.Second)
	res, err := s.Submit(context.Background(), testBundle("b1"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Accepted() {
		t.Fatalf("status = %s, want confirmed", res.Status)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestSubmitResubmitIsNoOp(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "x"})
	}))
	defer srv.Close()

	s := testSubmitter(srv.URL, 2*time.Second)
	b := testBundle("b2")

	first, err := s.Submit(context.Background(), b)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := s.Submit(context.Background(), b)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Status != first.Status || second.Message != first.Message {
		t.Fatalf("resubmit result = %s %q, want recorded outcome %s %q",
			second.Status, second.Message, first.Status, first.Message)
	}
	if calls.Load() != 1 {
		t.Fatalf("engine calls = %d, want 1 (resubmit must not reach the engine)", calls.Load())
	}
}

func TestSubmitterCleanupExpiresDedupWindow(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": "x"})
	}))
	defer srv.Close()

	s := testSubmitter(srv.URL, 2*time.Second)
	b := testBundle("b7")

	if _, err := s.Submit(context.Background(), b); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	s.Cleanup(0)
	if _, err := s.Submit(context.Background(), b); err != nil {
		t.Fatalf("submit after cleanup: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("engine calls = %d, want 2 (cleanup must expire the dedup record)", calls.Load())
	}
}

func TestSubmitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	s := testSubmitter(srv.URL, 50*time.Millisecond)
	_, err := s.Submit(context.Background(), testBundle("b3"))
	if !errors.Is(err, domain.ErrSubmissionTimeout) {
		t.Fatalf("err = %v, want ErrSubmissionTimeout", err)
	}
}

func TestSubmitExpiredBundle(t *testing.T) {
	s := testSubmitter("http://127.0.0.1:0", time.Second)
	b := testBundle("b4")
	b.ValidUntil = time.Now().Add(-time.Second)

	_, err := s.Submit(context.Background(), b)
	if !errors.Is(err, domain.ErrBundleExpired) {
		t.Fatalf("err = %v, want ErrBundleExpired", err)
	}
}

func TestSubmitEngineRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{"code": -32602, "message": "bundle too large"},
		})
	}))
	defer srv.Close()

	s := testSubmitter(srv.URL, time.Second)
	res, err := s.Submit(context.Background(), testBundle("b5"))
	if !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("err = %v, want ErrSubmissionRejected", err)
	}
	if res.Status != domain.BundleRejected {
		t.Fatalf("status = %s, want rejected", res.Status)
	}
}
