package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

// stubStrategy emits one fixed opportunity per candidate.
type stubStrategy struct {
	name      string
	profitBps float64
	noAsset   bool
}

func (s *stubStrategy) Name() string                 { return s.name }
func (s *stubStrategy) Init(_ context.Context) error { return nil }
func (s *stubStrategy) Close() error                 { return nil }
func (s *stubStrategy) Evaluate(_ context.Context, cand domain.Candidate) (*domain.Opportunity, error) {
	asset := "mintA"
	if s.noAsset {
		asset = ""
	}
	return &domain.Opportunity{
		ID:              s.name + "-" + cand.Signature,
		Strategy:        domain.StrategyKind(s.name),
		Asset:           asset,
		ProfitBps:       s.profitBps,
		SourceSignature: cand.Signature,
		CreatedAt:       time.Now(),
		ExpiresAt:       time.Now().Add(time.Minute),
	}, nil
}

func TestEngineAppliesProfitFloor(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "rich", profitBps: 100})
	reg.Register(&stubStrategy{name: "poor", profitBps: 5})

	out := make(chan domain.Opportunity, 8)
	eng := NewEngine(reg, out, 50, metrics.New(), discardLogger())
	if err := eng.SetActive([]string{"rich", "poor"}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	candidates := make(chan domain.Candidate, 1)
	candidates <- domain.Candidate{Signature: "sig1", Kind: domain.CandidateSwap}
	close(candidates)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := eng.Run(ctx, candidates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var got []domain.Opportunity
	for opp := range out {
		got = append(got, opp)
	}
	if len(got) != 1 {
		t.Fatalf("opportunities = %d, want 1 (below-floor discarded)", len(got))
	}
	if got[0].Strategy != "rich" {
		t.Fatalf("strategy = %s, want rich", got[0].Strategy)
	}
	if got[0].SourceSignature != "sig1" {
		t.Fatalf("source signature = %s, want sig1", got[0].SourceSignature)
	}
}

func TestEngineDrainsBufferedCandidatesAfterStreamClose(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "rich", profitBps: 100})

	out := make(chan domain.Opportunity, 16)
	eng := NewEngine(reg, out, 0, metrics.New(), discardLogger())
	if err := eng.SetActive([]string{"rich"}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	const n = 8
	candidates := make(chan domain.Candidate, n)
	for i := 0; i < n; i++ {
		candidates <- domain.Candidate{Signature: "sig" + string(rune('a'+i)), Kind: domain.CandidateSwap}
	}
	close(candidates)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := eng.Run(ctx, candidates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	got := 0
	for range out {
		got++
	}
	if got != n {
		t.Fatalf("opportunities = %d, want %d (candidates buffered at stream close must still be evaluated)", got, n)
	}
}

func TestEngineDropsOpportunityWithoutAsset(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubStrategy{name: "anon", profitBps: 100, noAsset: true})
	reg.Register(&stubStrategy{name: "named", profitBps: 100})

	out := make(chan domain.Opportunity, 8)
	eng := NewEngine(reg, out, 0, metrics.New(), discardLogger())
	if err := eng.SetActive([]string{"anon", "named"}); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	candidates := make(chan domain.Candidate, 1)
	candidates <- domain.Candidate{Signature: "sig1", Kind: domain.CandidateSwap}
	close(candidates)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := eng.Run(ctx, candidates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var got []domain.Opportunity
	for opp := range out {
		got = append(got, opp)
	}
	if len(got) != 1 {
		t.Fatalf("opportunities = %d, want 1 (asset-less opportunity must be dropped)", len(got))
	}
	if got[0].Asset != "mintA" {
		t.Fatalf("asset = %q, want mintA", got[0].Asset)
	}
}

func TestEngineRejectsUnknownStrategy(t *testing.T) {
	eng := NewEngine(NewRegistry(), make(chan domain.Opportunity), 0, metrics.New(), discardLogger())
	if err := eng.SetActive([]string{"missing"}); err == nil {
		t.Fatal("expected error for unregistered strategy")
	}
	if err := eng.SetActive(nil); err == nil {
		t.Fatal("expected error for empty strategy list")
	}
}
