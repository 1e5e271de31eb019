package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

func TestApplyStatusStampsExitRequestOnce(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	pos := domain.Position{
		Asset:  "mintA",
		Status: domain.PositionStatusOpen,
	}

	pos = applyStatus(pos, domain.PositionStatusExitPending, "stop_loss", now)
	if pos.Status != domain.PositionStatusExitPending {
		t.Fatalf("status = %s, want %s", pos.Status, domain.PositionStatusExitPending)
	}
	if pos.ExitReason != "stop_loss" {
		t.Fatalf("exit reason = %q, want stop_loss", pos.ExitReason)
	}
	if pos.ExitRequestedAt == nil || !pos.ExitRequestedAt.Equal(now) {
		t.Fatalf("exit requested at = %v, want %v", pos.ExitRequestedAt, now)
	}

	// A retried exit keeps the original request timestamp.
	later := now.Add(time.Minute)
	pos = applyStatus(pos, domain.PositionStatusExitPending, "", later)
	if !pos.ExitRequestedAt.Equal(now) {
		t.Fatalf("exit requested at = %v, want original %v", pos.ExitRequestedAt, now)
	}
	if pos.ExitReason != "stop_loss" {
		t.Fatalf("exit reason = %q, want stop_loss preserved", pos.ExitReason)
	}
	if !pos.UpdatedAt.Equal(later) {
		t.Fatalf("updated at = %v, want %v", pos.UpdatedAt, later)
	}
}

func TestDecodeActiveSkipsCorruptDocuments(t *testing.T) {
	good, err := json.Marshal(domain.Position{Asset: "mintA", Status: domain.PositionStatusOpen})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	assets := []string{"mintCorrupt", "mintA", "mintGone"}
	raws := []interface{}{"{not-json", string(good), nil}

	got := decodeActive(assets, raws)
	if len(got) != 1 {
		t.Fatalf("positions = %d, want 1 (corrupt and missing documents skipped)", len(got))
	}
	if got[0].Asset != "mintA" {
		t.Fatalf("asset = %s, want mintA", got[0].Asset)
	}
}
