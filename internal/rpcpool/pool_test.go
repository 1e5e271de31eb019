package rpcpool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func rpcServer(t *testing.T, handler func(method string) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		result, rpcErr := handler(req.Method)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(primary string, fallbacks ...string) Config {
	return Config{
		PrimaryURL:     primary,
		FallbackURLs:   fallbacks,
		RequestTimeout: 2 * time.Second,
		HealthInterval: 10 * time.Millisecond,
		FailureWindow:  time.Minute,
		MaxFailures:    3,
	}
}

func TestCallPrimary(t *testing.T) {
	srv := rpcServer(t, func(method string) (any, *rpcError) {
		if method != "getSlot" {
			t.Errorf("method = %s, want getSlot", method)
		}
		return uint64(1234), nil
	})
	defer srv.Close()

	pool := New(testConfig(srv.URL), discardLogger())
	slot, err := pool.GetSlot(context.Background(), "processed")
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 1234 {
		t.Fatalf("slot = %d, want 1234", slot)
	}
}

func TestFailoverToFallback(t *testing.T) {
	fallback := rpcServer(t, func(string) (any, *rpcError) {
		return map[string]any{"value": map[string]any{"blockhash": "abc", "lastValidBlockHeight": 99}}, nil
	})
	defer fallback.Close()

	// Primary URL points at a closed server so every call fails at transport level.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	pool := New(testConfig(dead.URL, fallback.URL), discardLogger())
	bh, err := pool.GetLatestBlockhash(context.Background(), "confirmed")
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Blockhash != "abc" {
		t.Fatalf("blockhash = %q, want %q", bh.Blockhash, "abc")
	}
}

func TestPrimaryTripsAfterMaxFailures(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	pool := New(testConfig(dead.URL), discardLogger())
	for i := 0; i < 3; i++ {
		if _, err := pool.Call(context.Background(), "getSlot", nil); err == nil {
			t.Fatal("expected error against dead provider")
		}
	}
	if pool.providers[0].isHealthy() {
		t.Fatal("primary still healthy after max failures")
	}
	if pool.Healthy() {
		t.Fatal("pool reports healthy with all providers tripped")
	}
	if _, err := pool.Call(context.Background(), "getSlot", nil); !errors.Is(err, domain.ErrNoHealthyProvider) {
		t.Fatalf("err = %v, want ErrNoHealthyProvider", err)
	}
}

func TestRPCErrorDoesNotTripProvider(t *testing.T) {
	srv := rpcServer(t, func(string) (any, *rpcError) {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	})
	defer srv.Close()

	pool := New(testConfig(srv.URL), discardLogger())
	for i := 0; i < 5; i++ {
		if _, err := pool.Call(context.Background(), "getSlot", nil); err == nil {
			t.Fatal("expected rpc error")
		}
	}
	if !pool.providers[0].isHealthy() {
		t.Fatal("provider tripped by rpc-level errors")
	}
}

func TestHealthCheckRecovery(t *testing.T) {
	var healthy atomic.Bool
	srv := rpcServer(t, func(method string) (any, *rpcError) {
		if !healthy.Load() {
			return nil, &rpcError{Code: -32005, Message: "node is behind"}
		}
		return "ok", nil
	})
	defer srv.Close()

	pool := New(testConfig(srv.URL), discardLogger())
	pool.providers[0].healthy = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.RunHealthChecks(ctx)

	healthy.Store(true)
	deadline := time.After(2 * time.Second)
	for !pool.providers[0].isHealthy() {
		select {
		case <-deadline:
			t.Fatal("provider never recovered")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
