// Package rpcpool maintains a pool of Solana JSON-RPC endpoints with health
// tracking and automatic failover from the primary to fallback providers.
package rpcpool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// rpcRequest is the standard JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is the standard JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// provider tracks the health of a single RPC endpoint. Failures are counted
// over a sliding window; once the count passes the threshold the provider is
// skipped until a health probe succeeds again.
type provider struct {
	url string

	mu       sync.Mutex
	failures []time.Time
	healthy  bool
}

func (p *provider) recordFailure(window time.Duration, maxFailures int, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := now.Add(-window)
	kept := p.failures[:0]
	for _, t := range p.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.failures = append(kept, now)
	if len(p.failures) >= maxFailures {
		p.healthy = false
	}
}

func (p *provider) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = p.failures[:0]
	p.healthy = true
}

func (p *provider) isHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

// Pool is a failover pool of JSON-RPC providers. The primary endpoint is
// always preferred; fallbacks are tried in order when the primary is
// unhealthy or a call against it fails.
type Pool struct {
	providers  []*provider
	timeout    time.Duration
	window     time.Duration
	maxFails   int
	healthTick time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	reqID      atomic.Uint64
}

// Config holds the tunables for a provider pool.
type Config struct {
	PrimaryURL     string
	FallbackURLs   []string
	RequestTimeout time.Duration
	HealthInterval time.Duration
	FailureWindow  time.Duration
	MaxFailures    int
}

// New creates a pool from the primary endpoint and any fallbacks. All
// providers start healthy.
func New(cfg Config, logger *slog.Logger) *Pool {
	providers := make([]*provider, 0, 1+len(cfg.FallbackURLs))
	providers = append(providers, &provider{url: cfg.PrimaryURL, healthy: true})
	for _, u := range cfg.FallbackURLs {
		providers = append(providers, &provider{url: u, healthy: true})
	}
	return &Pool{
		providers:  providers,
		timeout:    cfg.RequestTimeout,
		window:     cfg.FailureWindow,
		maxFails:   cfg.MaxFailures,
		healthTick: cfg.HealthInterval,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.With(slog.String("component", "rpc_pool")),
	}
}

// Call invokes a JSON-RPC method against the first healthy provider, failing
// over to the next on transport errors. It returns the raw result payload.
func (p *Pool) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var lastErr error
	for _, prov := range p.providers {
		if !prov.isHealthy() {
			continue
		}
		result, err := p.callProvider(ctx, prov, method, params)
		if err == nil {
			prov.recordSuccess()
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// RPC-level errors are the caller's problem, not the provider's.
		if _, ok := err.(*rpcError); ok {
			prov.recordSuccess()
			return nil, err
		}
		prov.recordFailure(p.window, p.maxFails, time.Now())
		p.logger.Warn("rpc call failed, trying next provider",
			slog.String("url", prov.url),
			slog.String("method", method),
			slog.String("error", err.Error()))
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("rpcpool: %w: %v", domain.ErrNoHealthyProvider, lastErr)
	}
	return nil, fmt.Errorf("rpcpool: %w", domain.ErrNoHealthyProvider)
}

func (p *Pool) callProvider(ctx context.Context, prov *provider, method string, params any) (json.RawMessage, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      p.reqID.Add(1),
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// RunHealthChecks probes every provider with getHealth on a fixed interval
// until ctx is cancelled, so tripped providers can recover.
func (p *Pool) RunHealthChecks(ctx context.Context) error {
	ticker := time.NewTicker(p.healthTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, prov := range p.providers {
				if prov.isHealthy() {
					continue
				}
				if _, err := p.callProvider(ctx, prov, "getHealth", nil); err == nil {
					prov.recordSuccess()
					p.logger.Info("rpc provider recovered", slog.String("url", prov.url))
				}
			}
		}
	}
}

// Healthy reports whether at least one provider is currently usable.
func (p *Pool) Healthy() bool {
	for _, prov := range p.providers {
		if prov.isHealthy() {
			return true
		}
	}
	return false
}
