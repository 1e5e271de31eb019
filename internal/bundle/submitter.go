package bundle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/SynergiaOS/solana-hft-ninja/internal/metrics"
)

// rateLimitKey throttles sendBundle calls against the block engine.
const rateLimitKey = "jito:send_bundle"

// SubmitterConfig holds the block-engine endpoint parameters.
type SubmitterConfig struct {
	Endpoint      string
	SubmitTimeout time.Duration
	// RateLimit is the sendBundle ceiling per RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

// Submitter sends bundles to the Jito block engine over JSON-RPC. Every
// bundle ID is recorded; a bundle that was already submitted is never sent
// again verbatim, regardless of outcome.
type Submitter struct {
	cfg        SubmitterConfig
	httpClient *http.Client
	limiter    domain.RateLimiter
	metrics    *metrics.Metrics
	logger     *slog.Logger
	reqID      atomic.Uint64

	mu        sync.Mutex
	submitted map[string]submission
}

// submission keeps the outcome of a bundle id for the dedup window, so a
// resubmit can observe the same result as the original.
type submission struct {
	at     time.Time
	result domain.SubmissionResult
}

// NewSubmitter creates a Submitter. The limiter may be nil, in which case no
// throttling is applied.
func NewSubmitter(cfg SubmitterConfig, limiter domain.RateLimiter, m *metrics.Metrics, logger *slog.Logger) *Submitter {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Second
	}
	return &Submitter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SubmitTimeout},
		limiter:    limiter,
		metrics:    m,
		logger:     logger.With(slog.String("component", "bundle_submitter")),
		submitted:  make(map[string]submission),
	}
}

type sendBundleRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type sendBundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit sends a bundle to the block engine. It returns
// domain.ErrSubmissionRejected for verbatim resubmits and engine-side
// rejections, domain.ErrBundleExpired when the validity window has passed,
// and domain.ErrSubmissionTimeout when the engine does not answer in time.
func (s *Submitter) Submit(ctx context.Context, b domain.Bundle) (domain.SubmissionResult, error) {
	now := time.Now()
	result := domain.SubmissionResult{BundleID: b.ID, SubmittedAt: now}

	if !b.ValidUntil.IsZero() && now.After(b.ValidUntil) {
		result.Status = domain.BundleExpired
		s.metrics.BundlesSubmitted.WithLabelValues(string(domain.BundleExpired)).Inc()
		return result, fmt.Errorf("bundle: %s: %w", b.ID, domain.ErrBundleExpired)
	}

	placeholder := result
	placeholder.Status = domain.BundleRejected
	placeholder.Message = "submission in flight"
	if prev, first := s.markSubmitted(b.ID, placeholder); !first {
		// A verbatim resubmit is a no-op: the bundle is never sent again,
		// and the caller observes the recorded outcome of the original.
		s.logger.Debug("duplicate bundle submission, returning recorded outcome",
			slog.String("bundle_id", b.ID),
			slog.String("status", string(prev.Status)))
		return prev, nil
	}
	defer func() { s.record(b.ID, result) }()

	if err := s.throttle(ctx); err != nil {
		result.Status = domain.BundleRejected
		return result, fmt.Errorf("bundle: rate limit: %w", err)
	}

	encoded := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		encoded[i] = base64.StdEncoding.EncodeToString(tx)
	}

	req := sendBundleRequest{
		JSONRPC: "2.0",
		ID:      s.reqID.Add(1),
		Method:  "sendBundle",
		Params: []any{
			encoded,
			map[string]string{"encoding": "base64"},
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		result.Status = domain.BundleRejected
		return result, fmt.Errorf("bundle: marshal request: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(submitCtx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		result.Status = domain.BundleRejected
		return result, fmt.Errorf("bundle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	result.Duration = time.Since(now)
	s.metrics.BundleLatency.Observe(result.Duration.Seconds())
	if err != nil {
		result.Status = domain.BundleRejected
		s.metrics.BundlesSubmitted.WithLabelValues(string(domain.BundleRejected)).Inc()
		if errors.Is(err, context.DeadlineExceeded) || submitCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("bundle: %s: %w", b.ID, domain.ErrSubmissionTimeout)
		}
		return result, fmt.Errorf("bundle: %s: %w", b.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		result.Status = domain.BundleRejected
		return result, fmt.Errorf("bundle: read response: %w", err)
	}

	var rpcResp sendBundleResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		result.Status = domain.BundleRejected
		return result, fmt.Errorf("bundle: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		result.Status = domain.BundleRejected
		result.Message = rpcResp.Error.Message
		s.metrics.BundlesSubmitted.WithLabelValues(string(domain.BundleRejected)).Inc()
		return result, fmt.Errorf("bundle: %s: %s: %w", b.ID, rpcResp.Error.Message, domain.ErrSubmissionRejected)
	}

	result.Status = domain.BundleConfirmed
	result.Message = rpcResp.Result
	s.metrics.BundlesSubmitted.WithLabelValues(string(domain.BundleConfirmed)).Inc()
	s.metrics.TipLamports.Observe(float64(b.TipLamports))
	s.logger.Debug("bundle accepted",
		slog.String("bundle_id", b.ID),
		slog.String("engine_id", rpcResp.Result),
		slog.Uint64("tip_lamports", b.TipLamports))
	return result, nil
}

// throttle blocks until the configured sendBundle ceiling admits another
// request.
func (s *Submitter) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	for {
		allowed, err := s.limiter.Allow(ctx, rateLimitKey, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		timer := time.NewTimer(10 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// markSubmitted records the bundle ID with a provisional result. When the ID
// was already present it returns the recorded result and false.
func (s *Submitter) markSubmitted(id string, placeholder domain.SubmissionResult) (domain.SubmissionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.submitted[id]; ok {
		return prev.result, false
	}
	s.submitted[id] = submission{at: time.Now(), result: placeholder}
	return domain.SubmissionResult{}, true
}

// record replaces the provisional result with the terminal one.
func (s *Submitter) record(id string, result domain.SubmissionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.submitted[id]; ok {
		sub.result = result
		s.submitted[id] = sub
	}
}

// Cleanup drops submission records older than ttl.
func (s *Submitter) Cleanup(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	for id, sub := range s.submitted {
		if sub.at.Before(cutoff) {
			delete(s.submitted, id)
		}
	}
}

// Run expires old submission records on an interval so the dedup map stays
// bounded over long uptimes. Bundle validity is measured in seconds, so ten
// minutes of history is ample for resubmit detection.
func (s *Submitter) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Cleanup(10 * time.Minute)
		}
	}
}
