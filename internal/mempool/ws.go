// Package mempool observes pending Solana transactions over an enhanced
// websocket feed, decodes them, and classifies DEX activity into candidates
// for the strategy engine.
package mempool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// RawTransaction is one pending transaction as delivered by the feed.
type RawTransaction struct {
	Signature string
	Slot      uint64
	// Base64 is the base64-encoded wire transaction.
	Base64 string
}

// TransactionHandler is called for each pending transaction notification.
type TransactionHandler func(RawTransaction)

// WSClient is a websocket client for an enhanced Solana RPC feed that
// supports transactionSubscribe (Helius-style). It manages the connection
// lifecycle and dispatches transaction notifications to a handler.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.Mutex
	closed bool
	reqID  atomic.Uint64

	handler   TransactionHandler
	handlerMu sync.RWMutex

	done chan struct{}
}

// NewWSClient creates a new websocket client for the given endpoint.
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// OnTransaction registers the handler invoked for each notification.
func (w *WSClient) OnTransaction(h TransactionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handler = h
}

// Connect establishes the websocket connection and starts the read and ping
// loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("mempool/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("mempool/ws: connect: %w", err)
	}

	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	return nil
}

// subscribeRequest is the transactionSubscribe JSON-RPC envelope.
type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Subscribe requests pending-transaction notifications for transactions that
// mention any of the given program IDs, at the given commitment.
func (w *WSClient) Subscribe(ctx context.Context, programIDs []string, commitment string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("mempool/ws: not connected")
	}

	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      w.reqID.Add(1),
		Method:  "transactionSubscribe",
		Params: []any{
			map[string]any{
				"accountInclude": programIDs,
				"failed":         false,
			},
			map[string]any{
				"commitment":          commitment,
				"encoding":            "base64",
				"transactionDetails":  "full",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("mempool/ws: marshal subscribe: %w", err)
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("mempool/ws: subscribe: %w", err)
	}
	return nil
}

// notification is the transactionNotification envelope. Only the fields the
// watcher needs are decoded.
type notification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Slot        uint64 `json:"slot"`
			Signature   string `json:"signature"`
			Transaction []any  `json:"transaction"`
		} `json:"result"`
	} `json:"params"`
}

func (w *WSClient) readLoop() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.shutdown()
			return
		}

		var note notification
		if err := json.Unmarshal(data, &note); err != nil {
			continue
		}
		if note.Method != "transactionNotification" {
			continue
		}

		// The transaction field is [base64String, "base64"].
		if len(note.Params.Result.Transaction) == 0 {
			continue
		}
		encoded, ok := note.Params.Result.Transaction[0].(string)
		if !ok {
			continue
		}

		w.handlerMu.RLock()
		h := w.handler
		w.handlerMu.RUnlock()
		if h != nil {
			h(RawTransaction{
				Signature: note.Params.Result.Signature,
				Slot:      note.Params.Result.Slot,
				Base64:    encoded,
			})
		}
	}
}

func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			w.mu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.shutdown()
				return
			}
		}
	}
}

func (w *WSClient) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		_ = w.conn.Close()
	}
}

// Done is closed when the connection has terminated.
func (w *WSClient) Done() <-chan struct{} {
	return w.done
}

// Close tears down the connection.
func (w *WSClient) Close() {
	w.shutdown()
}
