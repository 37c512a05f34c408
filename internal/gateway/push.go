package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Shehuna2/MafitaPay-sub002/internal/infra"
)

const (
	pushMaxRetries       = 10
	pushHandshakeTimeout = 10 * time.Second
	pushReadTimeout      = 60 * time.Second
)

// pushEnvelope is the only part of a push message the client trusts. Payload
// beyond the type is ignored: push is a wake-up hint, never a data source, so
// the push schema never has to match the REST schema.
type pushEnvelope struct {
	Type string `json:"type"`
}

// PushWorker maintains the long-lived order-update subscription for one view.
// Every recognized inbound event triggers onHint; reconnection uses capped
// exponential backoff with jitter. While disconnected the engine silently
// degrades to polling-only, so worker health is never load-bearing.
type PushWorker struct {
	url       string
	token     string
	onHint    func()
	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPushWorker creates a push subscription worker. onHint must be
// non-blocking; it is invoked from the read loop.
func NewPushWorker(url, token string, onHint func()) *PushWorker {
	return &PushWorker{url: url, token: token, onHint: onHint}
}

// Connect starts the websocket connection loop.
func (w *PushWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// IsConnected reports current push channel health.
func (w *PushWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *PushWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Push channel connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			infra.GlobalMetrics.RecordPushReconnect()
			delay := infra.Backoff(retryCount)
			retryCount++
			if retryCount > pushMaxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
			// Connection dropped; poll keeps the mirror fresh meanwhile.
			infra.GlobalMetrics.SetPushConnected(false)
		}
	}
}

func (w *PushWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: pushHandshakeTimeout}
	header := make(http.Header)
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	infra.GlobalMetrics.SetPushConnected(true)

	slog.Info("Push channel connected", slog.String("url", w.url))
	return nil
}

func (w *PushWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pushReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *PushWorker) handleMessage(msg []byte) {
	var env pushEnvelope
	if json.Unmarshal(msg, &env) != nil {
		return
	}
	switch env.Type {
	case "order_update", "order_list_update":
		infra.GlobalMetrics.RecordPushEvent()
		if w.onHint != nil {
			w.onHint()
		}
	}
}

func (w *PushWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the connection loop and closes the socket. Idempotent.
func (w *PushWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
