package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"navtrack/internal/domain"
	"navtrack/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	defaultReconnectDelay = 5 * time.Second
	handshakeTimeout      = 10 * time.Second
	readTimeout           = 60 * time.Second
)

// quoteMessage is the wire format of the push feed.
type quoteMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// Worker maintains a WebSocket subscription to a live quote feed. On
// disconnect it retries indefinitely with a fixed delay; the consumer must
// always be able to fall back to polling, so the worker never gives up and
// never blocks on a slow reader.
type Worker struct {
	url    string
	symbol string
	delay  time.Duration
	quotes chan domain.Quote

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a live feed worker for one symbol.
func NewWorker(url, symbol string, reconnectDelay time.Duration) *Worker {
	if reconnectDelay <= 0 {
		reconnectDelay = defaultReconnectDelay
	}
	return &Worker{
		url:    url,
		symbol: symbol,
		delay:  reconnectDelay,
		quotes: make(chan domain.Quote, 64),
	}
}

// Quotes returns the channel live quotes are delivered on.
func (w *Worker) Quotes() <-chan domain.Quote {
	return w.quotes
}

// Connect starts the connection loop.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("live feed connection failed",
				slog.String("url", w.url), slog.Any("error", err))
			infra.GlobalMetrics.RecordStreamReconnect()
		} else {
			w.readLoop(ctx)
			infra.GlobalMetrics.SetStreamConnected(false)
		}

		// Fixed delay before redialing, whether the dial failed or an
		// established connection dropped.
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.delay):
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := make(http.Header)
	header.Set("User-Agent", infra.DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	infra.GlobalMetrics.SetStreamConnected(true)
	slog.Info("live feed connected", slog.String("symbol", w.symbol))
	return nil
}

func (w *Worker) subscribe() error {
	msg := map[string]interface{}{
		"op":      "subscribe",
		"symbols": []string{w.symbol},
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var m quoteMessage
	if json.Unmarshal(msg, &m) != nil || m.Symbol != w.symbol || m.Price <= 0 {
		return
	}

	q := domain.Quote{
		Symbol: m.Symbol,
		Price:  decimal.NewFromFloat(m.Price),
		Time:   time.UnixMilli(m.Timestamp),
	}

	select {
	case w.quotes <- q:
	default: // DROP
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// IsConnected reports whether the worker currently holds a live connection.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the connection loop and closes the socket.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
