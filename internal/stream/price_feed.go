package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rangescope/internal/api"
	"rangescope/internal/model"
)

// Config configures feed reconnect and keepalive behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff between attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Tick is one live price update for the subscribed pool.
type Tick struct {
	Pool      model.PoolRef
	Price     float64
	Timestamp int64
}

// PriceFeed streams live pool prices from the backend's websocket
// endpoint. It reconnects with exponential backoff and resubscribes
// after each reconnect.
type PriceFeed struct {
	endpoint string
	pool     model.PoolRef
	config   Config
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	ticks chan Tick
	done  chan struct{}
	wg    sync.WaitGroup
}

type subscribeRequest struct {
	Op      string `json:"op"`
	ChainID uint64 `json:"chainId"`
	Dex     string `json:"dex"`
	Pool    string `json:"pool"`
}

type tickMessage struct {
	Pool      string     `json:"pool"`
	Price     api.Number `json:"price"`
	Timestamp int64      `json:"ts"`
}

// Dial connects to the endpoint and subscribes to price updates for
// the given pool.
func Dial(ctx context.Context, endpoint string, pool model.PoolRef, config *Config, logger *zap.Logger) (*PriceFeed, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &PriceFeed{
		endpoint: endpoint,
		pool:     pool,
		config:   cfg,
		logger:   logger,
		ticks:    make(chan Tick, 256),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}
	if err := f.subscribe(); err != nil {
		f.closeConn()
		return nil, err
	}

	f.wg.Add(2)
	go f.readLoop()
	go f.pingLoop()

	return f, nil
}

// Ticks returns the channel of live price updates. The channel is
// closed when the feed shuts down.
func (f *PriceFeed) Ticks() <-chan Tick { return f.ticks }

// Close shuts the feed down and closes the tick channel.
func (f *PriceFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.ticks)
	return nil
}

func (f *PriceFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

func (f *PriceFeed) subscribe() error {
	req := subscribeRequest{
		Op:      "subscribe",
		ChainID: f.pool.ChainID,
		Dex:     f.pool.Dex,
		Pool:    f.pool.Address.Hex(),
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}

	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

func (f *PriceFeed) closeConn() {
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()
}

func (f *PriceFeed) readLoop() {
	defer f.wg.Done()

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			if !f.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.closeConn()
			continue
		}

		f.handleMessage(message)
	}
}

// reconnect redials and resubscribes until it succeeds, doubling the
// delay per failed attempt up to MaxReconnectDelay. It reports false
// when the feed shut down before a connection was re-established.
func (f *PriceFeed) reconnect() bool {
	delay := f.config.ReconnectDelay

	for {
		select {
		case <-f.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := f.connect(ctx)
		cancel()

		if err == nil {
			if err = f.subscribe(); err == nil {
				return true
			}
			f.closeConn()
		}
		f.logger.Warn("price feed reconnect failed", zap.Error(err))

		delay *= 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

func (f *PriceFeed) handleMessage(message []byte) {
	var msg tickMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.logger.Debug("price feed dropped message", zap.Error(err))
		return
	}

	price, ok := msg.Price.Float()
	if !ok || price <= 0 {
		return
	}

	tick := Tick{Pool: f.pool, Price: price, Timestamp: msg.Timestamp}

	// Drop the oldest pending tick rather than block the read loop;
	// only the latest price matters to consumers.
	select {
	case f.ticks <- tick:
	default:
		select {
		case <-f.ticks:
		default:
		}
		select {
		case f.ticks <- tick:
		default:
		}
	}
}

func (f *PriceFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}
