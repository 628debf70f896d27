package stream

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangescope/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var testPool = model.PoolRef{
	Address: common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"),
	ChainID: 1,
	Dex:     "uniswap-v3",
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialSubscribesAndStreamsTicks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req subscribeRequest
		require.NoError(t, json.Unmarshal(msg, &req))
		assert.Equal(t, "subscribe", req.Op)
		assert.Equal(t, uint64(1), req.ChainID)
		assert.Equal(t, testPool.Address.Hex(), req.Pool)

		require.NoError(t, c.WriteJSON(map[string]interface{}{
			"pool":  req.Pool,
			"price": "3512,75",
			"ts":    1700000100,
		}))

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	feed, err := Dial(context.Background(), wsURL(server), testPool, nil, nil)
	require.NoError(t, err)
	defer feed.Close()

	select {
	case tick := <-feed.Ticks():
		assert.Equal(t, 3512.75, tick.Price)
		assert.Equal(t, int64(1700000100), tick.Timestamp)
		assert.Equal(t, testPool, tick.Pool)
	case <-time.After(3 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestGarbagePricesAreDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer c.Close()

		if _, _, err := c.ReadMessage(); err != nil {
			return
		}

		payloads := []map[string]interface{}{
			{"pool": testPool.Address.Hex(), "price": "not a number", "ts": 1},
			{"pool": testPool.Address.Hex(), "price": "-4", "ts": 2},
			{"pool": testPool.Address.Hex(), "price": "2000", "ts": 3},
		}
		for _, p := range payloads {
			require.NoError(t, c.WriteJSON(p))
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	feed, err := Dial(context.Background(), wsURL(server), testPool, nil, nil)
	require.NoError(t, err)
	defer feed.Close()

	select {
	case tick := <-feed.Ticks():
		assert.Equal(t, 2000.0, tick.Price)
		assert.Equal(t, int64(3), tick.Timestamp)
	case <-time.After(3 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestCloseShutsDownTickChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	feed, err := Dial(context.Background(), wsURL(server), testPool, nil, nil)
	require.NoError(t, err)

	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close(), "double close is a no-op")

	select {
	case _, open := <-feed.Ticks():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("tick channel not closed")
	}
}

func TestReconnectRetriesUntilServerReturns(t *testing.T) {
	var serving atomic.Bool

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		if !serving.Load() {
			// Drop the connection right after the subscribe.
			return
		}

		_ = c.WriteJSON(map[string]interface{}{
			"pool":  testPool.Address.Hex(),
			"price": "2100",
			"ts":    99,
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)

	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond

	feed, err := Dial(context.Background(), "ws://"+addr, testPool, &cfg, nil)
	require.NoError(t, err)
	defer feed.Close()

	// Take the port down entirely, so the next reconnect attempts fail
	// with a dial error rather than a dropped connection.
	require.NoError(t, srv.Close())
	time.Sleep(150 * time.Millisecond)

	// Bring the server back on the same port; the feed must still be
	// retrying and pick the connection back up.
	serving.Store(true)
	ln2, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	srv2 := &http.Server{Handler: handler}
	go srv2.Serve(ln2)
	defer srv2.Close()

	select {
	case tick := <-feed.Ticks():
		assert.Equal(t, 2100.0, tick.Price)
	case <-time.After(5 * time.Second):
		t.Fatal("feed never reconnected after failed attempts")
	}
}

func TestDialFailsWhenServerUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/feed", testPool, nil, nil)
	assert.Error(t, err)
}
