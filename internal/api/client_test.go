package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangescope/internal/model"
)

var testPool = model.PoolRef{
	Address: common.HexToAddress("0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"),
	ChainID: 1,
	Dex:     "uniswap-v3",
}

func TestPoolMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v1/pools/1/uniswap-v3/")
		w.Write([]byte(`{
			"feeTier": "500",
			"tickSpacing": 10,
			"token0": {"address":"0xa","decimals":6,"symbol":"USDC"},
			"token1": {"address":"0xb","decimals":"18","symbol":"WETH"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	meta, err := client.PoolMetadata(context.Background(), testPool)
	require.NoError(t, err)

	assert.Equal(t, uint32(500), meta.FeeTier)
	assert.Equal(t, int32(10), meta.TickSpacing)
	assert.Equal(t, uint8(6), meta.Token0.Decimals)
	assert.Equal(t, uint8(18), meta.Token1.Decimals)
}

func TestPoolMetadataMissingSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"feeTier": 500, "tickSpacing": null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.PoolMetadata(context.Background(), testPool)
	assert.ErrorContains(t, err, "tick spacing")
}

func TestPriceSeriesFillsMissingStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		w.Write([]byte(`{
			"series": [
				{"timestamp": 100, "price": "2833,5"},
				{"timestamp": 200, "price": 3000},
				{"timestamp": 300, "price": "not-a-number"},
				{"timestamp": 400, "price": 2900}
			],
			"stats": {"max": "3242,4"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	history, err := client.PriceSeries(context.Background(), testPool, 30)
	require.NoError(t, err)

	// The unparseable point is dropped, not zeroed.
	require.Len(t, history.Series, 3)
	assert.Equal(t, 2833.5, history.Series[0].Price)

	require.NotNil(t, history.Stats.Max)
	assert.Equal(t, 3242.4, *history.Stats.Max, "backend stats win over recomputation")
	require.NotNil(t, history.Stats.Min)
	assert.Equal(t, 2833.5, *history.Stats.Min)
	require.NotNil(t, history.Stats.Price)
	assert.Equal(t, 2900.0, *history.Stats.Price)
}

func TestAllocationOmitsBoundsWhenFullRange(t *testing.T) {
	var got allocationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"amountToken0":"0,5","amountToken1":1200,"priceToken0Usd":3000,"priceToken1Usd":1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	result, err := client.Allocation(context.Background(), AllocationParams{
		Pool:       testPool,
		DepositUSD: 1000,
		FullRange:  true,
	})
	require.NoError(t, err)

	assert.True(t, got.FullRange)
	assert.Nil(t, got.RangeMin)
	assert.Nil(t, got.RangeMax)
	assert.Equal(t, 0.5, result.AmountToken0)
	assert.Equal(t, 1200.0, result.AmountToken1)
}

func TestAllocationMissingAmountsIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amountToken0":null,"amountToken1":1200}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.Allocation(context.Background(), AllocationParams{Pool: testPool, DepositUSD: 1000})
	assert.ErrorContains(t, err, "token amounts")
}

func TestBackendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.PoolMetadata(context.Background(), testPool)
	assert.ErrorContains(t, err, "backend status 404")
}

func TestRequestCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient(server.URL, nil)
	_, err := client.PriceSeries(ctx, testPool, 7)
	assert.ErrorIs(t, err, context.Canceled)
}
