// Package api implements the HTTP client for the position backend. The
// backend is a black box: this package only shapes requests, decodes
// tolerant numeric payloads, and reports transport failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"rangescope/internal/model"
)

// Client calls the position backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a backend client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// AllocationParams are the inputs of an allocation quote.
type AllocationParams struct {
	Pool       model.PoolRef
	DepositUSD float64
	RangeMin   float64
	RangeMax   float64
	FullRange  bool
}

// AprParams are the inputs of an APR simulation.
type AprParams struct {
	Pool         model.PoolRef
	TickLower    int
	TickUpper    int
	MinPrice     float64
	MaxPrice     float64
	FullRange    bool
	HorizonDays  int
	Method       model.AprMethod
	AmountToken0 float64
	AmountToken1 float64
}

// PoolMetadata fetches fee tier, tick spacing, and token metadata.
func (c *Client) PoolMetadata(ctx context.Context, pool model.PoolRef) (model.PoolMeta, error) {
	var payload poolMetaPayload
	if err := c.getJSON(ctx, c.poolPath(pool, "meta"), nil, &payload); err != nil {
		return model.PoolMeta{}, err
	}

	feeTier, ok := payload.FeeTier.Float()
	if !ok {
		return model.PoolMeta{}, fmt.Errorf("pool metadata missing fee tier")
	}
	spacing, ok := payload.TickSpacing.Float()
	if !ok || spacing <= 0 {
		return model.PoolMeta{}, fmt.Errorf("pool metadata missing tick spacing")
	}

	return model.PoolMeta{
		FeeTier:     uint32(feeTier),
		TickSpacing: int32(spacing),
		Token0:      decodeToken(payload.Token0),
		Token1:      decodeToken(payload.Token1),
	}, nil
}

// PriceSeries fetches the price history for a timeframe in days.
func (c *Client) PriceSeries(ctx context.Context, pool model.PoolRef, timeframeDays int) (model.PriceHistory, error) {
	query := url.Values{"days": {strconv.Itoa(timeframeDays)}}
	var payload priceHistoryPayload
	if err := c.getJSON(ctx, c.poolPath(pool, "price-history"), query, &payload); err != nil {
		return model.PriceHistory{}, err
	}

	history := model.PriceHistory{
		Series: make([]model.PricePoint, 0, len(payload.Series)),
		Stats: model.PriceStats{
			Min:   payload.Stats.Min.Ptr(),
			Avg:   payload.Stats.Avg.Ptr(),
			Max:   payload.Stats.Max.Ptr(),
			Price: payload.Stats.Price.Ptr(),
		},
	}
	for _, p := range payload.Series {
		price, ok := p.Price.Float()
		if !ok {
			continue
		}
		history.Series = append(history.Series, model.PricePoint{
			Timestamp: p.Timestamp,
			Price:     price,
			Volume:    p.Volume.Or(0),
		})
	}
	fillStats(&history)
	return history, nil
}

// DefaultRange asks the backend for a suggested range around a price.
func (c *Client) DefaultRange(ctx context.Context, pool model.PoolRef, initialPrice float64, preset string) (model.RangeSuggestion, error) {
	query := url.Values{
		"price":  {strconv.FormatFloat(initialPrice, 'f', -1, 64)},
		"preset": {preset},
	}
	var payload rangeSuggestionPayload
	if err := c.getJSON(ctx, c.poolPath(pool, "default-range"), query, &payload); err != nil {
		return model.RangeSuggestion{}, err
	}

	minPrice, okMin := payload.MinPrice.Float()
	maxPrice, okMax := payload.MaxPrice.Float()
	if !okMin || !okMax {
		return model.RangeSuggestion{}, fmt.Errorf("range suggestion missing bounds")
	}
	return model.RangeSuggestion{
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		TickSpacing: int32(payload.TickSpacing.Or(0)),
	}, nil
}

// Distribution fetches the liquidity distribution inside a range.
func (c *Client) Distribution(ctx context.Context, pool model.PoolRef, rangeMin, rangeMax float64, tickWindow int) (model.Distribution, error) {
	query := url.Values{
		"min":        {strconv.FormatFloat(rangeMin, 'f', -1, 64)},
		"max":        {strconv.FormatFloat(rangeMax, 'f', -1, 64)},
		"tickWindow": {strconv.Itoa(tickWindow)},
	}
	var payload distributionPayload
	if err := c.getJSON(ctx, c.poolPath(pool, "liquidity-distribution"), query, &payload); err != nil {
		return model.Distribution{}, err
	}

	dist := model.Distribution{
		Bars:        make([]model.LiquidityBar, 0, len(payload.Bars)),
		CurrentTick: int(payload.CurrentTick.Or(0)),
	}
	for _, b := range payload.Bars {
		tick, ok := b.Tick.Float()
		if !ok {
			continue
		}
		dist.Bars = append(dist.Bars, model.LiquidityBar{
			Tick:      int(tick),
			Liquidity: b.Liquidity.Or(0),
			Price:     b.Price.Or(0),
		})
	}
	return dist, nil
}

// Allocation quotes the token split for a deposit over a range.
func (c *Client) Allocation(ctx context.Context, params AllocationParams) (model.AllocationResult, error) {
	req := allocationRequest{
		PoolAddress: params.Pool.Address.Hex(),
		ChainID:     params.Pool.ChainID,
		Dex:         params.Pool.Dex,
		DepositUSD:  params.DepositUSD,
		FullRange:   params.FullRange,
	}
	if !params.FullRange {
		req.RangeMin = &params.RangeMin
		req.RangeMax = &params.RangeMax
	}

	var payload allocationPayload
	if err := c.postJSON(ctx, "/v1/allocation", req, &payload); err != nil {
		return model.AllocationResult{}, err
	}

	amount0, ok0 := payload.AmountToken0.Float()
	amount1, ok1 := payload.AmountToken1.Float()
	if !ok0 || !ok1 {
		return model.AllocationResult{}, fmt.Errorf("allocation response missing token amounts")
	}
	return model.AllocationResult{
		AmountToken0:   amount0,
		AmountToken1:   amount1,
		PriceToken0USD: payload.PriceToken0USD.Or(0),
		PriceToken1USD: payload.PriceToken1USD.Or(0),
	}, nil
}

// SimulateApr runs the fee/APR simulation for an allocation.
func (c *Client) SimulateApr(ctx context.Context, params AprParams) (model.AprSimulationResult, error) {
	req := aprRequest{
		PoolAddress:  params.Pool.Address.Hex(),
		ChainID:      params.Pool.ChainID,
		Dex:          params.Pool.Dex,
		FullRange:    params.FullRange,
		HorizonDays:  params.HorizonDays,
		Method:       string(params.Method),
		AmountToken0: params.AmountToken0,
		AmountToken1: params.AmountToken1,
	}
	if !params.FullRange {
		req.TickLower = &params.TickLower
		req.TickUpper = &params.TickUpper
		req.MinPrice = &params.MinPrice
		req.MaxPrice = &params.MaxPrice
	}

	var payload aprPayload
	if err := c.postJSON(ctx, "/v1/apr-simulation", req, &payload); err != nil {
		return model.AprSimulationResult{}, err
	}

	feeApr, ok := payload.FeeAPR.Float()
	if !ok {
		return model.AprSimulationResult{}, fmt.Errorf("apr response missing fee apr")
	}
	return model.AprSimulationResult{
		FeeAPR:     feeApr,
		MonthlyUSD: payload.MonthlyUSD.Or(0),
		YearlyUSD:  payload.YearlyUSD.Or(0),
	}, nil
}

func (c *Client) poolPath(pool model.PoolRef, resource string) string {
	return fmt.Sprintf("/v1/pools/%d/%s/%s/%s", pool.ChainID, url.PathEscape(pool.Dex), pool.Address.Hex(), resource)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("backend error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("backend status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeToken(p tokenPayload) model.TokenMeta {
	return model.TokenMeta{
		Address:  p.Address,
		Decimals: uint8(p.Decimals.Or(18)),
		Symbol:   p.Symbol,
	}
}

// fillStats recomputes missing stats from the series so consumers can
// rely on them even when the backend omits the stats object.
func fillStats(h *model.PriceHistory) {
	if len(h.Series) == 0 {
		return
	}
	if h.Stats.Min == nil || h.Stats.Max == nil || h.Stats.Avg == nil {
		min, max, sum := h.Series[0].Price, h.Series[0].Price, 0.0
		for _, p := range h.Series {
			if p.Price < min {
				min = p.Price
			}
			if p.Price > max {
				max = p.Price
			}
			sum += p.Price
		}
		avg := sum / float64(len(h.Series))
		if h.Stats.Min == nil {
			h.Stats.Min = &min
		}
		if h.Stats.Max == nil {
			h.Stats.Max = &max
		}
		if h.Stats.Avg == nil {
			h.Stats.Avg = &avg
		}
	}
	if h.Stats.Price == nil {
		last := h.Series[len(h.Series)-1].Price
		h.Stats.Price = &last
	}
}
