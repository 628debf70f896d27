package model

// SeriesPoint is one sample in an ordered 1-D series: the domain value
// is either a tick or a unix timestamp, the measure a liquidity, price,
// or volume figure.
type SeriesPoint struct {
	DomainValue float64 `json:"domain_value"`
	Measure     float64 `json:"measure"`
}

// PricePoint is one sample of the pool price history.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume,omitempty"`
}

// PriceStats summarizes a price series. Fields are nil when the
// backend omitted them or returned a non-finite value.
type PriceStats struct {
	Min   *float64 `json:"min,omitempty"`
	Avg   *float64 `json:"avg,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Price *float64 `json:"price,omitempty"`
}

// PriceHistory is the fetched price series plus its stats.
type PriceHistory struct {
	Series []PricePoint `json:"series"`
	Stats  PriceStats   `json:"stats"`
}

// LastPrice returns the most recent price, preferring the stats field
// over the tail of the series.
func (h PriceHistory) LastPrice() (float64, bool) {
	if h.Stats.Price != nil {
		return *h.Stats.Price, true
	}
	if n := len(h.Series); n > 0 {
		return h.Series[n-1].Price, true
	}
	return 0, false
}

// LiquidityBar is one bucket of the liquidity distribution chart.
type LiquidityBar struct {
	Tick      int     `json:"tick"`
	Liquidity float64 `json:"liquidity"`
	Price     float64 `json:"price"`
}

// Distribution is the liquidity distribution around the current tick.
type Distribution struct {
	Bars        []LiquidityBar `json:"bars"`
	CurrentTick int            `json:"current_tick"`
}
