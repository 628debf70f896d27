package api

// Wire shapes for the backend endpoints. Every numeric field goes
// through Number because the backend serializes figures either as JSON
// numbers or as locale-formatted strings.

type tokenPayload struct {
	Address  string `json:"address"`
	Decimals Number `json:"decimals"`
	Symbol   string `json:"symbol"`
}

type poolMetaPayload struct {
	FeeTier     Number       `json:"feeTier"`
	TickSpacing Number       `json:"tickSpacing"`
	Token0      tokenPayload `json:"token0"`
	Token1      tokenPayload `json:"token1"`
}

type pricePointPayload struct {
	Timestamp int64  `json:"timestamp"`
	Price     Number `json:"price"`
	Volume    Number `json:"volume"`
}

type priceStatsPayload struct {
	Min   Number `json:"min"`
	Avg   Number `json:"avg"`
	Max   Number `json:"max"`
	Price Number `json:"price"`
}

type priceHistoryPayload struct {
	Series []pricePointPayload `json:"series"`
	Stats  priceStatsPayload   `json:"stats"`
}

type rangeSuggestionPayload struct {
	MinPrice    Number `json:"minPrice"`
	MaxPrice    Number `json:"maxPrice"`
	TickSpacing Number `json:"tickSpacing"`
}

type liquidityBarPayload struct {
	Tick      Number `json:"tick"`
	Liquidity Number `json:"liquidity"`
	Price     Number `json:"price"`
}

type distributionPayload struct {
	Bars        []liquidityBarPayload `json:"bars"`
	CurrentTick Number                `json:"currentTick"`
}

type allocationRequest struct {
	PoolAddress string   `json:"poolAddress"`
	ChainID     uint64   `json:"chainId"`
	Dex         string   `json:"dex"`
	DepositUSD  float64  `json:"depositUsd"`
	RangeMin    *float64 `json:"rangeMin,omitempty"`
	RangeMax    *float64 `json:"rangeMax,omitempty"`
	FullRange   bool     `json:"fullRange"`
}

type allocationPayload struct {
	AmountToken0   Number `json:"amountToken0"`
	AmountToken1   Number `json:"amountToken1"`
	PriceToken0USD Number `json:"priceToken0Usd"`
	PriceToken1USD Number `json:"priceToken1Usd"`
}

type aprRequest struct {
	PoolAddress  string   `json:"poolAddress"`
	ChainID      uint64   `json:"chainId"`
	Dex          string   `json:"dex"`
	TickLower    *int     `json:"tickLower,omitempty"`
	TickUpper    *int     `json:"tickUpper,omitempty"`
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
	FullRange    bool     `json:"fullRange"`
	HorizonDays  int      `json:"horizonDays"`
	Method       string   `json:"calculationMethod"`
	AmountToken0 float64  `json:"amountToken0"`
	AmountToken1 float64  `json:"amountToken1"`
}

type aprPayload struct {
	FeeAPR     Number `json:"feeApr"`
	MonthlyUSD Number `json:"monthlyUsd"`
	YearlyUSD  Number `json:"yearlyUsd"`
}
