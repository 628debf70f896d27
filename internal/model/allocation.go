package model

// AllocationResult is the token split for a deposit over a range.
type AllocationResult struct {
	AmountToken0   float64 `json:"amount_token0"`
	AmountToken1   float64 `json:"amount_token1"`
	PriceToken0USD float64 `json:"price_token0_usd"`
	PriceToken1USD float64 `json:"price_token1_usd"`
}

// AprMethod selects how the APR simulation extrapolates fees.
type AprMethod string

const (
	AprMethodHistorical AprMethod = "historical"
	AprMethodSpot       AprMethod = "spot"
)

// AprSimulationResult is the fee estimate for an allocation.
type AprSimulationResult struct {
	FeeAPR     float64 `json:"fee_apr"`
	MonthlyUSD float64 `json:"monthly_usd"`
	YearlyUSD  float64 `json:"yearly_usd"`
}
