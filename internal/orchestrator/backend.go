package orchestrator

import (
	"context"

	"rangescope/internal/api"
	"rangescope/internal/model"
)

// Backend is the black-box position backend the pipeline fetches from.
// *api.Client implements it.
type Backend interface {
	PoolMetadata(ctx context.Context, pool model.PoolRef) (model.PoolMeta, error)
	PriceSeries(ctx context.Context, pool model.PoolRef, timeframeDays int) (model.PriceHistory, error)
	DefaultRange(ctx context.Context, pool model.PoolRef, initialPrice float64, preset string) (model.RangeSuggestion, error)
	Distribution(ctx context.Context, pool model.PoolRef, rangeMin, rangeMax float64, tickWindow int) (model.Distribution, error)
	Allocation(ctx context.Context, params api.AllocationParams) (model.AllocationResult, error)
	SimulateApr(ctx context.Context, params api.AprParams) (model.AprSimulationResult, error)
}

// MetadataFallback supplies pool metadata when the backend metadata
// endpoint fails, typically by reading the pool contract directly.
type MetadataFallback interface {
	PoolMeta(ctx context.Context, pool model.PoolRef) (model.PoolMeta, error)
}
