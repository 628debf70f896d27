package orchestrator

import (
	"github.com/ethereum/go-ethereum/common"

	"rangescope/internal/model"
)

// Stage request keys. Two keys are equal iff every component is equal;
// stages compare them structurally to detect and reject stale results,
// so keys must stay plain comparable values.

// PoolKey identifies the pool a request belongs to.
type PoolKey struct {
	Address common.Address
	ChainID uint64
	Dex     string
}

func poolKey(ref model.PoolRef) PoolKey {
	return PoolKey{Address: ref.Address, ChainID: ref.ChainID, Dex: ref.Dex}
}

func (k PoolKey) ref() model.PoolRef {
	return model.PoolRef{Address: k.Address, ChainID: k.ChainID, Dex: k.Dex}
}

// MetadataKey keys the pool metadata stage.
type MetadataKey struct {
	PoolKey
}

// PriceKey keys the price history stage.
type PriceKey struct {
	PoolKey
	TimeframeDays int
}

// DistributionKey keys the liquidity distribution stage.
type DistributionKey struct {
	PoolKey
	RangeMin   float64
	RangeMax   float64
	FullRange  bool
	TickWindow int
}

// AllocationKey keys the allocation stage and doubles as the guard the
// APR stage is matched against.
type AllocationKey struct {
	PoolKey
	DepositUSD float64
	RangeMin   float64
	RangeMax   float64
	FullRange  bool
}

// AprKey keys the APR simulation stage.
type AprKey struct {
	AllocationKey
	HorizonDays int
	Method      model.AprMethod
}
