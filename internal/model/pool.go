package model

import "github.com/ethereum/go-ethereum/common"

// PoolRef identifies a pool across chains and exchanges.
type PoolRef struct {
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chain_id"`
	Dex     string         `json:"dex"`
}

// PoolMeta captures the pool attributes the range math depends on.
type PoolMeta struct {
	FeeTier     uint32    `json:"fee_tier"`
	TickSpacing int32     `json:"tick_spacing"`
	Token0      TokenMeta `json:"token0"`
	Token1      TokenMeta `json:"token1"`
}

// DecimalAdjust returns the price scale factor implied by the token
// decimals: price = 1.0001^tick * 10^(decimals0-decimals1).
func (m PoolMeta) DecimalAdjust() float64 {
	diff := int(m.Token0.Decimals) - int(m.Token1.Decimals)
	adjust := 1.0
	for i := 0; i < diff; i++ {
		adjust *= 10
	}
	for i := 0; i > diff; i-- {
		adjust /= 10
	}
	return adjust
}
