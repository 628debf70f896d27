// Package tickmath converts between prices and the discretized tick
// coordinate used by concentrated liquidity positions:
//
//	price = 1.0001^tick * decimalAdjust
//
// Ticks are snapped to multiples of the pool's tick spacing and clamped
// to the protocol bounds [MinTick, MaxTick].
package tickmath

import (
	"errors"
	"math"
)

// Tick bounds from Uniswap V3 TickMath.sol.
const (
	MinTick = -887272
	MaxTick = 887272
)

// boundaryEpsilon is the tolerance, in tick units, within which a price
// is considered to sit exactly on a spacing boundary.
const boundaryEpsilon = 1e-8

var (
	ErrInvalidPrice         = errors.New("price must be positive and finite")
	ErrInvalidSpacing       = errors.New("tick spacing must be positive")
	ErrInvalidDecimalAdjust = errors.New("decimal adjust must be positive and finite")
	ErrInvalidDirection     = errors.New("direction must be +1 or -1")
)

var logBase = math.Log(1.0001)

// rawTick returns the unsnapped tick coordinate of price, or an error
// when any input is outside the valid domain.
func rawTick(price, decimalAdjust float64) (float64, error) {
	if !(price > 0) || math.IsInf(price, 1) {
		return 0, ErrInvalidPrice
	}
	if !(decimalAdjust > 0) || math.IsInf(decimalAdjust, 1) {
		return 0, ErrInvalidDecimalAdjust
	}
	raw := math.Log(price/decimalAdjust) / logBase
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, ErrInvalidPrice
	}
	return raw, nil
}

// PriceToTick converts a price to the spacing-aligned tick at or below
// (roundDown) or at or above it, clamped to [MinTick, MaxTick].
func PriceToTick(price float64, spacing int, decimalAdjust float64, roundDown bool) (int, error) {
	if spacing <= 0 {
		return 0, ErrInvalidSpacing
	}
	raw, err := rawTick(price, decimalAdjust)
	if err != nil {
		return 0, err
	}
	step := float64(spacing)
	nearest := math.Round(raw/step) * step
	if math.Abs(raw-nearest) <= boundaryEpsilon {
		return ClampTick(int(nearest)), nil
	}
	return ClampTick(alignTick(raw, spacing, roundDown)), nil
}

// TickToPrice is the inverse conversion.
func TickToPrice(tick int, decimalAdjust float64) float64 {
	return math.Pow(1.0001, float64(tick)) * decimalAdjust
}

// Snap rounds a price to the nearest spacing boundary per roundDown.
// It is idempotent: a price already within boundaryEpsilon tick units
// of a boundary maps to that exact boundary regardless of roundDown.
func Snap(price float64, spacing int, decimalAdjust float64, roundDown bool) (float64, error) {
	if spacing <= 0 {
		return 0, ErrInvalidSpacing
	}
	raw, err := rawTick(price, decimalAdjust)
	if err != nil {
		return 0, err
	}
	step := float64(spacing)
	nearest := math.Round(raw/step) * step
	var tick int
	if math.Abs(raw-nearest) <= boundaryEpsilon {
		tick = int(nearest)
	} else {
		tick = alignTick(raw, spacing, roundDown)
	}
	return TickToPrice(clampAligned(tick, spacing), decimalAdjust), nil
}

// StepTick moves one spacing unit up (direction=+1) from the boundary
// at or below price, or one unit down (direction=-1) from the boundary
// at or above it. The result is clamped to the tick bounds.
func StepTick(price float64, direction, spacing int, decimalAdjust float64) (float64, error) {
	if direction != 1 && direction != -1 {
		return 0, ErrInvalidDirection
	}
	if spacing <= 0 {
		return 0, ErrInvalidSpacing
	}
	raw, err := rawTick(price, decimalAdjust)
	if err != nil {
		return 0, err
	}
	step := float64(spacing)
	nearest := math.Round(raw/step) * step
	var base int
	if math.Abs(raw-nearest) <= boundaryEpsilon {
		base = int(nearest)
	} else {
		base = alignTick(raw, spacing, direction == 1)
	}
	return TickToPrice(clampAligned(base+direction*spacing, spacing), decimalAdjust), nil
}

// ClampTick bounds a tick to [MinTick, MaxTick].
func ClampTick(tick int) int {
	if tick < MinTick {
		return MinTick
	}
	if tick > MaxTick {
		return MaxTick
	}
	return tick
}

// clampAligned bounds a tick to the outermost spacing multiples inside
// [MinTick, MaxTick], so clamped prices stay on a boundary.
func clampAligned(tick, spacing int) int {
	lo := int(math.Ceil(float64(MinTick)/float64(spacing))) * spacing
	hi := int(math.Floor(float64(MaxTick)/float64(spacing))) * spacing
	if tick < lo {
		return lo
	}
	if tick > hi {
		return hi
	}
	return tick
}

// alignTick snaps a raw tick to the spacing multiple at or below
// (down=true) or at or above it.
func alignTick(raw float64, spacing int, down bool) int {
	step := float64(spacing)
	if down {
		return int(math.Floor(raw/step)) * spacing
	}
	return int(math.Ceil(raw/step)) * spacing
}
