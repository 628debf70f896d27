// Package rangectl owns the user-facing price range of a position: the
// typed min/max bounds, the full-range toggle with its snapshot, and
// the tick-space projection of the range.
package rangectl

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rangescope/internal/model"
	"rangescope/internal/tickmath"
)

// Side selects which bound an edit applies to.
type Side int

const (
	SideLow Side = iota
	SideHigh
)

// Sentinel display values while full range is active.
const (
	SentinelMin = "0"
	SentinelMax = "∞"
)

// Params are the pool attributes the snapping math needs.
type Params struct {
	TickSpacing   int
	DecimalAdjust float64
}

type snapshot struct {
	minText, maxText   string
	minPrice, maxPrice float64
}

// Controller is the sole owner of the price range state.
type Controller struct {
	mu     sync.Mutex
	logger *zap.Logger

	params    Params
	hasParams bool

	minText, maxText   string
	minPrice, maxPrice float64
	fullRange          bool

	// touched flips on the first user interaction with the range and
	// blocks the one-shot seed. It lives here, under the same mutex as
	// the bounds, so seed-vs-edit races resolve atomically.
	touched bool

	saved *snapshot
	focus [2]*string
}

// NewController builds an empty range controller.
func NewController(logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{logger: logger}
}

// SetParams installs the pool's tick spacing and decimal adjust.
func (c *Controller) SetParams(params Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = params
	c.hasParams = params.TickSpacing > 0 && params.DecimalAdjust > 0
}

// Reset clears all range state, for a pool switch.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = Params{}
	c.hasParams = false
	c.minText, c.maxText = "", ""
	c.minPrice, c.maxPrice = 0, 0
	c.fullRange = false
	c.touched = false
	c.saved = nil
	c.focus = [2]*string{}
}

// Touched reports whether the user has interacted with the range since
// the last Reset.
func (c *Controller) Touched() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}

// Range returns the current user-facing range.
func (c *Controller) Range() model.PriceRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rangeLocked()
}

func (c *Controller) rangeLocked() model.PriceRange {
	return model.PriceRange{
		MinText:     c.minText,
		MaxText:     c.maxText,
		MinPrice:    c.minPrice,
		MaxPrice:    c.maxPrice,
		IsFullRange: c.fullRange,
	}
}

// Resolved returns the ordered numeric bounds and the full-range flag.
// ok is false while the range is unset or degenerate.
func (c *Controller) Resolved() (minPrice, maxPrice float64, fullRange, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fullRange {
		return 0, 0, true, true
	}
	if !(c.minPrice > 0) || !(c.maxPrice > 0) || c.minPrice >= c.maxPrice {
		return 0, 0, false, false
	}
	return c.minPrice, c.maxPrice, false, true
}

// EnterFullRange snapshots the current bounds and switches the
// displayed range to the sentinel values. Degenerate bounds refuse the
// toggle and leave the range unchanged.
func (c *Controller) EnterFullRange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fullRange {
		return false
	}
	if !(c.minPrice > 0) || !(c.maxPrice > 0) || c.minPrice >= c.maxPrice {
		c.logger.Debug("full range refused for degenerate bounds",
			zap.Float64("min", c.minPrice), zap.Float64("max", c.maxPrice))
		return false
	}

	c.saved = &snapshot{
		minText: c.minText, maxText: c.maxText,
		minPrice: c.minPrice, maxPrice: c.maxPrice,
	}
	c.minText, c.maxText = SentinelMin, SentinelMax
	c.fullRange = true
	c.touched = true
	return true
}

// ExitFullRange restores the bounds captured by EnterFullRange.
func (c *Controller) ExitFullRange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exitFullRangeLocked() {
		return false
	}
	c.touched = true
	return true
}

func (c *Controller) exitFullRangeLocked() bool {
	if !c.fullRange {
		return false
	}
	if c.saved != nil {
		c.minText, c.maxText = c.saved.minText, c.saved.maxText
		c.minPrice, c.maxPrice = c.saved.minPrice, c.saved.maxPrice
		c.saved = nil
	}
	c.fullRange = false
	return true
}

// Focus records the displayed value of a bound when its input field
// gains focus. Commit uses it to skip snapping for untouched fields.
func (c *Controller) Focus(side Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := c.minText
	if side == SideHigh {
		text = c.maxText
	}
	captured := text
	c.focus[side] = &captured
}

// Commit parses and snaps a typed bound value on blur or enter. It
// reports whether the range changed. Unparseable input is a no-op, and
// a value identical to the one captured at focus time is stored as is,
// so an untouched field is never mutated by snapping.
func (c *Controller) Commit(side Side, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	focused := c.focus[side]
	c.focus[side] = nil
	if focused != nil && *focused == text {
		return false
	}

	value, err := model.ParseDecimal(text)
	if err != nil || value <= 0 {
		return false
	}

	// A real edit overrides the full-range toggle.
	c.exitFullRangeLocked()

	price := value
	if c.hasParams {
		snapped, err := tickmath.Snap(value, c.params.TickSpacing, c.params.DecimalAdjust, side == SideLow)
		if err != nil {
			return false
		}
		price = snapped
	}

	c.setBoundLocked(side, price)
	c.touched = true
	return true
}

// StepBound moves a bound one tick-spacing step in direction (±1).
func (c *Controller) StepBound(side Side, direction int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasParams {
		return false
	}
	c.exitFullRangeLocked()

	price := c.minPrice
	if side == SideHigh {
		price = c.maxPrice
	}
	if !(price > 0) {
		return false
	}

	stepped, err := tickmath.StepTick(price, direction, c.params.TickSpacing, c.params.DecimalAdjust)
	if err != nil {
		return false
	}
	c.setBoundLocked(side, stepped)
	c.touched = true
	return true
}

// Seed installs a suggested range, snapping both bounds outward. It is
// the compare-and-set half of the one-shot default seed: a range the
// user has touched refuses the seed, and the check happens under the
// same lock that guards the bound writes, so an edit racing the seed
// always wins.
func (c *Controller) Seed(minPrice, maxPrice float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.touched || c.fullRange {
		return false
	}
	return c.installLocked(minPrice, maxPrice)
}

// Apply installs a server-proposed range as an explicit user action:
// it overrides the full-range toggle, ignores the touched flag, and
// marks the range touched.
func (c *Controller) Apply(minPrice, maxPrice float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.exitFullRangeLocked()
	if !c.installLocked(minPrice, maxPrice) {
		return false
	}
	c.touched = true
	return true
}

func (c *Controller) installLocked(minPrice, maxPrice float64) bool {
	if !(minPrice > 0) || !(maxPrice > minPrice) {
		return false
	}
	if c.hasParams {
		if low, err := tickmath.Snap(minPrice, c.params.TickSpacing, c.params.DecimalAdjust, true); err == nil {
			minPrice = low
		}
		if high, err := tickmath.Snap(maxPrice, c.params.TickSpacing, c.params.DecimalAdjust, false); err == nil {
			maxPrice = high
		}
	}
	c.setBoundLocked(SideLow, minPrice)
	c.setBoundLocked(SideHigh, maxPrice)
	return true
}

func (c *Controller) setBoundLocked(side Side, price float64) {
	text := model.FormatPrice(price)
	if side == SideLow {
		c.minPrice, c.minText = price, text
	} else {
		c.maxPrice, c.maxText = price, text
	}
}

// Bounds derives the tick-space projection of the current range.
func (c *Controller) Bounds() (model.TickBounds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasParams {
		return model.TickBounds{}, fmt.Errorf("pool params not set")
	}
	bounds := model.TickBounds{
		Spacing:       c.params.TickSpacing,
		DecimalAdjust: c.params.DecimalAdjust,
	}
	if c.fullRange {
		bounds.LowerTick = tickmath.MinTick
		bounds.UpperTick = tickmath.MaxTick
		return bounds, nil
	}

	lower, err := tickmath.PriceToTick(c.minPrice, c.params.TickSpacing, c.params.DecimalAdjust, true)
	if err != nil {
		return model.TickBounds{}, fmt.Errorf("lower bound: %w", err)
	}
	upper, err := tickmath.PriceToTick(c.maxPrice, c.params.TickSpacing, c.params.DecimalAdjust, false)
	if err != nil {
		return model.TickBounds{}, fmt.Errorf("upper bound: %w", err)
	}
	if lower > upper {
		return model.TickBounds{}, fmt.Errorf("degenerate bounds: %d > %d", lower, upper)
	}
	bounds.LowerTick = lower
	bounds.UpperTick = upper
	return bounds, nil
}
