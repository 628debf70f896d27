// Package chart adapts the generic viewport engine to the two chart
// surfaces: the tick-indexed liquidity distribution and the
// time-indexed price/volume history. Both expose the same gesture
// interface; only the domain and the measure differ.
package chart

import (
	"fmt"
	"time"

	"rangescope/internal/model"
	"rangescope/internal/viewport"
)

// TickChart is the liquidity distribution chart, indexed by tick.
type TickChart struct {
	vp          *viewport.Controller
	bars        []model.LiquidityBar
	currentTick int
}

// NewTickChart builds a chart over a distribution. minZoomTicks is the
// smallest visible tick span, supplied by the caller.
func NewTickChart(dist model.Distribution, minZoomTicks float64) (*TickChart, error) {
	if len(dist.Bars) == 0 {
		return nil, fmt.Errorf("distribution has no bars")
	}
	points := make([]float64, len(dist.Bars))
	for i, bar := range dist.Bars {
		points[i] = float64(bar.Tick)
	}
	vp, err := viewport.New(points, minZoomTicks)
	if err != nil {
		return nil, err
	}
	return &TickChart{vp: vp, bars: dist.Bars, currentTick: dist.CurrentTick}, nil
}

func (c *TickChart) OnWheel(pointerRatio float64, zoomingIn bool) { c.vp.OnWheel(pointerRatio, zoomingIn) }
func (c *TickChart) OnDragStart(pointerRatio float64)             { c.vp.OnDragStart(pointerRatio) }
func (c *TickChart) OnDragMove(pointerRatio float64)              { c.vp.OnDragMove(pointerRatio) }
func (c *TickChart) OnDragEnd()                                   { c.vp.OnDragEnd() }

// State exposes the viewport snapshot.
func (c *TickChart) State() viewport.State { return c.vp.State() }

// Hover returns the bar under the pointer.
func (c *TickChart) Hover(pointerRatio float64) (model.LiquidityBar, bool) {
	i := c.vp.NearestIndex(pointerRatio)
	if i < 0 {
		return model.LiquidityBar{}, false
	}
	return c.bars[i], true
}

// VisibleBars returns the bars inside the view window, or the full
// series when fewer than two are visible.
func (c *TickChart) VisibleBars() []model.LiquidityBar {
	start, end := c.vp.Visible()
	return c.bars[start:end]
}

// VisibleSeries is VisibleBars projected onto generic series points.
func (c *TickChart) VisibleSeries() []model.SeriesPoint {
	bars := c.VisibleBars()
	out := make([]model.SeriesPoint, len(bars))
	for i, bar := range bars {
		out[i] = model.SeriesPoint{DomainValue: float64(bar.Tick), Measure: bar.Liquidity}
	}
	return out
}

// Measure selects which history figure a TimeChart plots.
type Measure int

const (
	MeasurePrice Measure = iota
	MeasureVolume
)

// TimeChart is the price or volume history chart, indexed by time.
type TimeChart struct {
	vp      *viewport.Controller
	series  []model.PricePoint
	measure Measure
}

// NewTimeChart builds a chart over a price series. minZoomSpan is the
// smallest visible time window, supplied by the caller.
func NewTimeChart(series []model.PricePoint, measure Measure, minZoomSpan time.Duration) (*TimeChart, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("series is empty")
	}
	points := make([]float64, len(series))
	for i, p := range series {
		points[i] = float64(p.Timestamp)
	}
	vp, err := viewport.New(points, minZoomSpan.Seconds())
	if err != nil {
		return nil, err
	}
	return &TimeChart{vp: vp, series: series, measure: measure}, nil
}

func (c *TimeChart) OnWheel(pointerRatio float64, zoomingIn bool) { c.vp.OnWheel(pointerRatio, zoomingIn) }
func (c *TimeChart) OnDragStart(pointerRatio float64)             { c.vp.OnDragStart(pointerRatio) }
func (c *TimeChart) OnDragMove(pointerRatio float64)              { c.vp.OnDragMove(pointerRatio) }
func (c *TimeChart) OnDragEnd()                                   { c.vp.OnDragEnd() }

// State exposes the viewport snapshot.
func (c *TimeChart) State() viewport.State { return c.vp.State() }

// Hover returns the sample under the pointer.
func (c *TimeChart) Hover(pointerRatio float64) (model.PricePoint, bool) {
	i := c.vp.NearestIndex(pointerRatio)
	if i < 0 {
		return model.PricePoint{}, false
	}
	return c.series[i], true
}

// VisiblePoints returns the samples inside the view window, or the
// full series when fewer than two are visible.
func (c *TimeChart) VisiblePoints() []model.PricePoint {
	start, end := c.vp.Visible()
	return c.series[start:end]
}

// VisibleSeries is VisiblePoints projected onto generic series points.
func (c *TimeChart) VisibleSeries() []model.SeriesPoint {
	points := c.VisiblePoints()
	out := make([]model.SeriesPoint, len(points))
	for i, p := range points {
		out[i] = model.SeriesPoint{DomainValue: float64(p.Timestamp), Measure: c.measureOf(p)}
	}
	return out
}

func (c *TimeChart) measureOf(p model.PricePoint) float64 {
	if c.measure == MeasureVolume {
		return p.Volume
	}
	return p.Price
}
