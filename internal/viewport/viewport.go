// Package viewport implements a one dimensional pan/zoom/hover engine
// over an ordered numeric domain. The same engine drives the
// tick-indexed liquidity chart and the time-indexed history charts;
// callers supply the domain points and the minimum zoom span.
package viewport

import (
	"fmt"
	"math"
	"sort"
)

// Zoom factors applied per wheel notch.
const (
	zoomInFactor  = 0.85
	zoomOutFactor = 1.15
)

// State is a snapshot of the visible window configuration.
type State struct {
	DomainMin  float64
	DomainMax  float64
	ZoomRange  float64
	ZoomCenter float64
}

// Controller owns one viewport over a sorted point set.
type Controller struct {
	points  []float64
	minZoom float64

	domainMin  float64
	domainMax  float64
	zoomRange  float64
	zoomCenter float64

	dragging  bool
	lastRatio float64
}

// New builds a controller showing the full domain. Points must be
// sorted ascending; minZoom is the smallest allowed window span.
func New(points []float64, minZoom float64) (*Controller, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("viewport requires at least one point")
	}
	if minZoom <= 0 {
		return nil, fmt.Errorf("min zoom must be positive")
	}
	for i := 1; i < len(points); i++ {
		if points[i] < points[i-1] {
			return nil, fmt.Errorf("points must be sorted ascending")
		}
	}

	c := &Controller{
		points:    points,
		minZoom:   minZoom,
		domainMin: points[0],
		domainMax: points[len(points)-1],
	}
	c.zoomRange = c.domainMax - c.domainMin
	if c.zoomRange < minZoom {
		c.zoomRange = minZoom
	}
	c.zoomCenter = (c.domainMin + c.domainMax) / 2
	return c, nil
}

// State returns the current viewport snapshot.
func (c *Controller) State() State {
	return State{
		DomainMin:  c.domainMin,
		DomainMax:  c.domainMax,
		ZoomRange:  c.zoomRange,
		ZoomCenter: c.zoomCenter,
	}
}

// View returns the visible window bounds.
func (c *Controller) View() (min, max float64) {
	half := c.zoomRange / 2
	return c.zoomCenter - half, c.zoomCenter + half
}

// OnWheel zooms around the point under the pointer. pointerRatio is the
// pointer position inside the view, 0 at the left edge and 1 at the
// right; that point stays under the pointer after the zoom.
func (c *Controller) OnWheel(pointerRatio float64, zoomingIn bool) {
	ratio := clampRatio(pointerRatio)

	viewMin, _ := c.View()
	anchor := viewMin + ratio*c.zoomRange

	factor := zoomOutFactor
	if zoomingIn {
		factor = zoomInFactor
	}
	newRange := c.clampRange(c.zoomRange * factor)

	newViewMin := anchor - ratio*newRange
	c.zoomRange = newRange
	c.zoomCenter = newViewMin + newRange/2
	c.clampCenter()
}

// OnDragStart begins a pan gesture at the given pointer ratio.
func (c *Controller) OnDragStart(pointerRatio float64) {
	c.dragging = true
	c.lastRatio = clampRatio(pointerRatio)
}

// OnDragMove pans the view window. A move without a preceding start is
// treated as a start.
func (c *Controller) OnDragMove(pointerRatio float64) {
	ratio := clampRatio(pointerRatio)
	if !c.dragging {
		c.OnDragStart(ratio)
		return
	}
	delta := ratio - c.lastRatio
	c.lastRatio = ratio
	c.zoomCenter -= delta * c.zoomRange
	c.clampCenter()
}

// OnDragEnd finishes a pan gesture.
func (c *Controller) OnDragEnd() {
	c.dragging = false
}

// NearestIndex maps a pointer ratio to the index of the closest point,
// for hover/tooltip display.
func (c *Controller) NearestIndex(pointerRatio float64) int {
	viewMin, _ := c.View()
	target := viewMin + clampRatio(pointerRatio)*c.zoomRange

	i := sort.SearchFloat64s(c.points, target)
	if i == 0 {
		return 0
	}
	if i == len(c.points) {
		return len(c.points) - 1
	}
	if target-c.points[i-1] <= c.points[i]-target {
		return i - 1
	}
	return i
}

// Visible returns the half-open index range [start, end) of points
// inside the view window. When fewer than two points are visible the
// full series is returned instead, so the caller never renders a
// degenerate single-bar view.
func (c *Controller) Visible() (start, end int) {
	viewMin, viewMax := c.View()
	start = sort.SearchFloat64s(c.points, viewMin)
	end = sort.Search(len(c.points), func(i int) bool { return c.points[i] > viewMax })
	if end-start < 2 {
		return 0, len(c.points)
	}
	return start, end
}

// Point returns the domain value at index i.
func (c *Controller) Point(i int) float64 {
	return c.points[i]
}

// Len returns the number of domain points.
func (c *Controller) Len() int {
	return len(c.points)
}

func (c *Controller) clampRange(r float64) float64 {
	domain := c.domainMax - c.domainMin
	if r < c.minZoom {
		r = c.minZoom
	}
	if domain > 0 && r > domain && c.minZoom <= domain {
		r = domain
	}
	return r
}

func (c *Controller) clampCenter() {
	domain := c.domainMax - c.domainMin
	if c.zoomRange >= domain {
		c.zoomCenter = (c.domainMin + c.domainMax) / 2
		return
	}
	half := c.zoomRange / 2
	c.zoomCenter = math.Max(c.domainMin+half, math.Min(c.zoomCenter, c.domainMax-half))
}

func clampRatio(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(0, math.Min(1, r))
}
