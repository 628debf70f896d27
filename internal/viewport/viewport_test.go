package viewport

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticks(from, to, step float64) []float64 {
	var out []float64
	for v := from; v <= to; v += step {
		out = append(out, v)
	}
	return out
}

func TestNewShowsFullDomain(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	min, max := c.View()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 1000.0, max)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, 10)
	assert.Error(t, err)

	_, err = New([]float64{1, 2}, 0)
	assert.Error(t, err)

	_, err = New([]float64{3, 1, 2}, 10)
	assert.Error(t, err)
}

func TestWheelZoomKeepsAnchorUnderPointer(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	// Zoom in a little first so the window is not pinned to the domain
	// edges and the anchor is free to stay in place.
	c.OnWheel(0.5, true)
	c.OnWheel(0.5, true)

	viewMin, _ := c.View()
	ratio := 0.3
	anchor := viewMin + ratio*c.State().ZoomRange

	c.OnWheel(ratio, true)

	viewMin, _ = c.View()
	gotAnchor := viewMin + ratio*c.State().ZoomRange
	assert.InDelta(t, anchor, gotAnchor, 1e-9)
}

func TestWheelZoomFactors(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	before := c.State().ZoomRange
	c.OnWheel(0.5, true)
	assert.InDelta(t, before*0.85, c.State().ZoomRange, 1e-9)

	before = c.State().ZoomRange
	c.OnWheel(0.5, false)
	assert.InDelta(t, before*1.15, c.State().ZoomRange, 1e-9)
}

func TestZoomOutClampsToDomain(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		c.OnWheel(0.2, false)
	}

	assert.Equal(t, 1000.0, c.State().ZoomRange)
	min, max := c.View()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 1000.0, max)
}

func TestZoomInClampsToMinZoom(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		c.OnWheel(0.5, true)
	}

	assert.Equal(t, 50.0, c.State().ZoomRange)
}

func TestDragPansAndClamps(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	c.OnWheel(0.5, true) // 850 span, centered

	c.OnDragStart(0.5)
	c.OnDragMove(0.6) // pointer moved right, content follows, view moves left
	viewMin, _ := c.View()
	assert.Equal(t, 0.0, viewMin, "window must not extend past domainMin")

	c.OnDragMove(0.0)
	_, viewMax := c.View()
	assert.Equal(t, 1000.0, viewMax, "window must not extend past domainMax")
	c.OnDragEnd()
}

func TestRandomGesturesKeepInvariants(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			c.OnWheel(rng.Float64(), true)
		case 1:
			c.OnWheel(rng.Float64(), false)
		case 2:
			c.OnDragStart(rng.Float64())
		case 3:
			c.OnDragMove(rng.Float64())
		}

		st := c.State()
		require.GreaterOrEqual(t, st.ZoomRange, 50.0, "step %d", i)
		require.LessOrEqual(t, st.ZoomRange, 1000.0, "step %d", i)

		viewMin, viewMax := c.View()
		require.GreaterOrEqual(t, viewMin, 0.0-1e-9, "step %d", i)
		require.LessOrEqual(t, viewMax, 1000.0+1e-9, "step %d", i)
	}
}

func TestNearestIndex(t *testing.T) {
	c, err := New([]float64{0, 10, 20, 30, 40}, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, c.NearestIndex(0))
	assert.Equal(t, 4, c.NearestIndex(1))
	assert.Equal(t, 1, c.NearestIndex(0.26)) // 10.4 is closest to 10
	assert.Equal(t, 2, c.NearestIndex(0.49)) // 19.6 is closest to 20
}

func TestVisibleFallsBackOnSparseWindow(t *testing.T) {
	c, err := New([]float64{0, 100, 200, 300, 400}, 10)
	require.NoError(t, err)

	// Zoom until the window covers at most one point.
	for i := 0; i < 30; i++ {
		c.OnWheel(0.5, true)
	}

	start, end := c.Visible()
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end, "sparse window must fall back to the full series")
}

func TestVisibleReturnsWindowedSlice(t *testing.T) {
	c, err := New(ticks(0, 1000, 10), 50)
	require.NoError(t, err)

	c.OnWheel(0.5, true)
	c.OnWheel(0.5, true)

	start, end := c.Visible()
	viewMin, viewMax := c.View()
	require.Greater(t, end-start, 2)
	for i := start; i < end; i++ {
		assert.GreaterOrEqual(t, c.Point(i), viewMin)
		assert.LessOrEqual(t, c.Point(i), viewMax)
	}
}
