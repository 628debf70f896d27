package tickmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToTickRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		tick    int
		spacing int
		adjust  float64
	}{
		{"zero tick", 0, 10, 1},
		{"positive aligned", 6930, 10, 1},
		{"negative aligned", -19740, 60, 1},
		{"wide spacing", 2400, 200, 1},
		{"decimal adjusted", 600, 60, 1e-12},
		{"near upper bound", 887270, 10, 1},
		{"near lower bound", -887270, 10, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price := TickToPrice(tc.tick, tc.adjust)
			got, err := PriceToTick(price, tc.spacing, tc.adjust, true)
			require.NoError(t, err)
			assert.Equal(t, tc.tick, got)

			got, err = PriceToTick(price, tc.spacing, tc.adjust, false)
			require.NoError(t, err)
			assert.Equal(t, tc.tick, got)
		})
	}
}

func TestPriceToTickRounding(t *testing.T) {
	// A price strictly between two boundaries rounds per roundDown.
	price := TickToPrice(105, 1)

	down, err := PriceToTick(price, 10, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 100, down)

	up, err := PriceToTick(price, 10, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 110, up)
}

func TestPriceToTickInvalid(t *testing.T) {
	_, err := PriceToTick(0, 10, 1, true)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = PriceToTick(-5, 10, 1, true)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = PriceToTick(100, 0, 1, true)
	assert.ErrorIs(t, err, ErrInvalidSpacing)

	_, err = PriceToTick(100, 10, 0, true)
	assert.ErrorIs(t, err, ErrInvalidDecimalAdjust)

	_, err = PriceToTick(math.Inf(1), 10, 1, true)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestPriceToTickClamps(t *testing.T) {
	huge := TickToPrice(MaxTick, 1) * 2
	tick, err := PriceToTick(huge, 10, 1, false)
	require.NoError(t, err)
	assert.Equal(t, MaxTick, tick)

	tiny := TickToPrice(MinTick, 1) / 2
	tick, err = PriceToTick(tiny, 10, 1, true)
	require.NoError(t, err)
	assert.Equal(t, MinTick, tick)
}

func TestSnapIdempotent(t *testing.T) {
	prices := []float64{0.0001, 0.9, 1, 1500.37, 2833.5, 3242.4, 1e9}
	spacings := []int{1, 10, 60, 200}

	for _, roundDown := range []bool{true, false} {
		for _, spacing := range spacings {
			for _, price := range prices {
				once, err := Snap(price, spacing, 1, roundDown)
				require.NoError(t, err)
				twice, err := Snap(once, spacing, 1, roundDown)
				require.NoError(t, err)
				assert.Equal(t, once, twice,
					"snap not idempotent: price=%v spacing=%d roundDown=%v", price, spacing, roundDown)
			}
		}
	}
}

func TestSnapOnBoundaryIgnoresRounding(t *testing.T) {
	boundary := TickToPrice(120, 1)

	down, err := Snap(boundary, 60, 1, true)
	require.NoError(t, err)
	up, err := Snap(boundary, 60, 1, false)
	require.NoError(t, err)

	assert.Equal(t, down, up)
	assert.InEpsilon(t, boundary, down, 1e-12)
}

func TestSnapInvalid(t *testing.T) {
	_, err := Snap(-1, 10, 1, true)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = Snap(100, -10, 1, true)
	assert.ErrorIs(t, err, ErrInvalidSpacing)
}

func TestStepTickRoundTrip(t *testing.T) {
	for _, tick := range []int{-600, 0, 60, 11940} {
		start := TickToPrice(tick, 1)

		up, err := StepTick(start, 1, 60, 1)
		require.NoError(t, err)
		back, err := StepTick(up, -1, 60, 1)
		require.NoError(t, err)

		assert.InEpsilon(t, start, back, 1e-9, "tick=%d", tick)
	}
}

func TestStepTickFromUnalignedPrice(t *testing.T) {
	// Between boundaries 100 and 110: stepping up lands on 110,
	// stepping down lands on 100.
	price := TickToPrice(105, 1)

	up, err := StepTick(price, 1, 10, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, TickToPrice(110, 1), up, 1e-9)

	down, err := StepTick(price, -1, 10, 1)
	require.NoError(t, err)
	assert.InEpsilon(t, TickToPrice(100, 1), down, 1e-9)
}

func TestStepTickInvalidDirection(t *testing.T) {
	_, err := StepTick(100, 0, 10, 1)
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestClampTick(t *testing.T) {
	assert.Equal(t, MinTick, ClampTick(MinTick-1))
	assert.Equal(t, MaxTick, ClampTick(MaxTick+1))
	assert.Equal(t, 42, ClampTick(42))
}
