package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberDecode(t *testing.T) {
	cases := []struct {
		name  string
		json  string
		want  float64
		valid bool
	}{
		{"plain number", `12.5`, 12.5, true},
		{"integer", `3000`, 3000, true},
		{"numeric string", `"12.5"`, 12.5, true},
		{"comma separator", `"2833,5"`, 2833.5, true},
		{"negative string", `"-0,75"`, -0.75, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"garbage string", `"n/a"`, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tc.json), &n))
			got, ok := n.Float()
			assert.Equal(t, tc.valid, ok)
			if tc.valid {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNumberDecodeInsideStruct(t *testing.T) {
	var payload priceStatsPayload
	raw := `{"min":"2833,5","avg":3000.1,"max":null,"price":"oops"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	min, ok := payload.Min.Float()
	require.True(t, ok)
	assert.Equal(t, 2833.5, min)

	avg, ok := payload.Avg.Float()
	require.True(t, ok)
	assert.Equal(t, 3000.1, avg)

	_, ok = payload.Max.Float()
	assert.False(t, ok)

	_, ok = payload.Price.Float()
	assert.False(t, ok, "unparseable string must decode as absent, not zero")
}

func TestNumberHelpers(t *testing.T) {
	var present, absent Number
	require.NoError(t, json.Unmarshal([]byte(`7`), &present))
	require.NoError(t, json.Unmarshal([]byte(`null`), &absent))

	assert.Equal(t, 7.0, present.Or(1))
	assert.Equal(t, 1.0, absent.Or(1))

	require.NotNil(t, present.Ptr())
	assert.Equal(t, 7.0, *present.Ptr())
	assert.Nil(t, absent.Ptr())
}
