package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"rangescope/internal/model"
)

// Number decodes a backend numeric field that may arrive as a JSON
// number, a numeric string, or a string using ',' as the decimal
// separator. Missing, null, and non-finite values decode as absent
// rather than zero.
type Number struct {
	value float64
	valid bool
}

// Float returns the decoded value and whether it was present and finite.
func (n Number) Float() (float64, bool) {
	return n.value, n.valid
}

// Ptr returns the value as a pointer, nil when absent.
func (n Number) Ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}

// Or returns the value or fallback when absent.
func (n Number) Or(fallback float64) float64 {
	if !n.valid {
		return fallback
	}
	return n.value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	n.value = 0
	n.valid = false

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode numeric string: %w", err)
		}
		if s == "" {
			return nil
		}
		v, err := model.ParseDecimal(s)
		if err != nil {
			// Unparseable strings count as absent, not as decode
			// failures, so one bad field cannot fail a whole payload.
			return nil
		}
		n.value = v
		n.valid = true
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode number: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.value = v
	n.valid = true
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.value, 'f', -1, 64)), nil
}
