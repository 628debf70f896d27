package model

// PriceRange is the user-facing price range for a position.
// MinText and MaxText hold the displayed strings; when IsFullRange is
// true they carry the sentinel values "0" and "∞".
type PriceRange struct {
	MinText     string  `json:"min_text"`
	MaxText     string  `json:"max_text"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	IsFullRange bool    `json:"is_full_range"`
}

// TickBounds is the tick-space projection of a price range.
type TickBounds struct {
	LowerTick     int     `json:"lower_tick"`
	UpperTick     int     `json:"upper_tick"`
	Spacing       int     `json:"spacing"`
	DecimalAdjust float64 `json:"decimal_adjust"`
}

// RangeSuggestion is a server-side range proposal for a pool.
type RangeSuggestion struct {
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	TickSpacing int32   `json:"tick_spacing"`
}
