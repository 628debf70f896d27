package chart

import (
	"strings"

	"rangescope/internal/model"
)

const (
	fullBlock   = '█'
	markerBlock = '▲'
)

// Render draws the visible bars as a fixed-height terminal column
// chart, with a marker row under the column holding the current tick.
func (c *TickChart) Render(height int) string {
	return renderColumns(c.VisibleSeries(), height, func(p model.SeriesPoint) bool {
		return int(p.DomainValue) == c.currentTick
	})
}

// Render draws the visible samples as a fixed-height terminal column
// chart.
func (c *TimeChart) Render(height int) string {
	return renderColumns(c.VisibleSeries(), height, nil)
}

func renderColumns(points []model.SeriesPoint, height int, marked func(model.SeriesPoint) bool) string {
	if len(points) == 0 || height <= 0 {
		return ""
	}

	min, max := points[0].Measure, points[0].Measure
	for _, p := range points {
		if p.Measure < min {
			min = p.Measure
		}
		if p.Measure > max {
			max = p.Measure
		}
	}
	span := max - min
	if span <= 0 {
		span = 1
	}

	levels := make([]int, len(points))
	for i, p := range points {
		level := int((p.Measure - min) / span * float64(height))
		if level == 0 && p.Measure > min {
			level = 1
		}
		if level > height {
			level = height
		}
		levels[i] = level
	}

	var b strings.Builder
	for row := height; row >= 1; row-- {
		for _, level := range levels {
			if level >= row {
				b.WriteRune(fullBlock)
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}

	if marked != nil {
		var markerRow strings.Builder
		any := false
		for _, p := range points {
			if marked(p) {
				markerRow.WriteRune(markerBlock)
				any = true
			} else {
				markerRow.WriteByte(' ')
			}
		}
		if any {
			b.WriteString(strings.TrimRight(markerRow.String(), " "))
			b.WriteByte('\n')
		}
	}

	return b.String()
}
