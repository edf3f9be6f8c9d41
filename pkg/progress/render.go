package progress

import (
	"math"
	"strconv"
	"strings"
)

// render.go turns a frozen view of the bar state into its text form.

const (
	fillGlyph   = '#'
	hollowGlyph = '-'
)

var spinGlyphs = [...]byte{'/', '-', '\\', '|'}

// frame is the input of a single render step.
type frame struct {
	fraction    float64
	width       int
	spin        int
	current     float64
	total       float64
	showDetails bool
	extra       string
}

// render builds the text for f. spun reports whether the spin glyph was
// drawn, in which case the caller advances the spin counter.
func (f frame) render() (text string, spun bool) {
	filled := int(math.Ceil(float64(f.width) * f.fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > f.width {
		filled = f.width
	}

	var sb strings.Builder
	sb.Grow(f.width + len(f.extra) + 48)

	sb.WriteByte('[')
	sb.WriteString(strconv.FormatFloat(f.fraction*100, 'f', 2, 64))
	sb.WriteString("%] [")

	if filled == 0 {
		writeRepeat(&sb, hollowGlyph, f.width)
	} else {
		writeRepeat(&sb, fillGlyph, filled-1)
		if filled < f.width {
			sb.WriteByte(spinGlyphs[f.spin%len(spinGlyphs)])
			spun = true
		} else {
			sb.WriteByte(fillGlyph)
		}
		writeRepeat(&sb, hollowGlyph, f.width-filled)
	}
	sb.WriteByte(']')

	if f.showDetails {
		sb.WriteString(" (")
		sb.WriteString(formatCount(f.current))
		sb.WriteByte('/')
		sb.WriteString(formatCount(f.total))
		sb.WriteByte(')')
	}

	if f.extra != "" {
		sb.WriteString(" - ")
		sb.WriteString(f.extra)
	}

	return sb.String(), spun
}

func writeRepeat(sb *strings.Builder, c byte, n int) {
	for i := 0; i < n; i++ {
		sb.WriteByte(c)
	}
}

// formatCount prints whole numbers without a fractional part and everything
// else in the shortest form that round-trips.
func formatCount(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
