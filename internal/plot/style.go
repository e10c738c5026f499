package plot

import (
	"image/color"
	"strings"

	"gonum.org/v1/plot/vg"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// Style is a parsed line format code such as "r-", "b--" or "k-.".
type Style struct {
	Color  color.Color
	Dashes []vg.Length
}

var colorCodes = map[byte]color.Color{
	'b': color.RGBA{B: 255, A: 255},
	'g': color.RGBA{G: 128, A: 255},
	'r': color.RGBA{R: 255, A: 255},
	'c': color.RGBA{G: 191, B: 191, A: 255},
	'm': color.RGBA{R: 191, B: 191, A: 255},
	'y': color.RGBA{R: 191, G: 191, A: 255},
	'k': color.RGBA{A: 255},
	'w': color.RGBA{R: 255, G: 255, B: 255, A: 255},
}

var dashCodes = map[string][]vg.Length{
	"-":  nil,
	"--": {vg.Points(6), vg.Points(3)},
	"-.": {vg.Points(6), vg.Points(2), vg.Points(1.5), vg.Points(2)},
	":":  {vg.Points(1.5), vg.Points(2)},
}

// ParseStyle reads an optional colour letter followed by an optional line
// style. An empty code is a solid black line.
func ParseStyle(code string) (Style, error) {
	st := Style{Color: colorCodes['k']}
	rest := code
	if rest != "" {
		if c, ok := colorCodes[rest[0]]; ok {
			st.Color = c
			rest = rest[1:]
		}
	}
	if rest == "" {
		return st, nil
	}
	dashes, ok := dashCodes[strings.TrimSpace(rest)]
	if !ok {
		return Style{}, diagerr.Configf("plot: unknown line style %q", code)
	}
	st.Dashes = dashes
	return st, nil
}
