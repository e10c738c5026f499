// Package plot renders diagnostic time series as PNG line charts.
package plot

import (
	"math"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
	"github.com/oceanstats/mpas-diag/internal/timeseries"
)

// Line is one series on a figure.
type Line struct {
	Series *timeseries.Series
	Style  string
	Width  float64 // points
	Label  string
}

// Figure describes one chart.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Lines  []Line
	// MovingAverage is the centred running-mean length applied to every
	// line; 0 or 1 plots raw values.
	MovingAverage int
}

// Options size the output image.
type Options struct {
	Width         vg.Length
	Height        vg.Length
	TitleFontSize float64
	AxisFontSize  float64
}

// DefaultOptions is a 15x6 inch figure.
func DefaultOptions() Options {
	return Options{Width: 15 * vg.Inch, Height: 6 * vg.Inch, TitleFontSize: 14, AxisFontSize: 12}
}

// Renderer writes figures to image files.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer; zero option fields take their defaults.
func NewRenderer(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.TitleFontSize <= 0 {
		opts.TitleFontSize = def.TitleFontSize
	}
	if opts.AxisFontSize <= 0 {
		opts.AxisFontSize = def.AxisFontSize
	}
	return &Renderer{opts: opts}
}

// Render draws fig and saves it to path; the image format follows the file
// extension.
func (r *Renderer) Render(fig Figure, path string) error {
	if len(fig.Lines) == 0 {
		return diagerr.Dataf("plot: figure %q has no lines", fig.Title)
	}

	p := gplot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.Title.TextStyle.Font.Size = vg.Points(r.opts.TitleFontSize)
	p.X.Label.TextStyle.Font.Size = vg.Points(r.opts.AxisFontSize)
	p.Y.Label.TextStyle.Font.Size = vg.Points(r.opts.AxisFontSize)
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	drawn := 0
	for _, ln := range fig.Lines {
		st, err := ParseStyle(ln.Style)
		if err != nil {
			return err
		}
		s := ln.Series.MovingAverage(fig.MovingAverage)
		segments := Segments(s.DecimalYears(), s.Values)
		for i, seg := range segments {
			l, err := plotter.NewLine(seg)
			if err != nil {
				return eris.Wrapf(err, "plot: line %s", ln.Series.Name)
			}
			l.LineStyle = draw.LineStyle{Color: st.Color, Width: vg.Points(ln.Width), Dashes: st.Dashes}
			p.Add(l)
			if i == 0 && ln.Label != "" {
				p.Legend.Add(ln.Label, l)
			}
			drawn++
		}
	}
	if drawn == 0 {
		zap.L().Warn("no finite points to plot",
			zap.String("component", "plot"),
			zap.String("file", path),
			zap.Int("moving_average", fig.MovingAverage),
		)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return diagerr.Config(eris.Wrapf(err, "plot: create %s", filepath.Dir(path)))
	}
	if err := p.Save(r.opts.Width, r.opts.Height, path); err != nil {
		return eris.Wrapf(err, "plot: save %s", path)
	}
	zap.L().Info("wrote plot", zap.String("component", "plot"), zap.String("file", path))
	return nil
}

// Segments splits x/y into runs of finite y values.
func Segments(x, y []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i := range y {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: x[i], Y: y[i]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
