package report

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cwbudde/curvefit/internal/fit"
)

// PlotSize is the edge length of the square plot canvas
const PlotSize = 8 * vg.Inch

var (
	observedColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	predictedColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Series is a set of observed points and the curve predicted for them
type Series struct {
	ObservedX  []float64
	ObservedY  []float64
	PredictedX []float64
	PredictedY []float64
}

// NewSeries evaluates the model at the observation times
func NewSeries(obs *fit.Observations, p fit.Params) *Series {
	px, py := fit.Predict(p, obs.T)
	return &Series{
		ObservedX:  obs.X,
		ObservedY:  obs.Y,
		PredictedX: px,
		PredictedY: py,
	}
}

// SupportedFormat reports whether path has an extension SavePlot can write
func SupportedFormat(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg", ".eps", ".tif", ".tiff":
		return true
	}
	return false
}

// NewPlot builds the observed vs predicted scatter plot with equal data
// spans on both axes.
func NewPlot(s *Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Observed vs Predicted"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Legend.Top = true

	observed, err := plotter.NewScatter(toXYs(s.ObservedX, s.ObservedY))
	if err != nil {
		return nil, fmt.Errorf("observed points: %w", err)
	}
	observed.GlyphStyle.Color = observedColor
	observed.GlyphStyle.Radius = vg.Points(2)
	observed.Shape = draw.CircleGlyph{}

	predicted, err := plotter.NewScatter(toXYs(s.PredictedX, s.PredictedY))
	if err != nil {
		return nil, fmt.Errorf("predicted points: %w", err)
	}
	predicted.GlyphStyle.Color = predictedColor
	predicted.GlyphStyle.Radius = vg.Points(2.5)
	predicted.Shape = draw.CrossGlyph{}

	p.Add(observed, predicted)
	p.Legend.Add("observed", observed)
	p.Legend.Add("predicted", predicted)

	xmin, xmax, ymin, ymax := equalAspect(
		append(append([]float64(nil), s.ObservedX...), s.PredictedX...),
		append(append([]float64(nil), s.ObservedY...), s.PredictedY...),
	)
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	return p, nil
}

// SavePlot writes the plot to path; the format follows the file extension
func SavePlot(path string, s *Series) error {
	if !SupportedFormat(path) {
		return fmt.Errorf("unsupported plot format: %s", filepath.Ext(path))
	}

	p, err := NewPlot(s)
	if err != nil {
		return err
	}
	if err := p.Save(PlotSize, PlotSize, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}

	slog.Info("Plot saved", "path", path)
	return nil
}

func toXYs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	return pts
}

// equalAspect returns axis ranges that cover all points with the same span
// on both axes, padded by 5%.
func equalAspect(xs, ys []float64) (xmin, xmax, ymin, ymax float64) {
	xmin, xmax = finiteRange(xs)
	ymin, ymax = finiteRange(ys)

	span := math.Max(xmax-xmin, ymax-ymin)
	if span == 0 {
		span = 1
	}
	span *= 1.05

	xc := (xmin + xmax) / 2
	yc := (ymin + ymax) / 2
	return xc - span/2, xc + span/2, yc - span/2, yc + span/2
}

func finiteRange(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
