package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/openbci/internal/frame"
)

// generateColors spreads n hues around the colour wheel.
func generateColors(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		h := float64(i) / math.Max(float64(n), 1)
		out[i] = hsvToRGB(h, 0.8, 0.9)
	}
	return out
}

func hsvToRGB(h, s, v float64) color.RGBA {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// PlotPNG renders the named channels of f against time as a PNG image.
func PlotPNG(f frame.Frame, channels []string) ([]byte, error) {
	board, _ := f.Meta[frame.MetaBoard].(string)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %d samples", board, f.Samples())
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Value"

	x := offsets(f)
	colors := generateColors(len(channels))
	for i, name := range channels {
		values, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		pts := make(plotter.XYs, len(values))
		for j, v := range values {
			pts[j] = plotter.XY{X: x[j], Y: v}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		l.Color = colors[i]
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(name, l)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
