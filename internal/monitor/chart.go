package monitor

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/openbci/internal/frame"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// offsets returns the sample times in seconds relative to the first sample.
func offsets(f frame.Frame) []float64 {
	out := make([]float64, len(f.Index))
	for i, t := range f.Index {
		out[i] = t.Sub(f.Index[0]).Seconds()
	}
	return out
}

// RenderChart writes an HTML line chart of the named channels of f.
func RenderChart(w io.Writer, f frame.Frame, channels []string) error {
	board, _ := f.Meta[frame.MetaBoard].(string)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "OpenBCI Latest Frame", Theme: "dark", Width: "1200px", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: board, Subtitle: fmt.Sprintf("samples=%d rate=%dHz", f.Samples(), f.Rate())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Value", NameLocation: "middle", NameGap: 40}),
	)

	x := make([]string, f.Samples())
	for i, s := range offsets(f) {
		x[i] = strconv.FormatFloat(s, 'f', 3, 64)
	}
	line.SetXAxis(x)

	for _, name := range channels {
		values, ok := f.Column(name)
		if !ok {
			return fmt.Errorf("unknown channel %q", name)
		}
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line.Render(w)
}
