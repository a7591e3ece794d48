// Package chart turns aggregation results into plotly figures.
// It holds no filtering or aggregation logic.
package chart

import (
	"sort"
	"strconv"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"

	"salesdash/internal/engine"
)

// Kind selects the chart encoding.
type Kind string

const (
	Bar           Kind = "bar"
	HorizontalBar Kind = "hbar"
	Pie           Kind = "pie"
	Area          Kind = "area"
)

// ColorMode chooses what drives bar colors.
type ColorMode int

const (
	ColorNone ColorMode = iota
	ColorByKey
	ColorByValue
)

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Bindings maps result columns to visual channels.
type Bindings struct {
	Title  string
	XTitle string
	YTitle string
	Color  ColorMode

	// ShowText prints the measure on each bar.
	ShowText bool
}

// Annotation is a free-floating layout note.
type Annotation struct {
	Text      string  `json:"text"`
	ShowArrow bool    `json:"showarrow"`
	XRef      string  `json:"xref"`
	YRef      string  `json:"yref"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// NoDataText is shown on a figure whose result has no groups.
const NoDataText = "No data for the current selection"

// Render maps res onto a figure of the given kind. An empty result renders a
// figure without points.
func Render(res *engine.Result, kind Kind, b Bindings) *grob.Fig {
	layout := &grob.Layout{
		Title:      &grob.LayoutTitle{Text: b.Title},
		Showlegend: grob.False,
	}
	if kind == Pie || kind == Area {
		layout.Showlegend = grob.True
	}
	if kind != Pie {
		layout.Xaxis = &grob.LayoutXaxis{Title: &grob.LayoutXaxisTitle{Text: b.XTitle}}
		layout.Yaxis = &grob.LayoutYaxis{Title: &grob.LayoutYaxisTitle{Text: b.YTitle}}
	}
	fig := &grob.Fig{Data: grob.Traces{}, Layout: layout}

	if res == nil || res.Len() == 0 {
		layout.Annotations = []Annotation{{
			Text: NoDataText, XRef: "paper", YRef: "paper", X: 0.5, Y: 0.5,
		}}
		return fig
	}

	switch kind {
	case Pie:
		fig.Data = append(fig.Data, pieTrace(res))
	case Area:
		for _, t := range areaTraces(res) {
			fig.Data = append(fig.Data, t)
		}
		// Years are categories on the axis, not a continuous scale.
		layout.Xaxis.Type = grob.LayoutXaxisTypeCategory
	case HorizontalBar:
		fig.Data = append(fig.Data, barTrace(res, true, b))
		// Largest first reads top-down.
		layout.Yaxis.Autorange = grob.LayoutYaxisAutorangeReversed
		layout.Yaxis.Type = grob.LayoutYaxisTypeCategory
	default:
		fig.Data = append(fig.Data, barTrace(res, false, b))
		layout.Xaxis.Type = grob.LayoutXaxisTypeCategory
	}
	return fig
}

func barTrace(res *engine.Result, horizontal bool, b Bindings) *grob.Bar {
	labels := make([]any, res.Len())
	values := make([]any, res.Len())
	colors := make([]any, res.Len())
	text := make([]string, 0, res.Len())
	for i, g := range res.Groups {
		labels[i] = keyLabel(g)
		values[i] = g.Value
		if b.ShowText {
			text = append(text, formatValue(g.Value))
		}
		switch b.Color {
		case ColorByKey:
			colors[i] = defaultColors[i%len(defaultColors)]
		case ColorByValue:
			colors[i] = g.Value
		}
	}

	t := &grob.Bar{Type: grob.TraceTypeBar}
	if len(text) > 0 {
		t.Text = text
	}
	if horizontal {
		t.Orientation = grob.BarOrientationH
		t.X, t.Y = values, labels
	} else {
		t.X, t.Y = labels, values
	}
	switch b.Color {
	case ColorByKey:
		t.Marker = &grob.BarMarker{Color: colors}
	case ColorByValue:
		t.Marker = &grob.BarMarker{Color: colors, Colorscale: "Viridis", Showscale: grob.True}
	}
	return t
}

func pieTrace(res *engine.Result) *grob.Pie {
	labels := make([]string, res.Len())
	values := make([]float64, res.Len())
	for i, g := range res.Groups {
		labels[i] = keyLabel(g)
		values[i] = g.Value
	}
	return &grob.Pie{Type: grob.TraceTypePie, Labels: labels, Values: values}
}

// areaTraces splits a two-dimension result into one stacked series per value
// of the second dimension. Missing (x, series) cells stack as zero.
func areaTraces(res *engine.Result) []*grob.Scatter {
	if len(res.GroupBy) < 2 {
		xs := make([]any, res.Len())
		ys := make([]any, res.Len())
		for i, g := range res.Groups {
			xs[i] = keyLabel(g)
			ys[i] = g.Value
		}
		return []*grob.Scatter{{
			Type: grob.TraceTypeScatter, Mode: grob.ScatterModeLines, Stackgroup: "one", X: xs, Y: ys,
		}}
	}

	var xs, series []string
	seenX := make(map[string]bool)
	seenS := make(map[string]bool)
	cells := make(map[[2]string]float64)
	for _, g := range res.Groups {
		x, s := g.Key[0], g.Key[1]
		if !seenX[x] {
			seenX[x] = true
			xs = append(xs, x)
		}
		if !seenS[s] {
			seenS[s] = true
			series = append(series, s)
		}
		cells[[2]string{x, s}] += g.Value
	}
	sort.Strings(series)

	traces := make([]*grob.Scatter, 0, len(series))
	for i, s := range series {
		x := make([]any, len(xs))
		y := make([]any, len(xs))
		for j, v := range xs {
			x[j] = v
			y[j] = cells[[2]string{v, s}]
		}
		traces = append(traces, &grob.Scatter{
			Type:       grob.TraceTypeScatter,
			Name:       s,
			Mode:       grob.ScatterModeLines,
			Stackgroup: "one",
			X:          x,
			Y:          y,
			Marker:     &grob.ScatterMarker{Color: defaultColors[i%len(defaultColors)]},
		})
	}
	return traces
}

func keyLabel(g engine.Group) string {
	if len(g.Key) == 0 {
		return "Total"
	}
	return g.Key[0]
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
