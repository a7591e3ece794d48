// Package dashboard declares the six dashboard charts as configuration over
// the generic aggregation pipeline.
package dashboard

import (
	"context"
	"errors"
	"fmt"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"

	"salesdash/internal/chart"
	"salesdash/internal/engine"
	"salesdash/internal/logging"
)

var ErrUnknownChart = errors.New("unknown chart")

// Spec is one chart: which query it runs and how the result is drawn.
type Spec struct {
	ID      string
	Title   string
	Kind    chart.Kind
	GroupBy []engine.Dimension
	TopN    int
	Order   engine.Order

	// Filters are the dimensions this chart exposes as dropdowns.
	Filters  []engine.Dimension
	Bindings chart.Bindings
}

// Query builds the aggregation request for the given selections. Selections
// on dimensions the chart does not expose are ignored.
func (s Spec) Query(filters engine.FilterSet) engine.Query {
	return engine.Query{
		Filters: filters.Only(s.Filters...),
		GroupBy: s.GroupBy,
		Measure: engine.Quantity,
		TopN:    s.TopN,
		Order:   s.Order,
	}
}

// Specs returns the dashboard charts in layout order. topN bounds the
// ranking charts.
func Specs(topN int) []Spec {
	qty := engine.Quantity.Label()
	return []Spec{
		{
			ID:      "sales-by-year",
			Title:   "Sales by Year",
			Kind:    chart.Bar,
			GroupBy: []engine.Dimension{engine.Year},
			Bindings: chart.Bindings{
				Title: "Total Sales by Year", XTitle: "Year", YTitle: qty,
				Color: chart.ColorByKey, ShowText: true,
			},
		},
		{
			ID:      "top-products",
			Title:   "Sales by Product",
			Kind:    chart.HorizontalBar,
			GroupBy: []engine.Dimension{engine.Product},
			TopN:    topN,
			Order:   engine.ByMeasureDesc,
			Filters: []engine.Dimension{engine.Product, engine.Brand, engine.ProductType},
			Bindings: chart.Bindings{
				Title: fmt.Sprintf("Top %d Products Sold", topN), XTitle: qty, YTitle: "Product",
				Color: chart.ColorByValue, ShowText: true,
			},
		},
		{
			ID:      "top-customers",
			Title:   "Sales by Customer",
			Kind:    chart.HorizontalBar,
			GroupBy: []engine.Dimension{engine.Customer},
			TopN:    topN,
			Order:   engine.ByMeasureDesc,
			Filters: []engine.Dimension{engine.Customer},
			Bindings: chart.Bindings{
				Title: fmt.Sprintf("Top %d Customers by Sales", topN), XTitle: qty, YTitle: "Customer",
				Color: chart.ColorByValue, ShowText: true,
			},
		},
		{
			ID:      "top-stores",
			Title:   "Sales by Store",
			Kind:    chart.Bar,
			GroupBy: []engine.Dimension{engine.Store},
			TopN:    topN,
			Order:   engine.ByMeasureDesc,
			Filters: []engine.Dimension{engine.Store},
			Bindings: chart.Bindings{
				Title: "Top Stores by Sales Volume", XTitle: "Store", YTitle: qty,
				Color: chart.ColorByValue, ShowText: true,
			},
		},
		{
			ID:      "brand-share",
			Title:   "Share by Brand (Pie)",
			Kind:    chart.Pie,
			GroupBy: []engine.Dimension{engine.Brand},
			Filters: []engine.Dimension{engine.Brand},
			Bindings: chart.Bindings{
				Title: "Sales Distribution by Brand",
			},
		},
		{
			ID:      "type-over-time",
			Title:   "Sales by Product Type (Area)",
			Kind:    chart.Area,
			GroupBy: []engine.Dimension{engine.Year, engine.ProductType},
			Filters: []engine.Dimension{engine.ProductType},
			Bindings: chart.Bindings{
				Title: "Sales by Product Type over the Years", XTitle: "Year", YTitle: qty,
			},
		},
	}
}

// Dashboard binds the chart specs to one loaded table. It holds no mutable
// state, so Render is safe for concurrent use.
type Dashboard struct {
	store *engine.ColumnStore
	specs []Spec
	byID  map[string]int
}

func New(store *engine.ColumnStore, specs []Spec) *Dashboard {
	d := &Dashboard{store: store, specs: specs, byID: make(map[string]int, len(specs))}
	for i, s := range specs {
		d.byID[s.ID] = i
	}
	return d
}

func (d *Dashboard) Store() *engine.ColumnStore {
	return d.store
}

func (d *Dashboard) Specs() []Spec {
	return d.specs
}

func (d *Dashboard) Spec(id string) (Spec, error) {
	i, ok := d.byID[id]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownChart, id)
	}
	return d.specs[i], nil
}

// Aggregate runs the pipeline of chart id.
func (d *Dashboard) Aggregate(ctx context.Context, id string, filters engine.FilterSet) (Spec, *engine.Result, error) {
	spec, err := d.Spec(id)
	if err != nil {
		return Spec{}, nil, err
	}
	q := spec.Query(filters)
	res, err := d.store.Aggregate(q)
	if err != nil {
		return Spec{}, nil, fmt.Errorf("chart %s: %w", id, err)
	}
	logging.Debugf(ctx, "chart %s: %d groups (filtered: %t)", id, res.Len(), !q.Filters.IsEmpty())
	return spec, res, nil
}

// Render runs the pipeline of chart id and draws the result.
func (d *Dashboard) Render(ctx context.Context, id string, filters engine.FilterSet) (*grob.Fig, error) {
	spec, res, err := d.Aggregate(ctx, id, filters)
	if err != nil {
		return nil, err
	}
	return chart.Render(res, spec.Kind, spec.Bindings), nil
}
