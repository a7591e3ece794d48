package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/dashboard"
	"salesdash/internal/engine"
	"salesdash/internal/models"
)

// Row 0: 2020, Shirt, Acme, Clothing,  Ana,   Center, 5
// Row 1: 2020, Jeans, Acme, Clothing,  Bruno, North,  3
// Row 2: 2021, Shirt, Acme, Clothing,  Ana,   Center, 7
// Row 3: 2021, Watch, Tick, Accessory, Carla, North,  2
func fixtureStore() *engine.ColumnStore {
	return &engine.ColumnStore{
		Dates: []time.Time{
			time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC),
			time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Years:      []int32{2020, 2020, 2021, 2021},
		Quantities: []float64{5, 3, 7, 2},

		CustomerKeys: []string{"1", "2", "1", "3"},
		StoreKeys:    []string{"1", "2", "1", "2"},
		SKUs:         []string{"S", "J", "S", "W"},

		CustomerIDs:    []int32{0, 1, 0, 2},
		StoreIDs:       []int32{0, 1, 0, 1},
		ProductIDs:     []int32{0, 1, 0, 2},
		BrandIDs:       []int32{0, 0, 0, 1},
		ProductTypeIDs: []int32{0, 0, 0, 1},

		CustomerDict:    []string{"Ana Lima", "Bruno Reis", "Carla Dias"},
		StoreDict:       []string{"Center", "North"},
		ProductDict:     []string{"Shirt", "Jeans", "Watch"},
		BrandDict:       []string{"Acme", "Tick"},
		ProductTypeDict: []string{"Clothing", "Accessory"},
	}
}

// figure is the client-side view of a plotly figure.
type figure struct {
	Data []struct {
		Type string `json:"type"`
		X    []any  `json:"x"`
		Y    []any  `json:"y"`
	} `json:"data"`
	Layout struct {
		Annotations []struct {
			Text string `json:"text"`
		} `json:"annotations"`
	} `json:"layout"`
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	dash := dashboard.New(fixtureStore(), dashboard.Specs(2))
	h, err := NewHandler(dash, "Test Dashboard")
	require.NoError(t, err)
	e, err := NewEcho(ServerOptions{}, h)
	require.NoError(t, err)
	return e
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetPage(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Test Dashboard")
	assert.Contains(t, body, `id="chart-sales-by-year"`)
	assert.Contains(t, body, `name="brand"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestGetHealth(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var h models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 4, h.Rows)
	assert.Equal(t, 17.0, h.Quantity)
}

func TestListCharts(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/api/charts")

	require.Equal(t, http.StatusOK, rec.Code)
	var charts []models.ChartInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charts))
	require.Len(t, charts, 6)
	assert.Equal(t, "sales-by-year", charts[0].ID)
	assert.Empty(t, charts[0].FilterKeys)
	assert.Equal(t, []string{"product", "brand", "product_type"}, charts[1].FilterKeys)
}

func TestGetChartAppliesMultiSelect(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/api/charts/top-products?brand=Acme&brand=Nobody&customer=Carla+Dias")

	require.Equal(t, http.StatusOK, rec.Code)
	var fig figure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fig))
	require.Len(t, fig.Data, 1)

	// customer is not a filter of this chart and must not narrow it
	assert.Equal(t, []any{"Shirt", "Jeans"}, fig.Data[0].Y)
	assert.Equal(t, []any{12.0, 3.0}, fig.Data[0].X)
}

func TestGetChartEmptySelectionIsNotAnError(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/api/charts/brand-share?brand=Gone")

	require.Equal(t, http.StatusOK, rec.Code)
	var fig figure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fig))
	assert.Empty(t, fig.Data)
	assert.NotEmpty(t, fig.Layout.Annotations)
}

func TestUnknownChart(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/api/charts/nope", "/api/charts/nope/data", "/api/charts/nope/arrow"} {
		rec := get(t, e, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), path)
		assert.Contains(t, resp.Error, "unknown chart")
	}
}

func TestGetChartData(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/api/charts/type-over-time/data?product_type=Clothing")

	require.Equal(t, http.StatusOK, rec.Code)
	var res models.AggregationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"year", "product_type"}, res.GroupBy)
	assert.Equal(t, "quantity", res.Measure)
	assert.Equal(t, 15.0, res.Total)
	assert.Equal(t, []models.GroupRow{
		{Key: []string{"2020", "Clothing"}, Value: 8},
		{Key: []string{"2021", "Clothing"}, Value: 7},
	}, res.Rows)
}

func TestGetDimensionValues(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   []string
		total  int
	}{
		{"all", "/api/dimensions/customer/values", []string{"Ana Lima", "Bruno Reis", "Carla Dias"}, 3},
		{"paged", "/api/dimensions/customer/values?limit=1&offset=1", []string{"Bruno Reis"}, 3},
		{"past end", "/api/dimensions/store/values?offset=10", []string{}, 2},
		{"years", "/api/dimensions/year/values", []string{"2020", "2021"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, e, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var dv models.DimensionValues
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dv))
			assert.Equal(t, tt.want, dv.Values)
			assert.Equal(t, tt.total, dv.Total)
		})
	}

	rec := get(t, e, "/api/dimensions/color/values")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetChartArrow(t *testing.T) {
	e := newTestServer(t)
	rec := get(t, e, "/api/charts/sales-by-year/arrow")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, arrowStreamMIME, rec.Header().Get(echo.HeaderContentType))

	r, err := ipc.NewReader(bytes.NewReader(rec.Body.Bytes()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Release()

	require.True(t, r.Next())
	batch := r.Record()
	require.Equal(t, int64(2), batch.NumRows())
	assert.Equal(t, arrow.PrimitiveTypes.Int32, batch.Schema().Field(0).Type)
	assert.Equal(t, "year", batch.Schema().Field(0).Name)

	years := batch.Column(0).(*array.Int32)
	qty := batch.Column(1).(*array.Float64)
	assert.Equal(t, []int32{2020, 2021}, years.Int32Values())
	assert.Equal(t, []float64{8, 9}, qty.Float64Values())
	assert.False(t, r.Next())
}

func TestResultRecordStringKeys(t *testing.T) {
	res := &engine.Result{
		GroupBy: []engine.Dimension{engine.Brand},
		Measure: engine.Quantity,
		Groups: []engine.Group{
			{Key: []string{"Acme"}, Value: 15},
			{Key: []string{"Tick"}, Value: 2},
		},
	}
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec, err := resultRecord(mem, res)
	require.NoError(t, err)
	defer rec.Release()

	brands := rec.Column(0).(*array.String)
	assert.Equal(t, "Acme", brands.Value(0))
	assert.Equal(t, "Tick", brands.Value(1))
	assert.Equal(t, "quantity", rec.Schema().Field(1).Name)
}

func TestFiltersFromQueryDropsBlanks(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?store=&store=North&year=2020&unknown=x", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	f := filtersFromQuery(c)
	assert.Equal(t, engine.FilterSet{
		engine.Store: {"North"},
		engine.Year:  {"2020"},
	}, f)
}

func TestGetRecords(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name   string
		target string
		skus   []string
		total  int
	}{
		{"unfiltered", "/api/records", []string{"S", "J", "S", "W"}, 4},
		{"across charts", "/api/records?brand=Acme&customer=Ana+Lima", []string{"S", "S"}, 2},
		{"year", "/api/records?year=2021", []string{"S", "W"}, 2},
		{"paged", "/api/records?limit=2&offset=1", []string{"J", "S"}, 4},
		{"no match", "/api/records?store=Closed", []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, e, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var page models.RecordPage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Equal(t, tt.total, page.Total)
			skus := []string{}
			for _, r := range page.Records {
				skus = append(skus, r.SKU)
			}
			assert.Equal(t, tt.skus, skus)
		})
	}

	rec := get(t, e, "/api/records?customer=Carla+Dias")
	var page models.RecordPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Records, 1)
	r := page.Records[0]
	assert.Equal(t, 2021, r.Year)
	assert.Equal(t, 2.0, r.Quantity)
	require.NotNil(t, r.StoreName)
	assert.Equal(t, "North", *r.StoreName)
	require.NotNil(t, r.Brand)
	assert.Equal(t, "Tick", *r.Brand)
}
