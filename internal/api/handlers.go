package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"salesdash/internal/dashboard"
	"salesdash/internal/engine"
	"salesdash/internal/logging"
	"salesdash/internal/models"
	"salesdash/internal/ui"
)

type Handler struct {
	dash *dashboard.Dashboard
	page *ui.Page
}

// NewHandler builds the page once; dropdown options come from the full table
// and never change.
func NewHandler(dash *dashboard.Dashboard, title string) (*Handler, error) {
	page, err := ui.BuildPage(title, dash)
	if err != nil {
		return nil, err
	}
	return &Handler{dash: dash, page: page}, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.GetPage)
	e.GET("/health", h.GetHealth)

	api := e.Group("/api")
	api.GET("/charts", h.ListCharts)
	api.GET("/charts/:id", h.GetChart)
	api.GET("/charts/:id/data", h.GetChartData)
	api.GET("/charts/:id/arrow", h.GetChartArrow)
	api.GET("/dimensions/:dim/values", h.GetDimensionValues)
	api.GET("/records", h.GetRecords)
}

// --- HANDLERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// filtersFromQuery reads repeated query parameters, one per dimension, as a
// multi-select. Unknown parameters are ignored.
func filtersFromQuery(c echo.Context) engine.FilterSet {
	params := c.QueryParams()
	filters := make(engine.FilterSet)
	for _, d := range engine.Dimensions() {
		var vals []string
		for _, v := range params[string(d)] {
			if v != "" {
				vals = append(vals, v)
			}
		}
		if len(vals) > 0 {
			filters[d] = vals
		}
	}
	return filters
}

func errorJSON(c echo.Context, status int, err error) error {
	return c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

// chartError maps pipeline errors onto HTTP statuses.
func chartError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, dashboard.ErrUnknownChart), errors.Is(err, engine.ErrUnknownDimension):
		return errorJSON(c, http.StatusNotFound, err)
	}
	logging.Errorf(c.Request().Context(), "chart %s: %v", c.Param("id"), err)
	return errorJSON(c, http.StatusInternalServerError, err)
}

func (h *Handler) GetPage(c echo.Context) error {
	return c.Render(http.StatusOK, ui.PageTemplate, h.page)
}

func (h *Handler) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.Health{
		Status:    "ok",
		Rows:      h.dash.Store().Len(),
		Quantity:  h.dash.Store().TotalQuantity(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) ListCharts(c echo.Context) error {
	specs := h.dash.Specs()
	out := make([]models.ChartInfo, 0, len(specs))
	for _, s := range specs {
		info := models.ChartInfo{ID: s.ID, Title: s.Title, Kind: string(s.Kind), Filters: []string{}, FilterKeys: []string{}}
		for _, d := range s.Filters {
			info.Filters = append(info.Filters, d.Label())
			info.FilterKeys = append(info.FilterKeys, string(d))
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}

// GetChart is the event callback of one chart: current selections in, figure out.
func (h *Handler) GetChart(c echo.Context) error {
	fig, err := h.dash.Render(c.Request().Context(), c.Param("id"), filtersFromQuery(c))
	if err != nil {
		return chartError(c, err)
	}
	return c.JSON(http.StatusOK, fig)
}

func (h *Handler) GetChartData(c echo.Context) error {
	_, res, err := h.dash.Aggregate(c.Request().Context(), c.Param("id"), filtersFromQuery(c))
	if err != nil {
		return chartError(c, err)
	}
	return c.JSON(http.StatusOK, toModel(res))
}

// dimension values for dropdowns, paginated
func (h *Handler) GetDimensionValues(c echo.Context) error {
	dim, err := engine.ParseDimension(c.Param("dim"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}
	values, err := h.dash.Store().DistinctValues(dim)
	if err != nil {
		return errorJSON(c, http.StatusNotFound, err)
	}

	total := len(values)
	limit, offset := getPaginationParams(c, total)
	page := []string{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = values[offset:end]
	}

	return c.JSON(http.StatusOK, models.DimensionValues{
		Dimension: string(dim),
		Values:    page,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

const defaultRecordLimit = 100

// GetRecords lists the sale rows behind the current selections, across every
// dimension.
func (h *Handler) GetRecords(c echo.Context) error {
	store := h.dash.Store()
	rows, err := store.FilterRows(filtersFromQuery(c))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err)
	}

	total := len(rows)
	limit, offset := getPaginationParams(c, defaultRecordLimit)
	page := models.RecordPage{Records: []models.SaleRecord{}, Total: total, Limit: limit, Offset: offset}
	for i := offset; i < total && i < offset+limit; i++ {
		page.Records = append(page.Records, store.Row(rows[i]))
	}
	return c.JSON(http.StatusOK, page)
}

func toModel(res *engine.Result) models.AggregationResult {
	out := models.AggregationResult{
		GroupBy: make([]string, len(res.GroupBy)),
		Measure: string(res.Measure),
		Total:   res.Total(),
		Rows:    make([]models.GroupRow, len(res.Groups)),
	}
	for i, d := range res.GroupBy {
		out.GroupBy[i] = string(d)
	}
	for i, g := range res.Groups {
		out.Rows[i] = models.GroupRow{Key: g.Key, Value: g.Value}
	}
	return out
}
