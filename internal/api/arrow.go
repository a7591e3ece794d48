package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/labstack/echo/v4"

	"salesdash/internal/engine"
)

const arrowStreamMIME = "application/vnd.apache.arrow.stream"

// resultSchema has one column per group dimension (year as int32, the rest as
// strings) followed by the measure.
func resultSchema(res *engine.Result) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(res.GroupBy)+1)
	for _, d := range res.GroupBy {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if d == engine.Year {
			typ = arrow.PrimitiveTypes.Int32
		}
		fields = append(fields, arrow.Field{Name: string(d), Type: typ})
	}
	fields = append(fields, arrow.Field{Name: string(res.Measure), Type: arrow.PrimitiveTypes.Float64})
	return arrow.NewSchema(fields, nil)
}

// resultRecord converts an aggregation into a single Arrow record. The caller
// releases it.
func resultRecord(mem memory.Allocator, res *engine.Result) (arrow.Record, error) {
	schema := resultSchema(res)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, g := range res.Groups {
		for i, d := range res.GroupBy {
			if d == engine.Year {
				y, err := strconv.Atoi(g.Key[i])
				if err != nil {
					return nil, fmt.Errorf("year key %q: %w", g.Key[i], err)
				}
				b.Field(i).(*array.Int32Builder).Append(int32(y))
				continue
			}
			b.Field(i).(*array.StringBuilder).Append(g.Key[i])
		}
		b.Field(len(res.GroupBy)).(*array.Float64Builder).Append(g.Value)
	}
	return b.NewRecord(), nil
}

// GetChartArrow streams the aggregation of a chart as Arrow IPC.
func (h *Handler) GetChartArrow(c echo.Context) error {
	_, res, err := h.dash.Aggregate(c.Request().Context(), c.Param("id"), filtersFromQuery(c))
	if err != nil {
		return chartError(c, err)
	}

	mem := memory.NewGoAllocator()
	rec, err := resultRecord(mem, res)
	if err != nil {
		return chartError(c, err)
	}
	defer rec.Release()

	c.Response().Header().Set(echo.HeaderContentType, arrowStreamMIME)
	c.Response().WriteHeader(http.StatusOK)
	w := ipc.NewWriter(c.Response(), ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		return err
	}
	return w.Close()
}
