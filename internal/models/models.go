package models

import "time"

// SaleRecord is one row of the denormalized sales table. Enrichment fields
// are nil when the foreign key had no match in its reference table.
type SaleRecord struct {
	SaleDate     time.Time `json:"sale_date"`
	Year         int       `json:"year"`
	Quantity     float64   `json:"quantity"`
	CustomerID   string    `json:"customer_id"`
	CustomerName *string   `json:"customer_name"`
	StoreID      string    `json:"store_id"`
	StoreName    *string   `json:"store_name"`
	SKU          string    `json:"sku"`
	ProductName  *string   `json:"product_name"`
	Brand        *string   `json:"brand"`
	ProductType  *string   `json:"product_type"`
}

// GroupRow is one (group key, summed measure) pair of an aggregation.
type GroupRow struct {
	Key   []string `json:"key"`
	Value float64  `json:"value"`
}

// AggregationResult is the JSON form of an aggregation.
type AggregationResult struct {
	GroupBy []string   `json:"group_by"`
	Measure string     `json:"measure"`
	Total   float64    `json:"total"`
	Rows    []GroupRow `json:"rows"`
}

// ChartInfo describes one chart of the dashboard catalog.
type ChartInfo struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Kind       string   `json:"kind"`
	Filters    []string `json:"filters"`
	FilterKeys []string `json:"filter_params"`
}

// DimensionValues is a page of distinct values used to fill a dropdown.
type DimensionValues struct {
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
	Total     int      `json:"total"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// RecordPage is a page of filtered sale rows in table order.
type RecordPage struct {
	Records []SaleRecord `json:"records"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

type Health struct {
	Status    string  `json:"status"`
	Rows      int     `json:"rows"`
	Quantity  float64 `json:"total_quantity"`
	Timestamp string  `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
