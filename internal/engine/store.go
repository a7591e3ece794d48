package engine

import (
	"sort"
	"strconv"
	"time"

	"salesdash/internal/models"
)

// nullID marks a missing enrichment value in a dictionary encoded column.
const nullID int32 = -1

// ColumnStore holds the denormalized sales table in Struct-of-Arrays format.
// It is built once by the loader and only read afterwards.
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Dates      []time.Time
	Years      []int32
	Quantities []float64

	// Raw join keys, kept for row reconstruction
	CustomerKeys []string
	StoreKeys    []string
	SKUs         []string

	// Dictionary Encoded IDs (0..N, nullID when the join found nothing)
	CustomerIDs    []int32
	StoreIDs       []int32
	ProductIDs     []int32
	BrandIDs       []int32
	ProductTypeIDs []int32

	// Dictionaries (ID -> String)
	CustomerDict    []string
	StoreDict       []string
	ProductDict     []string
	BrandDict       []string
	ProductTypeDict []string
}

func (cs *ColumnStore) Len() int {
	return len(cs.Quantities)
}

// column returns the code column and dictionary of d. Year has no dictionary,
// its codes are the years themselves.
func (cs *ColumnStore) column(d Dimension) ([]int32, []string) {
	switch d {
	case Year:
		return cs.Years, nil
	case Product:
		return cs.ProductIDs, cs.ProductDict
	case Brand:
		return cs.BrandIDs, cs.BrandDict
	case ProductType:
		return cs.ProductTypeIDs, cs.ProductTypeDict
	case Customer:
		return cs.CustomerIDs, cs.CustomerDict
	case Store:
		return cs.StoreIDs, cs.StoreDict
	}
	return nil, nil
}

// label renders the code of dimension d as text.
func label(d Dimension, dict []string, code int32) string {
	if d == Year {
		return strconv.Itoa(int(code))
	}
	return dict[code]
}

// DistinctValues returns the sorted distinct non-null values of d over the
// whole table. Years sort numerically, everything else lexicographically.
func (cs *ColumnStore) DistinctValues(d Dimension) ([]string, error) {
	if !d.Valid() {
		return nil, ErrUnknownDimension
	}
	codes, dict := cs.column(d)
	seen := make(map[int32]struct{})
	for _, c := range codes {
		if c != nullID {
			seen[c] = struct{}{}
		}
	}

	if d == Year {
		years := make([]int32, 0, len(seen))
		for y := range seen {
			years = append(years, y)
		}
		sort.Slice(years, func(i, j int) bool { return years[i] < years[j] })
		out := make([]string, len(years))
		for i, y := range years {
			out[i] = strconv.Itoa(int(y))
		}
		return out, nil
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, dict[c])
	}
	sort.Strings(out)
	return out, nil
}

// Row reconstructs the typed record at index i.
func (cs *ColumnStore) Row(i int) models.SaleRecord {
	return models.SaleRecord{
		SaleDate:     cs.Dates[i],
		Year:         int(cs.Years[i]),
		Quantity:     cs.Quantities[i],
		CustomerID:   cs.CustomerKeys[i],
		CustomerName: lookup(cs.CustomerDict, cs.CustomerIDs[i]),
		StoreID:      cs.StoreKeys[i],
		StoreName:    lookup(cs.StoreDict, cs.StoreIDs[i]),
		SKU:          cs.SKUs[i],
		ProductName:  lookup(cs.ProductDict, cs.ProductIDs[i]),
		Brand:        lookup(cs.BrandDict, cs.BrandIDs[i]),
		ProductType:  lookup(cs.ProductTypeDict, cs.ProductTypeIDs[i]),
	}
}

func lookup(dict []string, id int32) *string {
	if id == nullID {
		return nil
	}
	s := dict[id]
	return &s
}

// TotalQuantity sums the quantity column over every row.
func (cs *ColumnStore) TotalQuantity() float64 {
	var total float64
	for _, q := range cs.Quantities {
		total += q
	}
	return total
}

// dictBuilder assigns dense ids to strings in first-seen order.
type dictBuilder struct {
	ids  map[string]int32
	list []string
}

func newDictBuilder() *dictBuilder {
	return &dictBuilder{ids: make(map[string]int32)}
}

func (d *dictBuilder) id(s string, ok bool) int32 {
	if !ok {
		return nullID
	}
	if id, exists := d.ids[s]; exists {
		return id
	}
	id := int32(len(d.list))
	d.list = append(d.list, s)
	d.ids[s] = id
	return id
}
