package engine

import (
	"errors"
	"fmt"
)

// Dimension is a categorical column usable for filtering and grouping.
type Dimension string

const (
	Year        Dimension = "year"
	Product     Dimension = "product"
	Brand       Dimension = "brand"
	ProductType Dimension = "product_type"
	Customer    Dimension = "customer"
	Store       Dimension = "store"
)

// Measure is a numeric column subject to aggregation.
type Measure string

const Quantity Measure = "quantity"

var (
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrUnknownMeasure   = errors.New("unknown measure")
	ErrTooManyGroups    = fmt.Errorf("at most %d group dimensions are supported", maxGroupBy)
)

var dimensionLabels = map[Dimension]string{
	Year:        "Year",
	Product:     "Product",
	Brand:       "Brand",
	ProductType: "Product Type",
	Customer:    "Customer",
	Store:       "Store",
}

// Dimensions lists every dimension in presentation order.
func Dimensions() []Dimension {
	return []Dimension{Year, Product, Brand, ProductType, Customer, Store}
}

func (d Dimension) Valid() bool {
	_, ok := dimensionLabels[d]
	return ok
}

// Label is the human readable column title.
func (d Dimension) Label() string {
	if l, ok := dimensionLabels[d]; ok {
		return l
	}
	return string(d)
}

func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

func (m Measure) Label() string {
	if m == Quantity {
		return "Quantity Sold"
	}
	return string(m)
}
