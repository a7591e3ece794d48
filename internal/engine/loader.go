package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"salesdash/internal/logging"
)

// Sources locates the four source tables. Sales extracts are concatenated in
// the order given.
type Sources struct {
	Sales     []string
	Customers string
	Stores    string
	Products  string
}

// Columns names the header of every field the loader reads.
type Columns struct {
	SaleDate    string
	Quantity    string
	CustomerID  string
	StoreID     string
	SKU         string
	FirstName   string
	LastName    string
	StoreName   string
	ProductName string
	Brand       string
	ProductType string
}

// DefaultColumns are the headers of the published sales extracts.
var DefaultColumns = Columns{
	SaleDate:    "Data da Venda",
	Quantity:    "Qtd Vendida",
	CustomerID:  "ID Cliente",
	StoreID:     "ID Loja",
	SKU:         "SKU",
	FirstName:   "Primeiro Nome",
	LastName:    "Sobrenome",
	StoreName:   "Nome da Loja",
	ProductName: "Produto",
	Brand:       "Marca",
	ProductType: "Tipo do Produto",
}

// Loader builds the denormalized ColumnStore from its sources.
type Loader struct {
	fs      afero.Fs
	client  *http.Client
	columns Columns
	csvEnc  encoding.Encoding
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFs reads filesystem sources from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) LoaderOption {
	return func(l *Loader) {
		l.fs = fs
	}
}

func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = c
	}
}

func WithColumns(c Columns) LoaderOption {
	return func(l *Loader) {
		l.columns = c
	}
}

// WithCSVEncoding transcodes CSV sources from enc. nil means UTF-8.
func WithCSVEncoding(enc encoding.Encoding) LoaderOption {
	return func(l *Loader) {
		l.csvEnc = enc
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:      afero.NewOsFs(),
		client:  &http.Client{Timeout: 30 * time.Second},
		columns: DefaultColumns,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type optString struct {
	v  string
	ok bool
}

func opt(s string) optString {
	return optString{v: s, ok: s != ""}
}

type productInfo struct {
	name, brand, kind optString
}

// Load fetches every source concurrently, then joins them into one table.
// Any failure is returned as a *LoadError and no table is built.
func (l *Loader) Load(ctx context.Context, src Sources) (*ColumnStore, error) {
	start := time.Now()
	logging.Infof(ctx, "Loading %d sales extracts and 3 reference tables...", len(src.Sales))

	// A. Fetch and parse (parallel)
	locations := append([]string{src.Customers, src.Stores, src.Products}, src.Sales...)
	sheets := make([]*sheet, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			s, err := l.readSheet(gctx, loc)
			if err != nil {
				return err
			}
			sheets[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// B. Reference tables
	customers, err := l.customerNames(ctx, sheets[0])
	if err != nil {
		return nil, err
	}
	stores, err := l.storeNames(ctx, sheets[1])
	if err != nil {
		return nil, err
	}
	products, err := l.productInfos(ctx, sheets[2])
	if err != nil {
		return nil, err
	}

	// C. Allocate Store ONCE
	sales := sheets[3:]
	totalRows := 0
	for _, s := range sales {
		totalRows += len(s.rows)
	}
	store := &ColumnStore{
		Dates:          make([]time.Time, 0, totalRows),
		Years:          make([]int32, 0, totalRows),
		Quantities:     make([]float64, 0, totalRows),
		CustomerKeys:   make([]string, 0, totalRows),
		StoreKeys:      make([]string, 0, totalRows),
		SKUs:           make([]string, 0, totalRows),
		CustomerIDs:    make([]int32, 0, totalRows),
		StoreIDs:       make([]int32, 0, totalRows),
		ProductIDs:     make([]int32, 0, totalRows),
		BrandIDs:       make([]int32, 0, totalRows),
		ProductTypeIDs: make([]int32, 0, totalRows),
	}
	cDict, sDict, pDict, bDict, tDict := newDictBuilder(), newDictBuilder(), newDictBuilder(), newDictBuilder(), newDictBuilder()

	// D. Concatenate and left-join
	unmatched := 0
	for _, s := range sales {
		dateCol, err := s.col(l.columns.SaleDate)
		if err != nil {
			return nil, err
		}
		qtyCol, err := s.col(l.columns.Quantity)
		if err != nil {
			return nil, err
		}
		custCol, err := s.col(l.columns.CustomerID)
		if err != nil {
			return nil, err
		}
		storeCol, err := s.col(l.columns.StoreID)
		if err != nil {
			return nil, err
		}
		skuCol, err := s.col(l.columns.SKU)
		if err != nil {
			return nil, err
		}

		for i, row := range s.rows {
			date, err := parseDate(cell(row, dateCol))
			if err != nil {
				return nil, &LoadError{Source: s.source, Err: fmt.Errorf("row %d: %w", i+2, err)}
			}
			qty, err := parseQuantity(cell(row, qtyCol))
			if err != nil {
				return nil, &LoadError{Source: s.source, Err: fmt.Errorf("row %d: %w", i+2, err)}
			}
			custKey := normalizeKey(cell(row, custCol))
			storeKey := normalizeKey(cell(row, storeCol))
			sku := normalizeKey(cell(row, skuCol))

			name := customers[custKey]
			storeName := stores[storeKey]
			prod := products[sku]
			if !name.ok || !storeName.ok || !prod.name.ok {
				unmatched++
			}

			store.Dates = append(store.Dates, date)
			store.Years = append(store.Years, int32(date.Year()))
			store.Quantities = append(store.Quantities, qty)
			store.CustomerKeys = append(store.CustomerKeys, custKey)
			store.StoreKeys = append(store.StoreKeys, storeKey)
			store.SKUs = append(store.SKUs, sku)
			store.CustomerIDs = append(store.CustomerIDs, cDict.id(name.v, name.ok))
			store.StoreIDs = append(store.StoreIDs, sDict.id(storeName.v, storeName.ok))
			store.ProductIDs = append(store.ProductIDs, pDict.id(prod.name.v, prod.name.ok))
			store.BrandIDs = append(store.BrandIDs, bDict.id(prod.brand.v, prod.brand.ok))
			store.ProductTypeIDs = append(store.ProductTypeIDs, tDict.id(prod.kind.v, prod.kind.ok))
		}
	}

	store.CustomerDict = cDict.list
	store.StoreDict = sDict.list
	store.ProductDict = pDict.list
	store.BrandDict = bDict.list
	store.ProductTypeDict = tDict.list

	if unmatched > 0 {
		logging.Warnf(ctx, "%d sale rows have at least one unmatched join key", unmatched)
	}
	logging.Infof(ctx, "Load Complete. Rows: %d. Time: %v", store.Len(), time.Since(start))
	return store, nil
}

// customerNames maps customer id to "first last". A missing name part leaves
// the full name null.
func (l *Loader) customerNames(ctx context.Context, s *sheet) (map[string]optString, error) {
	idCol, err := s.col(l.columns.CustomerID)
	if err != nil {
		return nil, err
	}
	firstCol, err := s.col(l.columns.FirstName)
	if err != nil {
		return nil, err
	}
	lastCol, err := s.col(l.columns.LastName)
	if err != nil {
		return nil, err
	}

	out := make(map[string]optString, len(s.rows))
	dups := 0
	for _, row := range s.rows {
		key := normalizeKey(cell(row, idCol))
		if _, exists := out[key]; exists {
			dups++
			continue
		}
		first, last := cell(row, firstCol), cell(row, lastCol)
		if first == "" || last == "" {
			out[key] = optString{}
			continue
		}
		out[key] = opt(first + " " + last)
	}
	warnDuplicates(ctx, s, dups)
	return out, nil
}

func (l *Loader) storeNames(ctx context.Context, s *sheet) (map[string]optString, error) {
	idCol, err := s.col(l.columns.StoreID)
	if err != nil {
		return nil, err
	}
	nameCol, err := s.col(l.columns.StoreName)
	if err != nil {
		return nil, err
	}

	out := make(map[string]optString, len(s.rows))
	dups := 0
	for _, row := range s.rows {
		key := normalizeKey(cell(row, idCol))
		if _, exists := out[key]; exists {
			dups++
			continue
		}
		out[key] = opt(cell(row, nameCol))
	}
	warnDuplicates(ctx, s, dups)
	return out, nil
}

func (l *Loader) productInfos(ctx context.Context, s *sheet) (map[string]productInfo, error) {
	skuCol, err := s.col(l.columns.SKU)
	if err != nil {
		return nil, err
	}
	nameCol, err := s.col(l.columns.ProductName)
	if err != nil {
		return nil, err
	}
	brandCol, err := s.col(l.columns.Brand)
	if err != nil {
		return nil, err
	}
	typeCol, err := s.col(l.columns.ProductType)
	if err != nil {
		return nil, err
	}

	out := make(map[string]productInfo, len(s.rows))
	dups := 0
	for _, row := range s.rows {
		key := normalizeKey(cell(row, skuCol))
		if _, exists := out[key]; exists {
			dups++
			continue
		}
		out[key] = productInfo{
			name:  opt(cell(row, nameCol)),
			brand: opt(cell(row, brandCol)),
			kind:  opt(cell(row, typeCol)),
		}
	}
	warnDuplicates(ctx, s, dups)
	return out, nil
}

// Duplicate reference keys would multiply sale rows in the join; the first
// occurrence wins instead.
func warnDuplicates(ctx context.Context, s *sheet, dups int) {
	if dups > 0 {
		logging.Warnf(ctx, "%s: %d duplicate keys ignored (first occurrence kept)", s.source, dups)
	}
}
