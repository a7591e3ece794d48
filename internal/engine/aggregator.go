package engine

import (
	"runtime"
	"sort"
	"sync"
)

// maxGroupBy bounds the composite key width so keys stay comparable arrays.
const maxGroupBy = 2

// Below this many rows a single goroutine is faster than fan-out and merge.
const parallelThreshold = 1 << 16

// Order selects how groups are presented.
type Order int

const (
	ByKey Order = iota
	ByMeasureDesc
)

// Query is the generic filter-group-sum request every chart is built on.
type Query struct {
	Filters FilterSet
	GroupBy []Dimension // zero, one or two dimensions
	Measure Measure

	// TopN > 0 keeps the TopN groups with the largest measure, descending.
	TopN  int
	Order Order
}

// Group is one (group key, summed measure) pair. Key holds one label per
// GroupBy dimension.
type Group struct {
	Key   []string
	Value float64

	codes groupKey
}

// Result is an ordered aggregation.
type Result struct {
	GroupBy []Dimension
	Measure Measure
	Groups  []Group
}

func (r *Result) Len() int {
	return len(r.Groups)
}

// Total sums the measure over every group of the result.
func (r *Result) Total() float64 {
	var total float64
	for _, g := range r.Groups {
		total += g.Value
	}
	return total
}

type groupKey [maxGroupBy]int32

// Aggregate filters the table, groups the remaining rows and sums the measure
// per group. Rows with a null value in a grouping dimension belong to no
// group. An empty selection gives an empty Result, not an error.
func (cs *ColumnStore) Aggregate(q Query) (*Result, error) {
	measure := q.Measure
	if measure == "" {
		measure = Quantity
	}
	if measure != Quantity {
		return nil, ErrUnknownMeasure
	}
	if len(q.GroupBy) > maxGroupBy {
		return nil, ErrTooManyGroups
	}
	for _, d := range q.GroupBy {
		if !d.Valid() {
			return nil, ErrUnknownDimension
		}
	}
	rf, err := cs.compileFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	groupCols := make([][]int32, len(q.GroupBy))
	dicts := make([][]string, len(q.GroupBy))
	for i, d := range q.GroupBy {
		groupCols[i], dicts[i] = cs.column(d)
	}

	sums := cs.scan(rf, groupCols)

	// Build Result
	res := &Result{
		GroupBy: append([]Dimension(nil), q.GroupBy...),
		Measure: measure,
		Groups:  make([]Group, 0, len(sums)),
	}
	for k, v := range sums {
		g := Group{Key: make([]string, len(q.GroupBy)), Value: v, codes: k}
		for i, d := range q.GroupBy {
			g.Key[i] = label(d, dicts[i], k[i])
		}
		res.Groups = append(res.Groups, g)
	}

	sort.Slice(res.Groups, func(i, j int) bool {
		return lessKey(q.GroupBy, res.Groups[i], res.Groups[j])
	})
	if q.TopN > 0 || q.Order == ByMeasureDesc {
		// Stable on top of key order: equal measures keep key ascending.
		sort.SliceStable(res.Groups, func(i, j int) bool {
			return res.Groups[i].Value > res.Groups[j].Value
		})
	}
	if q.TopN > 0 && len(res.Groups) > q.TopN {
		res.Groups = res.Groups[:q.TopN]
	}
	return res, nil
}

// lessKey orders composite keys component-wise: years numerically, other
// dimensions by label.
func lessKey(dims []Dimension, a, b Group) bool {
	for i, d := range dims {
		if d == Year {
			if a.codes[i] != b.codes[i] {
				return a.codes[i] < b.codes[i]
			}
			continue
		}
		if a.Key[i] != b.Key[i] {
			return a.Key[i] < b.Key[i]
		}
	}
	return false
}

// scan sums quantities per group key. Large tables are split into one chunk
// per CPU; every worker fills its own map and the maps are merged afterwards.
func (cs *ColumnStore) scan(rf rowFilter, groupCols [][]int32) map[groupKey]float64 {
	n := cs.Len()
	numWorkers := runtime.NumCPU()
	if n < parallelThreshold || numWorkers < 2 {
		return cs.scanRange(rf, groupCols, 0, n)
	}

	chunkSize := n / numWorkers
	results := make(chan map[groupKey]float64, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == numWorkers-1 {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			results <- cs.scanRange(rf, groupCols, s, e)
		}(start, end)
	}

	go func() { wg.Wait(); close(results) }()

	// Merge Phase (Reducer)
	final := make(map[groupKey]float64)
	for p := range results {
		for k, v := range p {
			final[k] += v
		}
	}
	return final
}

func (cs *ColumnStore) scanRange(rf rowFilter, groupCols [][]int32, s, e int) map[groupKey]float64 {
	sums := make(map[groupKey]float64)
	qtys := cs.Quantities

rows:
	for j := s; j < e; j++ {
		if !rf.match(j) {
			continue
		}
		var k groupKey
		for d, col := range groupCols {
			c := col[j]
			if c == nullID {
				continue rows
			}
			k[d] = c
		}
		sums[k] += qtys[j]
	}
	return sums
}
