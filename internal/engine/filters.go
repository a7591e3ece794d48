package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterSet maps a dimension to its allowed values. Values within a dimension
// are OR-combined, dimensions are AND-combined. A dimension that is absent or
// has no values is unrestricted; it is never read as "allow nothing".
type FilterSet map[Dimension][]string

// Active reports whether d restricts rows.
func (f FilterSet) Active(d Dimension) bool {
	return len(f[d]) > 0
}

// IsEmpty returns true if no dimension restricts rows.
func (f FilterSet) IsEmpty() bool {
	for _, vals := range f {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// Only returns the subset of f restricted to dims.
func (f FilterSet) Only(dims ...Dimension) FilterSet {
	out := make(FilterSet, len(dims))
	for _, d := range dims {
		if f.Active(d) {
			out[d] = f[d]
		}
	}
	return out
}

// dimFilter is one compiled dimension constraint.
type dimFilter struct {
	codes   []int32
	allowed []bool         // indexed by dictionary id
	years   map[int32]bool // set instead of allowed for Year
}

func (f *dimFilter) match(row int) bool {
	c := f.codes[row]
	if f.years != nil {
		return f.years[c]
	}
	return c != nullID && f.allowed[c]
}

// rowFilter is a compiled FilterSet. A nil rowFilter accepts every row.
type rowFilter []dimFilter

func (rf rowFilter) match(row int) bool {
	for i := range rf {
		if !rf[i].match(row) {
			return false
		}
	}
	return true
}

// compileFilters resolves filter values against the dictionaries once, so the
// scan compares integers only. Values unknown to the table match no row.
func (cs *ColumnStore) compileFilters(filters FilterSet) (rowFilter, error) {
	for d := range filters {
		if !d.Valid() {
			return nil, fmt.Errorf("filter: %w: %q", ErrUnknownDimension, string(d))
		}
	}

	var rf rowFilter
	for _, d := range Dimensions() {
		vals := filters[d]
		if len(vals) == 0 {
			continue
		}
		codes, dict := cs.column(d)
		df := dimFilter{codes: codes}
		if d == Year {
			df.years = make(map[int32]bool, len(vals))
			for _, v := range vals {
				if y, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
					df.years[int32(y)] = true
				}
			}
		} else {
			set := make(map[string]bool, len(vals))
			for _, v := range vals {
				set[v] = true
			}
			df.allowed = make([]bool, len(dict))
			for id, s := range dict {
				df.allowed[id] = set[s]
			}
		}
		rf = append(rf, df)
	}
	return rf, nil
}

// FilterRows returns the indices of rows matching filters, in table order.
func (cs *ColumnStore) FilterRows(filters FilterSet) ([]int, error) {
	rf, err := cs.compileFilters(filters)
	if err != nil {
		return nil, err
	}
	n := cs.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if rf.match(i) {
			indices = append(indices, i)
		}
	}
	return indices, nil
}
