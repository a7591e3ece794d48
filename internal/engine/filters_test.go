package engine

import (
	"errors"
	"testing"
)

func TestFilterEmptySetMeansUnrestricted(t *testing.T) {
	store := sampleStore()

	all, err := store.FilterRows(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != store.Len() {
		t.Fatalf("Expected %d rows, got %d", store.Len(), len(all))
	}

	// An explicit empty selection must not be read as "select nothing".
	empty, err := store.FilterRows(FilterSet{Product: {}, Brand: nil})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != store.Len() {
		t.Errorf("Empty selections filtered rows: got %d, want %d", len(empty), store.Len())
	}
}

func TestFilterAllValuesEqualsNoFilter(t *testing.T) {
	store := sampleStore()
	base := FilterSet{Brand: {"Acme"}}

	for _, d := range []Dimension{Product, Brand, ProductType, Customer, Store, Year} {
		t.Run(string(d), func(t *testing.T) {
			values, err := store.DistinctValues(d)
			if err != nil {
				t.Fatal(err)
			}
			withAll := FilterSet{Brand: base[Brand]}
			if d != Brand {
				withAll[d] = values
			}
			got, err := store.FilterRows(withAll)
			if err != nil {
				t.Fatal(err)
			}
			want, err := store.FilterRows(base)
			if err != nil {
				t.Fatal(err)
			}
			// Rows whose value is null in d are only kept when d is unrestricted.
			nulls := 0
			codes, _ := store.column(d)
			for _, i := range want {
				if codes[i] == nullID {
					nulls++
				}
			}
			if len(got) != len(want)-nulls {
				t.Errorf("all values of %s: got %d rows, want %d", d, len(got), len(want)-nulls)
			}
		})
	}
}

func TestFilterMembership(t *testing.T) {
	store := sampleStore()

	rows, err := store.FilterRows(FilterSet{Product: {"Shirt", "Watch"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0] != 0 || rows[1] != 2 || rows[2] != 3 {
		t.Errorf("Expected table order [0 2 3], got %v", rows)
	}

	years, err := store.FilterRows(FilterSet{Year: {"2022", "not-a-year"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(years) != 2 {
		t.Errorf("Expected 2 rows in 2022, got %d", len(years))
	}

	if _, err := store.FilterRows(FilterSet{"color": {"red"}}); !errors.Is(err, ErrUnknownDimension) {
		t.Errorf("Expected ErrUnknownDimension, got %v", err)
	}
}

func TestFilterSetOnly(t *testing.T) {
	f := FilterSet{Product: {"Shirt"}, Brand: {}, Store: {"North"}}
	got := f.Only(Product, Brand)
	if len(got) != 1 || got[Product][0] != "Shirt" {
		t.Errorf("Only kept %v", got)
	}
	if !f.Only().IsEmpty() {
		t.Error("Only() with no dimensions should be empty")
	}
}

func TestDistinctValues(t *testing.T) {
	store := sampleStore()

	customers, err := store.DistinctValues(Customer)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Ana Lima", "Bruno Reis", "Carla Dias"}
	if len(customers) != len(want) {
		t.Fatalf("Expected %v, got %v", want, customers)
	}
	for i := range want {
		if customers[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, customers)
		}
	}

	years, err := store.DistinctValues(Year)
	if err != nil {
		t.Fatal(err)
	}
	if len(years) != 3 || years[0] != "2020" || years[2] != "2022" {
		t.Errorf("Unexpected years %v", years)
	}

	if _, err := store.DistinctValues("color"); !errors.Is(err, ErrUnknownDimension) {
		t.Errorf("Expected ErrUnknownDimension, got %v", err)
	}
}

func TestRowReconstruction(t *testing.T) {
	store := sampleStore()

	r := store.Row(0)
	if r.Year != 2020 || r.Quantity != 5 || r.ProductName == nil || *r.ProductName != "Shirt" {
		t.Errorf("Row 0 incorrect: %+v", r)
	}
	if r.SaleDate.Year() != r.Year {
		t.Errorf("Year %d does not match date %v", r.Year, r.SaleDate)
	}

	unmatched := store.Row(5)
	if unmatched.ProductName != nil || unmatched.Brand != nil || unmatched.StoreName != nil {
		t.Errorf("Expected null enrichment, got %+v", unmatched)
	}
}
