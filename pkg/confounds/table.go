// Package confounds loads per-run confound tables and outlier-index
// files produced by upstream preprocessing and artifact detection.
package confounds

import (
	"fmt"
	"math"
)

// Table is an ordered collection of named numeric columns, one row per
// acquired timepoint. Missing values are held as NaN; whether a NaN is
// tolerated, filled or fatal is decided later, per regressor kind.
// A Table is immutable once loaded.
type Table struct {
	names   []string
	columns map[string][]float64
	rows    int
}

// Rows returns the number of timepoints in the table.
func (t *Table) Rows() int { return t.rows }

// Names returns the column names in file order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether the table contains the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns a copy of the named column so callers can apply fill
// policies without mutating the table.
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("confound column %q not found in table", name)
	}
	out := make([]float64, len(col))
	copy(out, col)
	return out, nil
}

// isMissing reports whether a raw cell encodes a missing value.
// fMRIPrep writes "n/a"; empty cells are treated the same way.
func isMissing(cell string) bool {
	switch cell {
	case "n/a", "N/A", "NaN", "nan", "":
		return true
	}
	return false
}

var nan = math.NaN()
