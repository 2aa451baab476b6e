// Package features holds the precomputed per-client feature table.
package features

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrMissingIDColumn = errors.New("missing id column")
	ErrDuplicateID     = errors.New("duplicate client id")
	ErrRaggedRow       = errors.New("row width does not match header")
	ErrBadValue        = errors.New("unparseable value")
	ErrUnknownColumn   = errors.New("unknown column")
)

// Table is an ordered, id-indexed feature table. It is never mutated after
// construction and may be shared across goroutines.
type Table struct {
	idColumn string
	idPos    int
	columns  []string
	rows     [][]float64
	ids      []int64
	index    map[int64]int
	colIndex map[string]int
}

// NewTable validates rows against columns and indexes them by the id column.
// Each row keeps the id value at its column position.
func NewTable(idColumn string, columns []string, rows [][]float64) (*Table, error) {
	idPos := slices.Index(columns, idColumn)
	if idPos < 0 {
		return nil, fmt.Errorf("%w: %q not in header", ErrMissingIDColumn, idColumn)
	}

	colIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := colIndex[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		colIndex[c] = i
	}

	t := &Table{
		idColumn: idColumn,
		idPos:    idPos,
		columns:  slices.Clone(columns),
		rows:     make([][]float64, 0, len(rows)),
		ids:      make([]int64, 0, len(rows)),
		index:    make(map[int64]int, len(rows)),
		colIndex: colIndex,
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, header has %d", ErrRaggedRow, i, len(row), len(columns))
		}
		id, err := toID(row[idPos])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if prev, dup := t.index[id]; dup {
			return nil, fmt.Errorf("%w: %d (rows %d and %d)", ErrDuplicateID, id, prev, i)
		}
		t.index[id] = len(t.rows)
		t.ids = append(t.ids, id)
		t.rows = append(t.rows, slices.Clone(row))
	}
	return t, nil
}

func toID(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, fmt.Errorf("%w: client id %v is not an integer", ErrBadValue, v)
	}
	return int64(v), nil
}

func (t *Table) IDColumn() string { return t.idColumn }

// Columns returns the header in file order, id column included.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

func (t *Table) Len() int { return len(t.rows) }

// IDAt returns the client id of the i-th row in load order.
func (t *Table) IDAt(i int) int64 { return t.ids[i] }

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) []float64 { return slices.Clone(t.rows[i]) }

// Lookup returns a copy of the row for id.
func (t *Table) Lookup(id int64) ([]float64, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(t.rows[i]), true
}

// Project reorders row onto names. Every name must be a table column.
func (t *Table) Project(row []float64, names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		j, ok := t.colIndex[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		out[i] = row[j]
	}
	return out, nil
}
