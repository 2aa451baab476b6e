package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadCSV parses a headered CSV file. Empty cells load as NaN.
func ReadCSV(r io.Reader, idColumn string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty csv: no header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	// Excel exports carry a UTF-8 BOM
	columns[0] = strings.TrimPrefix(columns[0], "\ufeff")

	var rows [][]float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrFieldCount) {
				return nil, fmt.Errorf("%w: line %d", ErrRaggedRow, line)
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, len(rec))
		for i, cell := range rec {
			v, err := ParseValue(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, columns[i], err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return NewTable(idColumn, columns, rows)
}

// ParseValue converts a cell to float64. Empty cells and NA markers are NaN;
// booleans map to 0/1.
func ParseValue(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return math.NaN(), nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, cell)
	}
	return v, nil
}
