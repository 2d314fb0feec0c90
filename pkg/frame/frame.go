// Package frame provides the in-memory tabular structure passed through the
// tsaccess read and write paths. A Frame is an ordered column set plus rows;
// it is transient and carries no connection to the database.
package frame

import (
	"sort"

	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/json"
)

// Record is a single row keyed by column name.
type Record = map[string]interface{}

// Frame is an ordered collection of rows sharing one column set.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]interface{}
}

// New creates an empty frame with the given column order.
func New(columns []string) (*Frame, error) {
	if len(columns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "frame requires at least one column")
	}

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if col == "" {
			return nil, errors.New(errors.ErrorTypeValidation, "empty column name")
		}
		if _, dup := index[col]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "duplicate column %q", col)
		}
		index[col] = i
	}

	return &Frame{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    make([][]interface{}, 0),
	}, nil
}

// FromRecords builds a frame from row maps. Column order follows the columns
// argument when given, otherwise the sorted union of record keys. Missing
// values are filled with nil.
func FromRecords(records []Record, columns ...string) (*Frame, error) {
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, rec := range records {
			for key := range rec {
				seen[key] = struct{}{}
			}
		}
		for key := range seen {
			columns = append(columns, key)
		}
		sort.Strings(columns)
	}

	f, err := New(columns)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := make([]interface{}, len(f.columns))
		for i, col := range f.columns {
			row[i] = rec[col]
		}
		f.rows = append(f.rows, row)
	}

	return f, nil
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return len(f.rows)
}

// NumColumns returns the number of columns.
func (f *Frame) NumColumns() int {
	return len(f.columns)
}

// Empty reports whether the frame holds no rows.
func (f *Frame) Empty() bool {
	return len(f.rows) == 0
}

// AppendRow adds one row. The value count must match the column count.
func (f *Frame) AppendRow(values ...interface{}) error {
	if len(values) != len(f.columns) {
		return errors.Newf(errors.ErrorTypeValidation,
			"row has %d values, frame has %d columns", len(values), len(f.columns))
	}
	f.rows = append(f.rows, append([]interface{}(nil), values...))
	return nil
}

// Row returns the i-th row in column order, reporting whether the index is
// in range.
func (f *Frame) Row(i int) ([]interface{}, bool) {
	if i < 0 || i >= len(f.rows) {
		return nil, false
	}
	return f.rows[i], true
}

// Rows returns all rows in column order.
func (f *Frame) Rows() [][]interface{} {
	return f.rows
}

// Value returns the value at row i for the named column.
func (f *Frame) Value(i int, column string) (interface{}, bool) {
	idx, ok := f.index[column]
	if !ok || i < 0 || i >= len(f.rows) {
		return nil, false
	}
	return f.rows[i][idx], true
}

// Column returns all values of the named column.
func (f *Frame) Column(name string) ([]interface{}, error) {
	idx, ok := f.index[name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found", name)
	}
	values := make([]interface{}, len(f.rows))
	for i, row := range f.rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Records converts the frame back into row maps.
func (f *Frame) Records() []Record {
	records := make([]Record, len(f.rows))
	for i, row := range f.rows {
		rec := make(Record, len(f.columns))
		for j, col := range f.columns {
			rec[col] = row[j]
		}
		records[i] = rec
	}
	return records
}

// Select returns a new frame restricted to the named columns, in that order.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	out, err := New(columns)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(columns))
	for i, col := range columns {
		idx, ok := f.index[col]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found", col)
		}
		indices[i] = idx
	}
	for _, row := range f.rows {
		selected := make([]interface{}, len(indices))
		for i, idx := range indices {
			selected[i] = row[idx]
		}
		out.rows = append(out.rows, selected)
	}
	return out, nil
}

// MarshalJSON encodes the frame as an array of row objects.
func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Records())
}
