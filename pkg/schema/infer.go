// Package schema infers SQL column definitions from frame values. It backs
// the write path's create-on-first-insert behavior: when a hypertable does
// not exist yet, its column types are derived from the first batch.
package schema

import (
	"time"

	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/frame"
)

// ColumnType is a PostgreSQL column type produced by inference.
type ColumnType string

const (
	// TypeBigint covers all Go integer kinds.
	TypeBigint ColumnType = "BIGINT"
	// TypeNumeric covers floating-point values; NUMERIC avoids binary
	// rounding artifacts for prices and quantities.
	TypeNumeric ColumnType = "NUMERIC"
	// TypeTimestamp covers time.Time values.
	TypeTimestamp ColumnType = "TIMESTAMPTZ"
	// TypeBoolean covers bool values.
	TypeBoolean ColumnType = "BOOLEAN"
	// TypeText is the fallback for strings and anything unrecognized.
	TypeText ColumnType = "TEXT"
)

// Column is an inferred column definition.
type Column struct {
	Name string
	Type ColumnType
}

// InferColumns derives a column definition per frame column by scanning its
// values. An empty frame cannot infer a schema and fails with a validation
// error rather than producing a typeless table.
func InferColumns(f *frame.Frame) ([]Column, error) {
	if f == nil || f.Empty() {
		return nil, errors.New(errors.ErrorTypeValidation,
			"cannot infer schema from an empty frame")
	}

	columns := make([]Column, 0, f.NumColumns())
	for _, name := range f.Columns() {
		values, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, Column{Name: name, Type: inferColumn(values)})
	}
	return columns, nil
}

// inferColumn scans a column's values, skipping nils, and widens on mixed
// types: integer and float widen to NUMERIC, any other mix falls back to TEXT.
// A column with no non-nil values is TEXT.
func inferColumn(values []interface{}) ColumnType {
	var inferred ColumnType
	for _, v := range values {
		if v == nil {
			continue
		}
		t := InferValueType(v)
		switch {
		case inferred == "":
			inferred = t
		case inferred == t:
		case numericPair(inferred, t):
			inferred = TypeNumeric
		default:
			return TypeText
		}
	}
	if inferred == "" {
		return TypeText
	}
	return inferred
}

func numericPair(a, b ColumnType) bool {
	return (a == TypeBigint && b == TypeNumeric) || (a == TypeNumeric && b == TypeBigint)
}

// InferValueType maps a single Go value to its SQL column type.
func InferValueType(v interface{}) ColumnType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeBigint
	case float32, float64:
		return TypeNumeric
	case time.Time, *time.Time:
		return TypeTimestamp
	case bool:
		return TypeBoolean
	default:
		return TypeText
	}
}
