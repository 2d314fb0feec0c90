package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/frame"
)

func TestInferValueType(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  ColumnType
	}{
		{"int", 42, TypeBigint},
		{"int64", int64(42), TypeBigint},
		{"uint32", uint32(7), TypeBigint},
		{"float64", 84000.5, TypeNumeric},
		{"float32", float32(1.5), TypeNumeric},
		{"time", time.Now(), TypeTimestamp},
		{"bool", true, TypeBoolean},
		{"string", "BTC-14MAR25", TypeText},
		{"bytes", []byte("x"), TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferValueType(tt.value))
		})
	}
}

func TestInferColumns(t *testing.T) {
	ts := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	f, err := frame.FromRecords([]frame.Record{
		{"timestamp": ts, "instrument_name": "BTC-14MAR25", "trade_seq": int64(1), "price": 84000.5, "liquidation": false},
	}, "timestamp", "instrument_name", "trade_seq", "price", "liquidation")
	require.NoError(t, err)

	columns, err := InferColumns(f)
	require.NoError(t, err)
	assert.Equal(t, []Column{
		{Name: "timestamp", Type: TypeTimestamp},
		{Name: "instrument_name", Type: TypeText},
		{Name: "trade_seq", Type: TypeBigint},
		{Name: "price", Type: TypeNumeric},
		{Name: "liquidation", Type: TypeBoolean},
	}, columns)
}

func TestInferColumnsEmptyFrame(t *testing.T) {
	f, err := frame.New([]string{"timestamp"})
	require.NoError(t, err)

	_, err = InferColumns(f)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = InferColumns(nil)
	require.Error(t, err)
}

func TestInferColumnWidening(t *testing.T) {
	f, err := frame.FromRecords([]frame.Record{
		{"mixed_numeric": int64(1), "mixed_other": int64(1), "all_nil": nil, "with_nil": nil},
		{"mixed_numeric": 2.5, "mixed_other": "two", "all_nil": nil, "with_nil": int64(9)},
	}, "mixed_numeric", "mixed_other", "all_nil", "with_nil")
	require.NoError(t, err)

	columns, err := InferColumns(f)
	require.NoError(t, err)

	byName := make(map[string]ColumnType)
	for _, c := range columns {
		byName[c.Name] = c.Type
	}
	assert.Equal(t, TypeNumeric, byName["mixed_numeric"])
	assert.Equal(t, TypeText, byName["mixed_other"])
	assert.Equal(t, TypeText, byName["all_nil"])
	assert.Equal(t, TypeBigint, byName["with_nil"])
}
