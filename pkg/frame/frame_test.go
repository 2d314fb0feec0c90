package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpipe/tsaccess/pkg/errors"
)

func TestNew(t *testing.T) {
	f, err := New([]string{"timestamp", "instrument_name", "price"})
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "instrument_name", "price"}, f.Columns())
	assert.True(t, f.Empty())
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
	}{
		{"no columns", nil},
		{"empty name", []string{"a", ""}},
		{"duplicate", []string{"a", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.columns)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestAppendRow(t *testing.T) {
	f, err := New([]string{"instrument_name", "trade_seq"})
	require.NoError(t, err)

	require.NoError(t, f.AppendRow("BTC-14MAR25", int64(1)))
	require.NoError(t, f.AppendRow("BTC-14MAR25", int64(2)))
	assert.Equal(t, 2, f.NumRows())

	err = f.AppendRow("ETH-14MAR25")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestFromRecords(t *testing.T) {
	ts := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{"timestamp": ts, "instrument_name": "BTC-14MAR25", "price": 84000.5},
		{"timestamp": ts.Add(time.Second), "instrument_name": "BTC-14MAR25"},
	}

	f, err := FromRecords(records, "timestamp", "instrument_name", "price")
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumRows())

	// Missing values fill as nil
	v, ok := f.Value(1, "price")
	require.True(t, ok)
	assert.Nil(t, v)
}

func TestFromRecordsSortedColumns(t *testing.T) {
	records := []Record{
		{"b": 1, "a": 2},
		{"c": 3},
	}
	f, err := FromRecords(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, f.Columns())
}

func TestColumn(t *testing.T) {
	f, err := FromRecords([]Record{
		{"trade_seq": int64(1)},
		{"trade_seq": int64(2)},
		{"trade_seq": int64(4)},
	})
	require.NoError(t, err)

	values, err := f.Column("trade_seq")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(4)}, values)

	_, err = f.Column("missing")
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	f, err := FromRecords([]Record{
		{"a": 1, "b": "x", "c": true},
	}, "a", "b", "c")
	require.NoError(t, err)

	sub, err := f.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sub.Columns())
	row, ok := sub.Row(0)
	require.True(t, ok)
	assert.Equal(t, []interface{}{true, 1}, row)

	_, err = f.Select("d")
	require.Error(t, err)
}

func TestRowOutOfRange(t *testing.T) {
	f, err := FromRecords([]Record{{"a": 1}}, "a")
	require.NoError(t, err)

	row, ok := f.Row(0)
	require.True(t, ok)
	assert.Equal(t, []interface{}{1}, row)

	_, ok = f.Row(1)
	assert.False(t, ok)
	_, ok = f.Row(-1)
	assert.False(t, ok)
}

func TestRecordsRoundTrip(t *testing.T) {
	records := []Record{
		{"instrument_name": "ETH-14MAR25", "trade_seq": int64(7), "price": 1900.25},
	}
	f, err := FromRecords(records, "instrument_name", "trade_seq", "price")
	require.NoError(t, err)
	assert.Equal(t, records, f.Records())
}

func TestMarshalJSON(t *testing.T) {
	f, err := FromRecords([]Record{{"a": 1}}, "a")
	require.NoError(t, err)

	data, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a":1}]`, string(data))
}
