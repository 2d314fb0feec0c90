package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantpipe/tsaccess/pkg/config"
	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/schema"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"trade_seq"`, quoteIdent("trade_seq"))
	assert.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
	assert.Equal(t, `"raw_data"."btc_trades"`, qualify("raw_data", "btc_trades"))
}

func TestBuildWhere(t *testing.T) {
	tests := []struct {
		name     string
		filters  Filters
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "empty",
			filters: nil,
			wantSQL: "",
		},
		{
			name:     "equality",
			filters:  Filters{"instrument_name": "BTC-14MAR25"},
			wantSQL:  ` WHERE "instrument_name" = $1`,
			wantArgs: []interface{}{"BTC-14MAR25"},
		},
		{
			name:     "in list",
			filters:  Filters{"instrument_name": []interface{}{"BTC-14MAR25", "ETH-14MAR25"}},
			wantSQL:  ` WHERE "instrument_name" IN ($1, $2)`,
			wantArgs: []interface{}{"BTC-14MAR25", "ETH-14MAR25"},
		},
		{
			name:     "typed string slice",
			filters:  Filters{"instrument_name": []string{"BTC-14MAR25", "ETH-14MAR25"}},
			wantSQL:  ` WHERE "instrument_name" IN ($1, $2)`,
			wantArgs: []interface{}{"BTC-14MAR25", "ETH-14MAR25"},
		},
		{
			name:     "typed int64 slice",
			filters:  Filters{"trade_seq": []int64{7, 9, 11}},
			wantSQL:  ` WHERE "trade_seq" IN ($1, $2, $3)`,
			wantArgs: []interface{}{int64(7), int64(9), int64(11)},
		},
		{
			name:     "byte slice binds as scalar",
			filters:  Filters{"payload": []byte{0x01, 0x02}},
			wantSQL:  ` WHERE "payload" = $1`,
			wantArgs: []interface{}{[]byte{0x01, 0x02}},
		},
		{
			name:     "range",
			filters:  Filters{"trade_seq": Range{Low: 100, High: 200}},
			wantSQL:  ` WHERE "trade_seq" BETWEEN $1 AND $2`,
			wantArgs: []interface{}{100, 200},
		},
		{
			name: "combined sorted by column",
			filters: Filters{
				"trade_seq":       Range{Low: 1, High: 10},
				"instrument_name": "BTC-14MAR25",
			},
			wantSQL:  ` WHERE "instrument_name" = $1 AND "trade_seq" BETWEEN $2 AND $3`,
			wantArgs: []interface{}{"BTC-14MAR25", 1, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildWhere(tt.filters, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildWhereEmptyInList(t *testing.T) {
	for _, empty := range []interface{}{[]interface{}{}, []string{}, []int64{}} {
		_, _, err := buildWhere(Filters{"instrument_name": empty}, 1)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	}
}

func TestBuildWhereStartParam(t *testing.T) {
	sql, args, err := buildWhere(Filters{"price": 42.0}, 3)
	require.NoError(t, err)
	assert.Equal(t, ` WHERE "price" = $3`, sql)
	assert.Equal(t, []interface{}{42.0}, args)
}

func TestBuildCreateTableSQL(t *testing.T) {
	sql := buildCreateTableSQL("raw_data", "btc_trades", []schema.Column{
		{Name: "timestamp", Type: schema.TypeTimestamp},
		{Name: "instrument_name", Type: schema.TypeText},
		{Name: "trade_seq", Type: schema.TypeBigint},
		{Name: "price", Type: schema.TypeNumeric},
	})
	assert.Equal(t,
		`CREATE TABLE "raw_data"."btc_trades" ("timestamp" TIMESTAMPTZ, "instrument_name" TEXT, "trade_seq" BIGINT, "price" NUMERIC)`,
		sql)
}

func TestBuildAddColumnSQL(t *testing.T) {
	sql := buildAddColumnSQL("raw_data", "btc_trades", schema.Column{Name: "iv", Type: schema.TypeNumeric})
	assert.Equal(t, `ALTER TABLE "raw_data"."btc_trades" ADD COLUMN "iv" NUMERIC`, sql)
}

func TestBuildUpsertSQLSkip(t *testing.T) {
	sql := buildUpsertSQL("raw_data", "btc_trades",
		[]string{"instrument_name", "trade_seq", "timestamp", "price"},
		[]string{"instrument_name", "trade_seq", "timestamp"},
		2, config.ConflictSkip)
	assert.Equal(t,
		`INSERT INTO "raw_data"."btc_trades" ("instrument_name", "trade_seq", "timestamp", "price") `+
			`VALUES ($1, $2, $3, $4), ($5, $6, $7, $8) `+
			`ON CONFLICT ("instrument_name", "trade_seq", "timestamp") DO NOTHING`,
		sql)
}

func TestBuildUpsertSQLUpdate(t *testing.T) {
	sql := buildUpsertSQL("raw_data", "btc_trades",
		[]string{"instrument_name", "trade_seq", "price", "amount"},
		[]string{"instrument_name", "trade_seq"},
		1, config.ConflictUpdate)
	assert.Equal(t,
		`INSERT INTO "raw_data"."btc_trades" ("instrument_name", "trade_seq", "price", "amount") `+
			`VALUES ($1, $2, $3, $4) `+
			`ON CONFLICT ("instrument_name", "trade_seq") `+
			`DO UPDATE SET "price" = EXCLUDED."price", "amount" = EXCLUDED."amount"`,
		sql)
}

func TestBuildUpsertSQLAllKeysFallsBackToNothing(t *testing.T) {
	sql := buildUpsertSQL("s", "t", []string{"a", "b"}, []string{"a", "b"}, 1, config.ConflictUpdate)
	assert.Contains(t, sql, "DO NOTHING")
	assert.NotContains(t, sql, "DO UPDATE")
}

func TestFlattenRows(t *testing.T) {
	args := flattenRows([][]interface{}{{1, "x"}, {2, "y"}})
	assert.Equal(t, []interface{}{1, "x", 2, "y"}, args)
	assert.Nil(t, flattenRows(nil))
}
