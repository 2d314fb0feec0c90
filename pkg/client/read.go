package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/frame"
	"github.com/quantpipe/tsaccess/pkg/metrics"
)

// ReadOption adjusts ordering and pagination of GetTable.
type ReadOption func(*readOptions)

type readOptions struct {
	orderBy    string
	descending bool
	limit      int
	offset     int
}

// WithOrderBy sorts the result by the given column.
func WithOrderBy(column string) ReadOption {
	return func(o *readOptions) { o.orderBy = column }
}

// WithDescending reverses the sort order set by WithOrderBy.
func WithDescending() ReadOption {
	return func(o *readOptions) { o.descending = true }
}

// WithLimit caps the number of returned rows.
func WithLimit(limit int) ReadOption {
	return func(o *readOptions) { o.limit = limit }
}

// WithOffset skips the first offset rows; combine with WithLimit for paging.
func WithOffset(offset int) ReadOption {
	return func(o *readOptions) { o.offset = offset }
}

// GetTable loads a table as a frame with optional filters.
//
// Filter examples:
//
//	client.Filters{"instrument_name": []interface{}{"BTC-14MAR25", "ETH-14MAR25"}}
//	client.Filters{"trade_seq": client.Range{Low: 100, High: 200}}
func (c *Client) GetTable(ctx context.Context, schemaName, tableName string, filters Filters, opts ...ReadOption) (*frame.Frame, error) {
	timer := metrics.NewTimer("select")
	defer timer.Stop()

	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	sql := "SELECT * FROM " + qualify(schemaName, tableName)
	where, args, err := buildWhere(filters, 1)
	if err != nil {
		return nil, err
	}
	sql += where

	if o.orderBy != "" {
		sql += " ORDER BY " + quoteIdent(o.orderBy)
		if o.descending {
			sql += " DESC"
		}
	}
	if o.limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", o.limit)
	}
	if o.offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", o.offset)
	}

	rows, err := c.pool.Query(ctx, sql, args...)
	metrics.ObserveQuery("select", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query table").
			WithDetail("table", schemaName+"."+tableName)
	}
	defer rows.Close()

	return rowsToFrame(rows)
}

// GetExistingTimestamps returns the sorted distinct timestamps of a column.
func (c *Client) GetExistingTimestamps(ctx context.Context, schemaName, tableName, column string) ([]time.Time, error) {
	sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		quoteIdent(column), qualify(schemaName, tableName), quoteIdent(column), quoteIdent(column))

	rows, err := c.pool.Query(ctx, sql)
	metrics.ObserveQuery("select", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query timestamps")
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan timestamp")
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// GetDistinctValues returns all distinct, non-null values of a column.
func (c *Client) GetDistinctValues(ctx context.Context, schemaName, tableName, column string) ([]interface{}, error) {
	sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL",
		quoteIdent(column), qualify(schemaName, tableName), quoteIdent(column))

	rows, err := c.pool.Query(ctx, sql)
	metrics.ObserveQuery("select", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query distinct values")
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan value")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetRowCount returns the number of rows in a table.
func (c *Client) GetRowCount(ctx context.Context, schemaName, tableName string) (int64, error) {
	sql := "SELECT COUNT(*) FROM " + qualify(schemaName, tableName)

	var count int64
	err := c.pool.QueryRow(ctx, sql).Scan(&count)
	metrics.ObserveQuery("select", err)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "failed to count rows")
	}
	return count, nil
}

// rowsToFrame drains a result set into a frame, taking column order from the
// statement's field descriptions.
func rowsToFrame(rows pgx.Rows) (*frame.Frame, error) {
	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	for i, d := range descs {
		columns[i] = d.Name
	}

	f, err := frame.New(columns)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read row values")
		}
		if err := f.AppendRow(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "row iteration failed")
	}
	return f, nil
}
