package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/frame"
	"github.com/quantpipe/tsaccess/pkg/metrics"
)

// GetMissingSeq returns every expected but absent sequence value per group.
// For each group the expected range is [MIN(seq), MAX(seq)]; values inside
// that range with no row are reported. Result columns: the group column and
// expected_seq.
func (c *Client) GetMissingSeq(ctx context.Context, schemaName, tableName, groupColumn, seqColumn string) (*frame.Frame, error) {
	timer := metrics.NewTimer("analysis")
	defer timer.Stop()

	group := quoteIdent(groupColumn)
	seq := quoteIdent(seqColumn)
	table := qualify(schemaName, tableName)

	sql := fmt.Sprintf(`
		WITH seq_range AS (
			SELECT %[1]s, MIN(%[2]s) AS min_seq, MAX(%[2]s) AS max_seq
			FROM %[3]s
			WHERE %[2]s IS NOT NULL
			GROUP BY %[1]s
		),
		all_numbers AS (
			SELECT %[1]s, generate_series(min_seq, max_seq) AS expected_seq
			FROM seq_range
		),
		actual_numbers AS (
			SELECT DISTINCT %[1]s, %[2]s
			FROM %[3]s
		)
		SELECT a.%[1]s, a.expected_seq
		FROM all_numbers a
		LEFT JOIN actual_numbers b
		  ON a.%[1]s = b.%[1]s
		 AND a.expected_seq = b.%[2]s
		WHERE b.%[2]s IS NULL
		ORDER BY a.%[1]s, a.expected_seq`, group, seq, table)

	return c.queryFrame(ctx, sql)
}

// GetNonconsecutiveSeq returns rows whose sequence value does not follow its
// predecessor by exactly one within its group, using a LAG window. Result
// columns: group column, sequence column, previous_seq, diff.
func (c *Client) GetNonconsecutiveSeq(ctx context.Context, schemaName, tableName, groupColumn, seqColumn string) (*frame.Frame, error) {
	timer := metrics.NewTimer("analysis")
	defer timer.Stop()

	group := quoteIdent(groupColumn)
	seq := quoteIdent(seqColumn)
	table := qualify(schemaName, tableName)

	sql := fmt.Sprintf(`
		WITH diffs AS (
			SELECT
				%[1]s,
				%[2]s,
				LAG(%[2]s) OVER (
					PARTITION BY %[1]s
					ORDER BY %[2]s
				) AS previous_seq
			FROM %[3]s
			WHERE %[2]s IS NOT NULL
		)
		SELECT *, %[2]s - previous_seq AS diff
		FROM diffs
		WHERE %[2]s - previous_seq != 1
		ORDER BY %[1]s, %[2]s`, group, seq, table)

	return c.queryFrame(ctx, sql)
}

// GetDuplicateRows returns all rows whose combination of key columns occurs
// more than once, ordered by the keys.
func (c *Client) GetDuplicateRows(ctx context.Context, schemaName, tableName string, keyColumns ...string) (*frame.Frame, error) {
	timer := metrics.NewTimer("analysis")
	defer timer.Stop()

	if len(keyColumns) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "duplicate detection requires at least one key column")
	}

	keys := quoteIdents(keyColumns)
	table := qualify(schemaName, tableName)

	sql := fmt.Sprintf(`
		SELECT *
		FROM %[1]s
		WHERE (%[2]s) IN (
			SELECT %[2]s
			FROM %[1]s
			GROUP BY %[2]s
			HAVING COUNT(*) > 1
		)
		ORDER BY %[2]s`, table, keys)

	return c.queryFrame(ctx, sql)
}

// NullSummary reports the null count and fraction for one column.
type NullSummary struct {
	Column       string  `json:"column"`
	NullCount    int64   `json:"null_count"`
	TotalCount   int64   `json:"total_count"`
	NullFraction float64 `json:"null_fraction"`
}

// GetNullSummary returns, for each column of the table, how many values are
// null and the corresponding fraction. Columns with no nulls are included
// with a zero count.
func (c *Client) GetNullSummary(ctx context.Context, schemaName, tableName string) ([]NullSummary, error) {
	timer := metrics.NewTimer("analysis")
	defer timer.Stop()

	columns, err := c.GetColumnNames(ctx, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound,
			"table %s.%s not found", schemaName, tableName)
	}

	table := qualify(schemaName, tableName)
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(
			"SELECT %d AS ord, '%s' AS column_name, COUNT(*) FILTER (WHERE %s IS NULL) AS null_count, COUNT(*) AS total_count FROM %s",
			i, strings.ReplaceAll(col, "'", "''"), quoteIdent(col), table)
	}
	sql := strings.Join(parts, " UNION ALL ") + " ORDER BY ord"

	rows, err := c.pool.Query(ctx, sql)
	metrics.ObserveQuery("analysis", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query null summary")
	}
	defer rows.Close()

	var summaries []NullSummary
	for rows.Next() {
		var ord int
		var s NullSummary
		if err := rows.Scan(&ord, &s.Column, &s.NullCount, &s.TotalCount); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan null summary row")
		}
		if s.TotalCount > 0 {
			s.NullFraction = float64(s.NullCount) / float64(s.TotalCount)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetHypertableSize returns the total on-disk size of a hypertable as a
// pg_size_pretty formatted string, summed over its chunks in the Timescale
// internal schema.
func (c *Client) GetHypertableSize(ctx context.Context, schemaName, tableName string) (string, error) {
	timer := metrics.NewTimer("analysis")
	defer timer.Stop()

	const idQuery = `
		SELECT id
		FROM _timescaledb_catalog.hypertable
		WHERE schema_name = $1 AND table_name = $2`

	var hypertableID int64
	err := c.pool.QueryRow(ctx, idQuery, schemaName, tableName).Scan(&hypertableID)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", errors.Newf(errors.ErrorTypeNotFound,
			"hypertable %s.%s not found", schemaName, tableName)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeQuery, "failed to look up hypertable")
	}

	sizeQuery := fmt.Sprintf(`
		SELECT COALESCE(pg_size_pretty(SUM(pg_total_relation_size(c.oid))), '0 bytes')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = '_timescaledb_internal'
		  AND c.relname LIKE '_hyper_%d_%%_chunk'`, hypertableID)

	var size string
	err = c.pool.QueryRow(ctx, sizeQuery).Scan(&size)
	metrics.ObserveQuery("analysis", err)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeQuery, "failed to query hypertable size")
	}
	return size, nil
}

// queryFrame runs a read-only analysis statement and returns the result as a
// frame.
func (c *Client) queryFrame(ctx context.Context, sql string, args ...interface{}) (*frame.Frame, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	metrics.ObserveQuery("analysis", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "analysis query failed")
	}
	defer rows.Close()

	return rowsToFrame(rows)
}
