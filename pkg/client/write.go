package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quantpipe/tsaccess/pkg/config"
	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/frame"
	"github.com/quantpipe/tsaccess/pkg/metrics"
	"github.com/quantpipe/tsaccess/pkg/schema"
)

// WriteOption overrides write-path defaults for a single call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	timeColumn     string
	batchSize      int
	conflictPolicy config.ConflictPolicy
}

// WithTimeColumn overrides the hypertable time-partitioning column.
func WithTimeColumn(column string) WriteOption {
	return func(o *writeOptions) { o.timeColumn = column }
}

// WithBatchSize overrides the number of rows per statement.
func WithBatchSize(size int) WriteOption {
	return func(o *writeOptions) { o.batchSize = size }
}

// WithConflictPolicy overrides the upsert resolution policy for one call.
func WithConflictPolicy(policy config.ConflictPolicy) WriteOption {
	return func(o *writeOptions) { o.conflictPolicy = policy }
}

func (c *Client) writeOptions(opts []WriteOption) writeOptions {
	o := writeOptions{
		timeColumn:     c.cfg.Write.TimeColumn,
		batchSize:      c.cfg.Write.BatchSize,
		conflictPolicy: c.cfg.Write.ConflictPolicy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EnsureSchema creates the schema if it does not already exist. Calling it
// for an existing schema is a no-op.
func (c *Client) EnsureSchema(ctx context.Context, schemaName string) error {
	if schemaName == "" {
		return errors.New(errors.ErrorTypeValidation, "schema name is required")
	}
	_, err := c.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schemaName))
	metrics.ObserveQuery("ddl", err)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSchema, "failed to ensure schema").
			WithDetail("schema", schemaName)
	}
	return nil
}

// DropTable drops a table in the given schema, cascading to dependents.
func (c *Client) DropTable(ctx context.Context, schemaName, tableName string) error {
	_, err := c.pool.Exec(ctx,
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", qualify(schemaName, tableName)))
	metrics.ObserveQuery("ddl", err)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSchema, "failed to drop table")
	}
	return nil
}

// CreateHypertable creates the target table from the frame's inferred column
// types and registers it as a hypertable partitioned on the time column. The
// frame supplies only the shape; no rows are inserted. Idempotent: an
// existing table only gains columns the frame carries that it lacks.
func (c *Client) CreateHypertable(ctx context.Context, schemaName, tableName string, f *frame.Frame, opts ...WriteOption) error {
	o := c.writeOptions(opts)
	if err := validateFrame(f, o.timeColumn); err != nil {
		return err
	}
	if err := c.ensureTable(ctx, schemaName, tableName, f); err != nil {
		return err
	}
	return c.ensureHypertable(ctx, schemaName, tableName, o.timeColumn)
}

// InsertHypertable bulk-inserts the frame into a hypertable. The table and
// its columns are created automatically if they do not exist yet; the time
// column drives time-partitioning. Rows travel over the COPY protocol.
// Constraint violations from the driver propagate unchanged as the cause.
func (c *Client) InsertHypertable(ctx context.Context, schemaName, tableName string, f *frame.Frame, opts ...WriteOption) error {
	timer := metrics.NewTimer("insert")
	defer timer.Stop()

	o := c.writeOptions(opts)
	if err := validateFrame(f, o.timeColumn); err != nil {
		return err
	}

	if err := c.ensureTable(ctx, schemaName, tableName, f); err != nil {
		return err
	}

	copied, err := c.pool.CopyFrom(ctx,
		pgx.Identifier{schemaName, tableName},
		f.Columns(),
		pgx.CopyFromRows(f.Rows()),
	)
	metrics.ObserveQuery("insert", err)
	if err != nil {
		return wrapDBError(err, errors.ErrorTypeQuery,
			fmt.Sprintf("failed to insert into %s.%s", schemaName, tableName))
	}
	metrics.RowsWritten.WithLabelValues("insert", schemaName+"."+tableName).Add(float64(copied))

	if err := c.ensureHypertable(ctx, schemaName, tableName, o.timeColumn); err != nil {
		return err
	}

	c.log.Info("inserted rows",
		zap.String("table", schemaName+"."+tableName),
		zap.Int64("rows", copied))
	return nil
}

// InsertHypertableOnConflict inserts the frame while resolving rows whose
// conflict-key values already exist. With the skip policy existing rows stay
// untouched; with the update policy their non-key columns are overwritten.
// A unique index over the conflict keys is ensured first. All statements for
// the batch run in one transaction, so the batch applies fully or not at all.
//
// Time-series ingestion replays overlapping windows; the conflict key set
// should include the time column, which TimescaleDB also requires for unique
// indexes on hypertables.
func (c *Client) InsertHypertableOnConflict(ctx context.Context, schemaName, tableName string, f *frame.Frame, conflictKeys []string, opts ...WriteOption) error {
	timer := metrics.NewTimer("upsert")
	defer timer.Stop()

	o := c.writeOptions(opts)
	if err := validateFrame(f, o.timeColumn); err != nil {
		return err
	}
	if len(conflictKeys) == 0 {
		return errors.New(errors.ErrorTypeValidation, "conflict key set is empty")
	}
	for _, key := range conflictKeys {
		if !f.HasColumn(key) {
			return errors.Newf(errors.ErrorTypeValidation,
				"conflict key %q not present in frame", key)
		}
	}

	if err := c.ensureTable(ctx, schemaName, tableName, f); err != nil {
		return err
	}
	if err := c.ensureUniqueIndex(ctx, schemaName, tableName, conflictKeys); err != nil {
		return err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	columns := f.Columns()
	rows := f.Rows()
	for start := 0; start < len(rows); start += o.batchSize {
		end := start + o.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		sql := buildUpsertSQL(schemaName, tableName, columns, conflictKeys, len(chunk), o.conflictPolicy)
		_, err := tx.Exec(ctx, sql, flattenRows(chunk)...)
		metrics.ObserveQuery("upsert", err)
		if err != nil {
			return wrapDBError(err, errors.ErrorTypeQuery,
				fmt.Sprintf("failed to upsert into %s.%s", schemaName, tableName))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to commit upsert")
	}
	metrics.RowsWritten.WithLabelValues("upsert", schemaName+"."+tableName).Add(float64(len(rows)))

	if err := c.ensureHypertable(ctx, schemaName, tableName, o.timeColumn); err != nil {
		return err
	}

	c.log.Info("upserted rows",
		zap.String("table", schemaName+"."+tableName),
		zap.Int("rows", len(rows)),
		zap.Strings("conflict_keys", conflictKeys),
		zap.String("policy", string(o.conflictPolicy)))
	return nil
}

// validateFrame rejects empty batches and batches missing the time column
// before any round trip to the database.
func validateFrame(f *frame.Frame, timeColumn string) error {
	if f == nil || f.Empty() {
		return errors.New(errors.ErrorTypeValidation, "frame has no rows")
	}
	if !f.HasColumn(timeColumn) {
		return errors.Newf(errors.ErrorTypeValidation,
			"time column %q not present in frame", timeColumn)
	}
	return nil
}

// ensureTable creates the table from the frame's inferred column types, or
// adds any frame columns an existing table lacks. DDL runs in one
// transaction.
func (c *Client) ensureTable(ctx context.Context, schemaName, tableName string, f *frame.Frame) error {
	columns, err := schema.InferColumns(f)
	if err != nil {
		return err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	exists, err := c.tableExists(ctx, tx, schemaName, tableName)
	if err != nil {
		return err
	}

	if !exists {
		sql := buildCreateTableSQL(schemaName, tableName, columns)
		if _, err := tx.Exec(ctx, sql); err != nil {
			metrics.ObserveQuery("ddl", err)
			return errors.Wrap(err, errors.ErrorTypeSchema, "failed to create table").
				WithDetail("table", schemaName+"."+tableName)
		}
		metrics.ObserveQuery("ddl", nil)
		c.log.Info("created table",
			zap.String("table", schemaName+"."+tableName),
			zap.Int("columns", len(columns)))
	} else {
		existing, err := c.existingColumns(ctx, tx, schemaName, tableName)
		if err != nil {
			return err
		}
		for _, col := range columns {
			if _, ok := existing[col.Name]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, buildAddColumnSQL(schemaName, tableName, col)); err != nil {
				metrics.ObserveQuery("ddl", err)
				return errors.Wrap(err, errors.ErrorTypeSchema, "failed to add column").
					WithDetail("column", col.Name)
			}
			metrics.ObserveQuery("ddl", nil)
			c.log.Info("added column",
				zap.String("table", schemaName+"."+tableName),
				zap.String("column", col.Name),
				zap.String("type", string(col.Type)))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSchema, "failed to commit DDL")
	}
	return nil
}

// existingColumns returns the current column set of a table.
func (c *Client) existingColumns(ctx context.Context, tx pgx.Tx, schemaName, tableName string) (map[string]struct{}, error) {
	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2`

	rows, err := tx.Query(ctx, q, schemaName, tableName)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list columns")
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan column name")
		}
		existing[name] = struct{}{}
	}
	return existing, rows.Err()
}

// ensureUniqueIndex creates a unique index over the conflict keys if it is
// not present yet. The index name is derived from the table and key names.
func (c *Client) ensureUniqueIndex(ctx context.Context, schemaName, tableName string, keys []string) error {
	indexName := fmt.Sprintf("uq_%s_%s", tableName, strings.Join(keys, "_"))
	sql := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdent(indexName), qualify(schemaName, tableName), quoteIdents(keys))

	_, err := c.pool.Exec(ctx, sql)
	metrics.ObserveQuery("ddl", err)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSchema, "failed to ensure unique index").
			WithDetail("index", indexName)
	}
	return nil
}

// ensureHypertable registers the table as a hypertable if it is not one yet.
// migrate_data moves any rows already present into chunks.
func (c *Client) ensureHypertable(ctx context.Context, schemaName, tableName, timeColumn string) error {
	exists, err := c.hypertableExists(ctx, schemaName, tableName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	const q = `
		SELECT create_hypertable(
			$1::regclass,
			$2::name,
			migrate_data => TRUE,
			if_not_exists => TRUE
		)`
	_, err = c.pool.Exec(ctx, q, qualify(schemaName, tableName), timeColumn)
	metrics.ObserveQuery("ddl", err)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSchema, "failed to create hypertable").
			WithDetail("table", schemaName+"."+tableName).
			WithDetail("time_column", timeColumn)
	}

	c.log.Info("created hypertable",
		zap.String("table", schemaName+"."+tableName),
		zap.String("time_column", timeColumn))
	return nil
}
