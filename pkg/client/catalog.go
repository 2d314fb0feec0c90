package client

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/metrics"
)

// ignoredSchemas are system and TimescaleDB-internal namespaces hidden from
// GetSchemas.
var ignoredSchemas = []string{
	"pg_catalog",
	"information_schema",
	"pg_toast",
	"timescaledb_information",
	"timescaledb_experimental",
	"_timescaledb_internal",
	"_timescaledb_functions",
	"_timescaledb_debug",
	"_timescaledb_config",
	"_timescaledb_catalog",
	"_timescaledb_cache",
}

// GetSchemas returns all user-defined schemas, excluding system and
// TimescaleDB internals.
func (c *Client) GetSchemas(ctx context.Context) ([]string, error) {
	const q = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name != ALL($1)
		ORDER BY schema_name`
	return c.queryStrings(ctx, q, ignoredSchemas)
}

// GetTableNames returns all table names in the given schema.
func (c *Client) GetTableNames(ctx context.Context, schemaName string) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`
	return c.queryStrings(ctx, q, schemaName)
}

// GetColumnNames returns all column names of a table in ordinal order.
func (c *Client) GetColumnNames(ctx context.Context, schemaName, tableName string) ([]string, error) {
	const q = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	return c.queryStrings(ctx, q, schemaName, tableName)
}

// IndexInfo describes one index on a table.
type IndexInfo struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Unique     bool   `json:"unique"`
	Primary    bool   `json:"primary"`
}

// GetIndexes returns index metadata for a table.
func (c *Client) GetIndexes(ctx context.Context, schemaName, tableName string) ([]IndexInfo, error) {
	const q = `
		SELECT i.indexname, i.indexdef, x.indisunique, x.indisprimary
		FROM pg_indexes i
		JOIN pg_class c ON c.relname = i.indexname
		JOIN pg_namespace n ON n.oid = c.relnamespace AND n.nspname = i.schemaname
		JOIN pg_index x ON x.indexrelid = c.oid
		WHERE i.schemaname = $1 AND i.tablename = $2
		ORDER BY i.indexname`

	rows, err := c.pool.Query(ctx, q, schemaName, tableName)
	metrics.ObserveQuery("catalog", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list indexes")
	}
	defer rows.Close()

	var indexes []IndexInfo
	for rows.Next() {
		var info IndexInfo
		if err := rows.Scan(&info.Name, &info.Definition, &info.Unique, &info.Primary); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan index row")
		}
		indexes = append(indexes, info)
	}
	return indexes, rows.Err()
}

// GetDatabases returns all non-template databases in the instance.
func (c *Client) GetDatabases(ctx context.Context) ([]string, error) {
	const q = `SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`
	return c.queryStrings(ctx, q)
}

// RoleInfo describes a database role and its basic privileges.
type RoleInfo struct {
	Name       string `json:"name"`
	Superuser  bool   `json:"superuser"`
	CreateRole bool   `json:"create_role"`
	CreateDB   bool   `json:"create_db"`
}

// GetRoles returns all roles and their basic privileges.
func (c *Client) GetRoles(ctx context.Context) ([]RoleInfo, error) {
	const q = `SELECT rolname, rolsuper, rolcreaterole, rolcreatedb FROM pg_roles ORDER BY rolname`

	rows, err := c.pool.Query(ctx, q)
	metrics.ObserveQuery("catalog", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list roles")
	}
	defer rows.Close()

	var roles []RoleInfo
	for rows.Next() {
		var r RoleInfo
		if err := rows.Scan(&r.Name, &r.Superuser, &r.CreateRole, &r.CreateDB); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan role row")
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// RoleMembership maps a member role to the role it belongs to.
type RoleMembership struct {
	Role   string `json:"role"`
	Member string `json:"member"`
}

// GetRoleMemberships returns all role memberships in the database.
func (c *Client) GetRoleMemberships(ctx context.Context) ([]RoleMembership, error) {
	const q = `
		SELECT r.rolname AS role_name, m.rolname AS member_name
		FROM pg_auth_members am
		JOIN pg_roles r ON r.oid = am.roleid
		JOIN pg_roles m ON m.oid = am.member
		ORDER BY r.rolname, m.rolname`

	rows, err := c.pool.Query(ctx, q)
	metrics.ObserveQuery("catalog", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list role memberships")
	}
	defer rows.Close()

	var memberships []RoleMembership
	for rows.Next() {
		var m RoleMembership
		if err := rows.Scan(&m.Role, &m.Member); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan membership row")
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ConnectionInfo describes one active database connection.
type ConnectionInfo struct {
	Database   string `json:"database"`
	User       string `json:"user"`
	ClientAddr string `json:"client_addr"`
}

// GetActiveConnections returns active connections with database, user and
// client address.
func (c *Client) GetActiveConnections(ctx context.Context) ([]ConnectionInfo, error) {
	const q = `
		SELECT datname, usename, COALESCE(client_addr::text, '')
		FROM pg_stat_activity
		WHERE datname IS NOT NULL AND usename IS NOT NULL`

	rows, err := c.pool.Query(ctx, q)
	metrics.ObserveQuery("catalog", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to list active connections")
	}
	defer rows.Close()

	var conns []ConnectionInfo
	for rows.Next() {
		var info ConnectionInfo
		if err := rows.Scan(&info.Database, &info.User, &info.ClientAddr); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan connection row")
		}
		conns = append(conns, info)
	}
	return conns, rows.Err()
}

// tableExists reports whether the table is present in information_schema.
func (c *Client) tableExists(ctx context.Context, tx pgx.Tx, schemaName, tableName string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`
	var exists bool
	err := tx.QueryRow(ctx, q, schemaName, tableName).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeQuery, "failed to check table existence")
	}
	return exists, nil
}

// hypertableExists reports whether the table is already registered as a
// TimescaleDB hypertable.
func (c *Client) hypertableExists(ctx context.Context, schemaName, tableName string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM timescaledb_information.hypertables
			WHERE hypertable_schema = $1 AND hypertable_name = $2
		)`
	var exists bool
	err := c.pool.QueryRow(ctx, q, schemaName, tableName).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeQuery, "failed to check hypertable existence")
	}
	return exists, nil
}

// queryStrings runs a query returning a single text column.
func (c *Client) queryStrings(ctx context.Context, q string, args ...interface{}) ([]string, error) {
	rows, err := c.pool.Query(ctx, q, args...)
	metrics.ObserveQuery("catalog", err)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "query failed")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan row")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
