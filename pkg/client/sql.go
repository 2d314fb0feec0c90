package client

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/quantpipe/tsaccess/pkg/config"
	"github.com/quantpipe/tsaccess/pkg/errors"
	"github.com/quantpipe/tsaccess/pkg/schema"
)

// Filters specifies WHERE conditions for GetTable. A value may be:
//   - a scalar:  equality (column = value)
//   - a slice:   membership (column IN (values...)); any element type
//     except []byte, which binds as a scalar bytea
//   - a Range:   column BETWEEN low AND high
//
// All values are bound as statement parameters; only column names are
// interpolated, and those are identifier-quoted.
type Filters map[string]interface{}

// Range is an inclusive between-filter.
type Range struct {
	Low  interface{}
	High interface{}
}

// quoteIdent quotes a SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualify returns a quoted schema-qualified table reference.
func qualify(schemaName, tableName string) string {
	return quoteIdent(schemaName) + "." + quoteIdent(tableName)
}

// quoteIdents quotes a list of identifiers and joins them with commas.
func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// buildWhere renders the filter map as a WHERE clause with $n placeholders
// starting at startParam. Columns are visited in sorted order so statements
// are deterministic.
func buildWhere(filters Filters, startParam int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	columns := make([]string, 0, len(filters))
	for col := range filters {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	conditions := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	param := startParam

	for _, col := range columns {
		v := filters[col]
		if r, ok := v.(Range); ok {
			conditions = append(conditions,
				fmt.Sprintf("%s BETWEEN $%d AND $%d", quoteIdent(col), param, param+1))
			args = append(args, r.Low, r.High)
			param += 2
			continue
		}
		if values, ok := asInList(v); ok {
			if len(values) == 0 {
				return "", nil, errors.Newf(errors.ErrorTypeValidation,
					"empty IN list for column %q", col)
			}
			placeholders := make([]string, len(values))
			for i := range values {
				placeholders[i] = fmt.Sprintf("$%d", param)
				param++
			}
			conditions = append(conditions,
				fmt.Sprintf("%s IN (%s)", quoteIdent(col), strings.Join(placeholders, ", ")))
			args = append(args, values...)
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", quoteIdent(col), param))
		args = append(args, v)
		param++
	}

	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// asInList normalizes a slice filter value of any element type into
// []interface{}. []byte is excluded so byte strings bind as scalar bytea.
func asInList(v interface{}) ([]interface{}, bool) {
	if values, ok := v.([]interface{}); ok {
		return values, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]interface{}, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}

// buildCreateTableSQL renders CREATE TABLE from inferred column definitions.
func buildCreateTableSQL(schemaName, tableName string, columns []schema.Column) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col.Name) + " " + string(col.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualify(schemaName, tableName), strings.Join(defs, ", "))
}

// buildAddColumnSQL renders ALTER TABLE ... ADD COLUMN for one column.
func buildAddColumnSQL(schemaName, tableName string, col schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		qualify(schemaName, tableName), quoteIdent(col.Name), string(col.Type))
}

// buildUpsertSQL renders a multi-row INSERT with an ON CONFLICT clause over
// the conflict key set. ConflictSkip produces DO NOTHING; ConflictUpdate
// overwrites every non-key column from EXCLUDED.
func buildUpsertSQL(schemaName, tableName string, columns, conflictKeys []string, rowCount int, policy config.ConflictPolicy) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(qualify(schemaName, tableName))
	sb.WriteString(" (")
	sb.WriteString(quoteIdents(columns))
	sb.WriteString(") VALUES ")
	writeValuePlaceholders(&sb, len(columns), rowCount)
	sb.WriteString(" ON CONFLICT (")
	sb.WriteString(quoteIdents(conflictKeys))
	sb.WriteString(")")

	if policy == config.ConflictUpdate {
		keySet := make(map[string]struct{}, len(conflictKeys))
		for _, k := range conflictKeys {
			keySet[k] = struct{}{}
		}
		assignments := make([]string, 0, len(columns))
		for _, col := range columns {
			if _, isKey := keySet[col]; isKey {
				continue
			}
			assignments = append(assignments, quoteIdent(col)+" = EXCLUDED."+quoteIdent(col))
		}
		if len(assignments) > 0 {
			sb.WriteString(" DO UPDATE SET ")
			sb.WriteString(strings.Join(assignments, ", "))
		} else {
			// All columns are conflict keys; nothing to overwrite.
			sb.WriteString(" DO NOTHING")
		}
	} else {
		sb.WriteString(" DO NOTHING")
	}

	return sb.String()
}

// writeValuePlaceholders appends ($1, $2), ($3, $4), ... for rowCount rows
// of width values each.
func writeValuePlaceholders(sb *strings.Builder, width, rowCount int) {
	param := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 0; c < width; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "$%d", param)
			param++
		}
		sb.WriteString(")")
	}
}

// flattenRows concatenates row values into one argument slice matching the
// placeholder order produced by writeValuePlaceholders.
func flattenRows(rows [][]interface{}) []interface{} {
	if len(rows) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}
