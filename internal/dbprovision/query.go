package dbprovision

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// TableData is get_table_data's result.
type TableData struct {
	TotalRows    int64
	ReturnedRows int
	Limit        int
	Offset       int
	Data         []map[string]any
}

// GetTableData validates table, confirms it exists, and returns a page of
// its rows.
func GetTableData(ctx context.Context, conn *pgx.Conn, table string, limit, offset int) (TableData, error) {
	if err := validateTableName(table); err != nil {
		return TableData{}, err
	}
	if err := confirmTableExists(ctx, conn, table); err != nil {
		return TableData{}, err
	}

	var total int64
	if err := conn.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %q`, table)).Scan(&total); err != nil {
		return TableData{}, apperr.Wrap(apperr.Internal, err, "count rows").WithResource(table)
	}

	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT $1 OFFSET $2`, table), limit, offset)
	if err != nil {
		return TableData{}, apperr.Wrap(apperr.Internal, err, "read table page").WithResource(table)
	}
	defer rows.Close()

	data, err := rowsToMaps(rows)
	if err != nil {
		return TableData{}, apperr.Wrap(apperr.Internal, err, "scan table page").WithResource(table)
	}

	return TableData{
		TotalRows:    total,
		ReturnedRows: len(data),
		Limit:        limit,
		Offset:       offset,
		Data:         data,
	}, nil
}

func confirmTableExists(ctx context.Context, conn *pgx.Conn, table string) error {
	var exists bool
	err := conn.QueryRow(ctx, `SELECT exists(
		SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, table).Scan(&exists)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "confirm table exists").WithResource(table)
	}
	if !exists {
		return apperr.New(apperr.NotFound, "table not found").WithResource(table)
	}
	return nil
}

// QueryResult is execute_query's result.
type QueryResult struct {
	Columns  []string
	RowCount int
	Data     []map[string]any
}

// ExecuteQuery rejects anything that isn't a SELECT and otherwise runs the
// query as-is.
func ExecuteQuery(ctx context.Context, conn *pgx.Conn, query string) (QueryResult, error) {
	if !isSelectQuery(query) {
		return QueryResult{}, apperr.New(apperr.InvalidQuery, "only SELECT queries are permitted")
	}

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return QueryResult{}, apperr.Wrap(apperr.InvalidQuery, err, "execute query")
	}
	defer rows.Close()

	var columns []string
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, string(fd.Name))
	}

	data, err := rowsToMaps(rows)
	if err != nil {
		return QueryResult{}, apperr.Wrap(apperr.Internal, err, "scan query result")
	}

	return QueryResult{Columns: columns, RowCount: len(data), Data: data}, nil
}

// isSelectQuery reports whether query's first non-whitespace token,
// upper-cased, is SELECT.
func isSelectQuery(query string) bool {
	trimmed := strings.TrimSpace(query)
	firstToken := trimmed
	if idx := strings.IndexAny(trimmed, " \t\n("); idx >= 0 {
		firstToken = trimmed[:idx]
	}
	return strings.EqualFold(firstToken, "select")
}

func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
