package dbprovision

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/filopedraz/kosuke-core-sub005/internal/apperr"
)

// DatabaseInfo is the summary get_database_info returns.
type DatabaseInfo struct {
	Connected   bool
	Path        string
	TablesCount int
	SizePretty  string
}

// GetDatabaseInfo summarizes the connected session database.
func GetDatabaseInfo(ctx context.Context, conn *pgx.Conn, dbName string) (DatabaseInfo, error) {
	info := DatabaseInfo{Connected: true, Path: dbName}

	row := conn.QueryRow(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public'`)
	if err := row.Scan(&info.TablesCount); err != nil {
		return DatabaseInfo{}, apperr.Wrap(apperr.Internal, err, "count tables")
	}

	row = conn.QueryRow(ctx, `SELECT pg_size_pretty(pg_database_size(current_database()))`)
	if err := row.Scan(&info.SizePretty); err != nil {
		return DatabaseInfo{}, apperr.Wrap(apperr.Internal, err, "read database size")
	}
	return info, nil
}

// Column describes one column of a table in GetSchema's output.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  *string
}

// TableSchema describes one public table.
type TableSchema struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys map[string]string // column -> "<table>.<column>"
	RowCount    int64
}

// GetSchema enumerates every table in the public schema: its columns,
// primary-key membership, foreign-key targets, and row count.
func GetSchema(ctx context.Context, conn *pgx.Conn) ([]TableSchema, error) {
	names, err := publicTableNames(ctx, conn)
	if err != nil {
		return nil, err
	}

	tables := make([]TableSchema, 0, len(names))
	for _, name := range names {
		cols, err := tableColumns(ctx, conn, name)
		if err != nil {
			return nil, err
		}
		pk, err := primaryKeyColumns(ctx, conn, name)
		if err != nil {
			return nil, err
		}
		fks, err := foreignKeys(ctx, conn, name)
		if err != nil {
			return nil, err
		}
		var rowCount int64
		// name came from information_schema.tables, not user input.
		if err := conn.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %q`, name)).Scan(&rowCount); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "count rows").WithResource(name)
		}
		tables = append(tables, TableSchema{
			Name:        name,
			Columns:     cols,
			PrimaryKey:  pk,
			ForeignKeys: fks,
			RowCount:    rowCount,
		})
	}
	return tables, nil
}

func publicTableNames(ctx context.Context, conn *pgx.Conn) ([]string, error) {
	rows, err := conn.Query(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list public tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scan table name")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func tableColumns(ctx context.Context, conn *pgx.Conn, table string) ([]Column, error) {
	rows, err := conn.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list columns").WithResource(table)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.Default); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scan column").WithResource(table)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func primaryKeyColumns(ctx context.Context, conn *pgx.Conn, table string) ([]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public' AND tc.table_name = $1
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list primary key columns").WithResource(table)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scan primary key column").WithResource(table)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func foreignKeys(ctx context.Context, conn *pgx.Conn, table string) (map[string]string, error) {
	rows, err := conn.Query(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public' AND tc.table_name = $1`, table)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list foreign keys").WithResource(table)
	}
	defer rows.Close()

	fks := make(map[string]string)
	for rows.Next() {
		var column, targetTable, targetColumn string
		if err := rows.Scan(&column, &targetTable, &targetColumn); err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "scan foreign key").WithResource(table)
		}
		fks[column] = targetTable + "." + targetColumn
	}
	return fks, rows.Err()
}
