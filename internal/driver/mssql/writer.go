package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
	"github.com/johndauphine/stageload/internal/logging"
)

// Writer implements driver.Writer for SQL Server on a single connection.
type Writer struct {
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	config  *dbconfig.TargetConfig
	dialect *Dialect

	// column data types per qualified table, lower-cased column name keys
	colTypes map[string]map[string]string
}

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// NewWriter opens one connection to SQL Server and pings it.
func NewWriter(ctx context.Context, cfg *dbconfig.TargetConfig) (*Writer, error) {
	dialect := &Dialect{}
	dsn := dialect.BuildDSN(cfg)

	connErr := func(err error) error {
		return &driver.ConnectionError{DBType: "mssql", Host: cfg.Host, Err: err}
	}

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, connErr(fmt.Errorf("opening connection: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connErr(fmt.Errorf("pinging database: %w", err))
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, connErr(fmt.Errorf("getting connection: %w", err))
	}

	logging.Debug("Connected to MSSQL target: %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)

	return &Writer{
		db:       db,
		conn:     conn,
		config:   cfg,
		dialect:  dialect,
		colTypes: make(map[string]map[string]string),
	}, nil
}

func (w *Writer) q() querier {
	if w.tx != nil {
		return w.tx
	}
	return w.conn
}

// DBType returns the database type.
func (w *Writer) DBType() string {
	return "mssql"
}

// TableColumns lists the destination columns from INFORMATION_SCHEMA.
func (w *Writer) TableColumns(ctx context.Context, schema, table string) ([]string, bool, error) {
	rows, err := w.q().QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table
		ORDER BY ORDINAL_POSITION
	`, sql.Named("schema", schema), sql.Named("table", table))
	if err != nil {
		return nil, false, fmt.Errorf("querying columns of %s: %w", w.dialect.QualifyTable(schema, table), err)
	}
	defer rows.Close()

	var cols []string
	types := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, false, err
		}
		cols = append(cols, name)
		types[strings.ToLower(name)] = strings.ToLower(dataType)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	w.colTypes[w.dialect.QualifyTable(schema, table)] = types
	return cols, len(cols) > 0, nil
}

// Begin starts a transaction that spans subsequent batches.
func (w *Writer) Begin(ctx context.Context) error {
	if w.tx != nil {
		return fmt.Errorf("transaction already open")
	}
	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	w.tx = tx
	return nil
}

// Commit commits the open transaction.
func (w *Writer) Commit() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	return err
}

// Rollback aborts the open transaction, if any.
func (w *Writer) Rollback() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback()
	w.tx = nil
	return err
}

// WriteBatch appends rows with the TDS bulk copy protocol. Without an open
// transaction the batch runs in, and commits, its own.
func (w *Writer) WriteBatch(ctx context.Context, opts driver.WriteBatchOptions) error {
	if len(opts.Rows) == 0 {
		return nil
	}

	tx := w.tx
	if tx == nil {
		var err error
		tx, err = w.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()
	}

	fullTableName := w.dialect.QualifyTable(opts.Schema, opts.Table)
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(fullTableName, mssql.BulkOptions{
		RowsPerBatch: len(opts.Rows),
	}, opts.Columns...))
	if err != nil {
		return fmt.Errorf("preparing bulk copy: %w", err)
	}
	defer stmt.Close()

	types := w.colTypes[fullTableName]
	for _, row := range opts.Rows {
		if _, err := stmt.ExecContext(ctx, w.convertRow(row, opts.Columns, types)...); err != nil {
			return fmt.Errorf("adding row: %w", err)
		}
	}

	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("finalizing bulk insert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != int64(len(opts.Rows)) {
		return fmt.Errorf("bulk insert: expected %d rows, got %d", len(opts.Rows), n)
	}

	if w.tx == nil {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing bulk copy: %w", err)
		}
	}
	return nil
}

// convertRow prepares a row for bulk copy. Bulk copy does not convert
// between Go and column types, so numbers and booleans bound for character
// columns are rendered as text and integers bound for float columns widen.
func (w *Writer) convertRow(row []any, cols []string, types map[string]string) []any {
	out := driver.ConvertRow(row)
	if types == nil {
		return out
	}
	for i, v := range out {
		if v == nil {
			continue
		}
		switch types[strings.ToLower(cols[i])] {
		case "char", "varchar", "nchar", "nvarchar", "text", "ntext":
			out[i] = driver.TextValue(v)
		case "float", "real":
			if n, ok := v.(int64); ok {
				out[i] = float64(n)
			}
		}
	}
	return out
}

// RowCount returns the exact row count of a table.
func (w *Writer) RowCount(ctx context.Context, schema, table string) (int64, error) {
	var count int64
	err := w.q().QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT_BIG(*) FROM %s", w.dialect.QualifyTable(schema, table))).Scan(&count)
	return count, err
}

// Close rolls back any open transaction and releases the connection.
func (w *Writer) Close() error {
	_ = w.Rollback()
	w.conn.Close()
	return w.db.Close()
}
