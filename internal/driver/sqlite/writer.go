package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
	"github.com/johndauphine/stageload/internal/logging"
)

// Writer implements driver.Writer for a SQLite file on one connection.
type Writer struct {
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	config  *dbconfig.TargetConfig
	dialect *Dialect
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewWriter opens the database file and pings it.
func NewWriter(ctx context.Context, cfg *dbconfig.TargetConfig) (*Writer, error) {
	if cfg.Database == "" {
		return nil, &driver.ConnectionError{DBType: "sqlite", Err: fmt.Errorf("database file path is empty")}
	}
	dialect := &Dialect{}

	db, err := sql.Open("sqlite", dialect.BuildDSN(cfg))
	if err != nil {
		return nil, &driver.ConnectionError{DBType: "sqlite", Host: cfg.Database, Err: err}
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &driver.ConnectionError{DBType: "sqlite", Host: cfg.Database, Err: fmt.Errorf("pinging database: %w", err)}
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, &driver.ConnectionError{DBType: "sqlite", Host: cfg.Database, Err: err}
	}

	logging.Debug("Opened SQLite target: %s", cfg.Database)

	return &Writer{db: db, conn: conn, config: cfg, dialect: dialect}, nil
}

func (w *Writer) q() querier {
	if w.tx != nil {
		return w.tx
	}
	return w.conn
}

// DBType returns the database type.
func (w *Writer) DBType() string {
	return "sqlite"
}

// TableColumns lists the destination columns with PRAGMA table_info.
func (w *Writer) TableColumns(ctx context.Context, schema, table string) ([]string, bool, error) {
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", w.dialect.QuoteIdentifier(schema), w.dialect.QuoteIdentifier(table))
	rows, err := w.q().QueryContext(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("querying columns of %s: %w", w.dialect.QualifyTable(schema, table), err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, false, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
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

// WriteBatch inserts rows with one prepared statement inside a transaction.
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

	quoted := make([]string, len(opts.Columns))
	for i, c := range opts.Columns {
		quoted[i] = w.dialect.QuoteIdentifier(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(opts.Columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.dialect.QualifyTable(opts.Schema, opts.Table), strings.Join(quoted, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range opts.Rows {
		if _, err := stmt.ExecContext(ctx, driver.ConvertRow(row)...); err != nil {
			return fmt.Errorf("inserting row: %w", err)
		}
	}

	if w.tx == nil {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}
	}
	return nil
}

// RowCount returns the exact row count of a table.
func (w *Writer) RowCount(ctx context.Context, schema, table string) (int64, error) {
	var count int64
	err := w.q().QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", w.dialect.QualifyTable(schema, table))).Scan(&count)
	return count, err
}

// Exec runs a statement on the writer's connection. Used by tests and
// tooling to prepare destination tables.
func (w *Writer) Exec(ctx context.Context, query string, args ...any) error {
	_, err := w.q().ExecContext(ctx, query, args...)
	return err
}

// Close rolls back any open transaction and closes the file.
func (w *Writer) Close() error {
	_ = w.Rollback()
	w.conn.Close()
	return w.db.Close()
}
