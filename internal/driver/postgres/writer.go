package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
	"github.com/johndauphine/stageload/internal/logging"
)

// Writer implements driver.Writer for PostgreSQL on a single pgx connection.
type Writer struct {
	conn    *pgx.Conn
	tx      pgx.Tx
	config  *dbconfig.TargetConfig
	dialect *Dialect

	// data types per qualified table, keyed by column name
	colTypes map[string]map[string]string
}

// querier is satisfied by *pgx.Conn and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// NewWriter connects to PostgreSQL and pings the server.
func NewWriter(ctx context.Context, cfg *dbconfig.TargetConfig) (*Writer, error) {
	dialect := &Dialect{}

	connCfg, err := pgx.ParseConfig(dialect.BuildDSN(cfg))
	if err != nil {
		return nil, &driver.ConnectionError{DBType: "postgres", Host: cfg.Host, Err: fmt.Errorf("parsing dsn: %w", err)}
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, &driver.ConnectionError{DBType: "postgres", Host: cfg.Host, Err: err}
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(context.Background())
		return nil, &driver.ConnectionError{DBType: "postgres", Host: cfg.Host, Err: fmt.Errorf("pinging database: %w", err)}
	}

	logging.Debug("Connected to PostgreSQL target: %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)

	return &Writer{
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
	return "postgres"
}

// TableColumns lists the destination columns from information_schema.
func (w *Writer) TableColumns(ctx context.Context, schema, table string) ([]string, bool, error) {
	rows, err := w.q().Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schema, table)
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
		types[name] = dataType
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
	tx, err := w.conn.Begin(ctx)
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
	err := w.tx.Commit(context.Background())
	w.tx = nil
	return err
}

// Rollback aborts the open transaction, if any.
func (w *Writer) Rollback() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback(context.Background())
	w.tx = nil
	return err
}

// WriteBatch writes a batch of rows using the COPY protocol. A single COPY
// is atomic, so outside a transaction each batch commits on its own.
func (w *Writer) WriteBatch(ctx context.Context, opts driver.WriteBatchOptions) error {
	if len(opts.Rows) == 0 {
		return nil
	}

	types := w.colTypes[w.dialect.QualifyTable(opts.Schema, opts.Table)]
	rows := make([][]any, len(opts.Rows))
	for i, row := range opts.Rows {
		rows[i] = convertRow(row, opts.Columns, types)
	}

	n, err := w.q().CopyFrom(
		ctx,
		pgx.Identifier{opts.Schema, opts.Table},
		opts.Columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return err
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy: expected %d rows, got %d", len(rows), n)
	}
	return nil
}

// convertRow maps cells onto the destination column types. COPY encodes
// with the column's binary format, so scalars headed for text columns are
// rendered first and integers headed for floating point columns widen.
func convertRow(row []any, cols []string, types map[string]string) []any {
	out := driver.ConvertRow(row)
	for i, v := range out {
		if v == nil {
			continue
		}
		switch types[cols[i]] {
		case "text", "character varying", "character", "json", "jsonb":
			out[i] = driver.TextValue(v)
		case "double precision", "real":
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
	err := w.q().QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", w.dialect.QualifyTable(schema, table))).Scan(&count)
	return count, err
}

// Exec runs a statement on the writer's connection. Used by tests and
// tooling to prepare destination tables.
func (w *Writer) Exec(ctx context.Context, query string, args ...any) error {
	_, err := w.q().Exec(ctx, query, args...)
	return err
}

// Close rolls back any open transaction and closes the connection.
func (w *Writer) Close() error {
	_ = w.Rollback()
	return w.conn.Close(context.Background())
}
