// Package loader appends aggregate tables to existing tables in a sink
// database over a single connection.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
	"github.com/johndauphine/stageload/internal/logging"
	"github.com/johndauphine/stageload/internal/table"
)

// DefaultBatchSize is the number of rows written per chunk.
const DefaultBatchSize = 1000

// Reporter receives the number of rows written after each chunk.
type Reporter interface {
	Add(n int64)
}

// Options controls how rows are written.
type Options struct {
	// Schema overrides the target schema. Empty uses the target config's
	// schema, then the driver default.
	Schema string

	// BatchSize is the chunk size (default 1000).
	BatchSize int

	// Atomic wraps every chunk of a table in one transaction. Otherwise each
	// chunk commits on its own and a failure leaves earlier chunks in place.
	Atomic bool

	// Progress, when set, is told about every committed chunk.
	Progress Reporter
}

// Loader writes named tables to one sink.
type Loader struct {
	drv    driver.Driver
	target dbconfig.TargetConfig
	opts   Options
}

// New resolves the sink driver for cfg.Type.
func New(cfg *dbconfig.TargetConfig, opts Options) (*Loader, error) {
	drv, err := driver.Get(cfg.Type)
	if err != nil {
		return nil, err
	}
	if opts.Schema == "" {
		opts.Schema = cfg.Schema
	}
	if opts.Schema == "" {
		opts.Schema = drv.Defaults().Schema
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Loader{drv: drv, target: *cfg, opts: opts}, nil
}

// Schema returns the schema destination tables are resolved in.
func (l *Loader) Schema() string {
	return l.opts.Schema
}

// Load appends t to <schema>.<t.Name> and returns the number of rows
// written. An empty table is a no-op that opens no connection.
//
// Failures to connect are *driver.ConnectionError. Everything after the
// connection is established is a *driver.WriteError whose RowsCommitted
// says how many of this table's rows remain in the destination.
func (l *Loader) Load(ctx context.Context, t table.Named, creds dbconfig.Credentials) (int64, error) {
	if t.Table == nil || t.Table.Len() == 0 {
		logging.Debug("Skipping %s: no rows", t.Name)
		return 0, nil
	}

	cfg := l.target.WithCredentials(creds)
	if cfg.Port == 0 {
		cfg.Port = l.drv.Defaults().Port
	}

	w, err := l.drv.Open(ctx, cfg)
	if err != nil {
		var cerr *driver.ConnectionError
		if !errors.As(err, &cerr) {
			err = &driver.ConnectionError{DBType: l.drv.Name(), Host: cfg.Host, Err: err}
		}
		return 0, err
	}
	defer w.Close()

	dest := l.drv.Dialect().QualifyTable(l.opts.Schema, t.Name)
	writeErr := func(committed int64, err error) error {
		return &driver.WriteError{Table: dest, RowsCommitted: committed, Err: err}
	}

	columns, err := l.resolveColumns(ctx, w, t)
	if err != nil {
		return 0, writeErr(0, err)
	}

	if l.opts.Atomic {
		if err := w.Begin(ctx); err != nil {
			return 0, writeErr(0, err)
		}
	}

	incoming := t.Table.Columns()
	var written int64
	n := t.Table.Len()
	for start := 0; start < n; start += l.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return l.abort(w, written, writeErr, err)
		}

		end := start + l.opts.BatchSize
		if end > n {
			end = n
		}
		rows := make([][]any, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, t.Table.Values(i, incoming))
		}

		err := w.WriteBatch(ctx, driver.WriteBatchOptions{
			Schema:  l.opts.Schema,
			Table:   t.Name,
			Columns: columns,
			Rows:    rows,
		})
		if err != nil {
			return l.abort(w, written, writeErr, fmt.Errorf("rows %d-%d: %w", start+1, end, err))
		}

		written += int64(len(rows))
		logging.Debug("Wrote rows %d-%d of %d to %s", start+1, end, n, dest)
		if l.opts.Progress != nil {
			l.opts.Progress.Add(int64(len(rows)))
		}
	}

	if l.opts.Atomic {
		if err := w.Commit(); err != nil {
			return 0, writeErr(0, fmt.Errorf("committing: %w", err))
		}
	}

	logging.Info("Loaded %d rows into %s", written, dest)
	return written, nil
}

func (l *Loader) abort(w driver.Writer, written int64, writeErr func(int64, error) error, err error) (int64, error) {
	if l.opts.Atomic {
		if rbErr := w.Rollback(); rbErr != nil {
			logging.Warn("Rollback failed: %v", rbErr)
		}
		written = 0
	}
	return written, writeErr(written, err)
}

// resolveColumns maps the incoming columns onto the destination's, matching
// names case-insensitively. The returned names use the destination's
// spelling and follow the table's column order.
func (l *Loader) resolveColumns(ctx context.Context, w driver.Writer, t table.Named) ([]string, error) {
	destCols, exists, err := w.TableColumns(ctx, l.opts.Schema, t.Name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("destination table does not exist")
	}

	byLower := make(map[string]string, len(destCols))
	for _, c := range destCols {
		byLower[strings.ToLower(c)] = c
	}

	incoming := t.Table.Columns()
	resolved := make([]string, len(incoming))
	claimed := make(map[string][]string, len(incoming))
	var missing []string
	for i, c := range incoming {
		d, ok := byLower[strings.ToLower(c)]
		if !ok {
			missing = append(missing, c)
			continue
		}
		resolved[i] = d
		claimed[d] = append(claimed[d], c)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("columns not in destination: %s", strings.Join(missing, ", "))
	}

	// Columns differing only in case would share one destination column.
	var collisions []string
	for d, cols := range claimed {
		if len(cols) > 1 {
			collisions = append(collisions, fmt.Sprintf("%s (%s)", d, strings.Join(cols, ", ")))
		}
	}
	if len(collisions) > 0 {
		sort.Strings(collisions)
		return nil, fmt.Errorf("columns map to the same destination column: %s", strings.Join(collisions, "; "))
	}
	return resolved, nil
}
