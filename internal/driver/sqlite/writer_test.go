package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
)

func openTemp(t *testing.T) *Writer {
	t.Helper()
	cfg := &dbconfig.TargetConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "stage.db"), Schema: "main"}
	w, err := NewWriter(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestDriverRegistration(t *testing.T) {
	for _, name := range []string{"sqlite", "sqlite3"} {
		d, err := driver.Get(name)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
		assert.Equal(t, "main", d.Defaults().Schema)
	}
}

func TestDialect(t *testing.T) {
	d := &Dialect{}
	assert.Equal(t, `"main"."csv_df"`, d.QualifyTable("main", "csv_df"))
	assert.Equal(t, `"a""b"`, d.QuoteIdentifier(`a"b`))
	assert.Equal(t, "/tmp/x.db?_pragma=busy_timeout(5000)", d.BuildDSN(&dbconfig.TargetConfig{Database: "/tmp/x.db"}))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=busy_timeout(5000)", d.BuildDSN(&dbconfig.TargetConfig{Database: "file:x.db?mode=rwc"}))
}

func TestWriteBatchRoundTrip(t *testing.T) {
	w := openTemp(t)
	ctx := context.Background()

	require.NoError(t, w.Exec(ctx, `CREATE TABLE csv_df (a INTEGER, b TEXT, meta TEXT, file_name TEXT)`))

	cols, exists, err := w.TableColumns(ctx, "main", "csv_df")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, []string{"a", "b", "meta", "file_name"}, cols)

	err = w.WriteBatch(ctx, driver.WriteBatchOptions{
		Schema:  "main",
		Table:   "csv_df",
		Columns: []string{"a", "b", "meta", "file_name"},
		Rows: [][]any{
			{int64(1), "x", map[string]any{"k": int64(1)}, "one.csv"},
			{nil, nil, nil, "two.csv"},
		},
	})
	require.NoError(t, err)

	n, err := w.RowCount(ctx, "main", "csv_df")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var meta string
	require.NoError(t, w.conn.QueryRowContext(ctx, `SELECT meta FROM csv_df WHERE a = 1`).Scan(&meta))
	assert.Equal(t, `{"k":1}`, meta)
}

func TestTableColumnsMissingTable(t *testing.T) {
	w := openTemp(t)

	cols, exists, err := w.TableColumns(context.Background(), "main", "json_df")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, cols)
}

func TestTransactionRollback(t *testing.T) {
	w := openTemp(t)
	ctx := context.Background()
	require.NoError(t, w.Exec(ctx, `CREATE TABLE t (a INTEGER)`))

	require.NoError(t, w.Begin(ctx))
	assert.Error(t, w.Begin(ctx), "nested Begin")
	require.NoError(t, w.WriteBatch(ctx, driver.WriteBatchOptions{Schema: "main", Table: "t", Columns: []string{"a"}, Rows: [][]any{{int64(1)}}}))
	require.NoError(t, w.Rollback())

	n, err := w.RowCount(ctx, "main", "t")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteBatchUnknownColumnFails(t *testing.T) {
	w := openTemp(t)
	ctx := context.Background()
	require.NoError(t, w.Exec(ctx, `CREATE TABLE t (a INTEGER)`))

	err := w.WriteBatch(ctx, driver.WriteBatchOptions{Schema: "main", Table: "t", Columns: []string{"zzz"}, Rows: [][]any{{int64(1)}}})
	assert.Error(t, err)
}

func TestNewWriterEmptyPath(t *testing.T) {
	_, err := NewWriter(context.Background(), &dbconfig.TargetConfig{})
	var cerr *driver.ConnectionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "sqlite", cerr.DBType)
}
