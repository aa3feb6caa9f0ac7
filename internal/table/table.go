// Package table holds the in-memory tabular model shared by the reader,
// collector and loader: record sets, aggregates and named table handles.
package table

import "fmt"

// Row maps column name to value. A nil value (or an absent key) is the
// missing-value marker.
type Row map[string]any

// Table is an ordered sequence of rows with first-seen column order.
// The zero value is an empty table.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New returns an empty table with the given columns declared.
func New(columns ...string) *Table {
	t := &Table{}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether name is a column of t.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Empty reports whether the table has no rows and no columns.
func (t *Table) Empty() bool {
	return len(t.rows) == 0 && len(t.columns) == 0
}

// AppendValues adds a row whose values follow the given column order.
// Columns are declared in that order when unknown.
func (t *Table) AppendValues(columns []string, values []any) error {
	if len(columns) != len(values) {
		return fmt.Errorf("row has %d values for %d columns", len(values), len(columns))
	}
	r := make(Row, len(columns))
	for i, c := range columns {
		t.addColumn(c)
		r[c] = values[i]
	}
	t.rows = append(t.rows, r)
	return nil
}

// Value returns the value at row i, column col. Missing cells return nil.
func (t *Table) Value(i int, col string) any {
	return t.rows[i][col]
}

// IsMissing reports whether the cell at row i, column col holds the
// missing-value marker.
func (t *Table) IsMissing(i int, col string) bool {
	v, ok := t.rows[i][col]
	return !ok || v == nil
}

// SetConstant sets col to v on every row, declaring the column if needed.
// An empty table gains the column only if it has rows.
func (t *Table) SetConstant(col string, v any) {
	if len(t.rows) == 0 && len(t.columns) == 0 {
		return
	}
	t.addColumn(col)
	for _, r := range t.rows {
		r[col] = v
	}
}

// Concat stacks other's rows under t's. The column set becomes the union in
// first-seen order; cells absent from either side stay missing.
func (t *Table) Concat(other *Table) {
	if other == nil {
		return
	}
	for _, c := range other.columns {
		t.addColumn(c)
	}
	t.rows = append(t.rows, other.rows...)
}

// Values returns row i as a slice aligned with columns. Absent cells are nil.
func (t *Table) Values(i int, columns []string) []any {
	r := t.rows[i]
	out := make([]any, len(columns))
	for j, c := range columns {
		out[j] = r[c]
	}
	return out
}

// Named pairs an aggregate with the logical name used as its destination
// table.
type Named struct {
	Name  string
	Table *Table
}

// Logical names of the two aggregates.
const (
	CSVName  = "csv_df"
	JSONName = "json_df"
)

// FileNameColumn is the provenance column stamped on every aggregated row.
const FileNameColumn = "file_name"
