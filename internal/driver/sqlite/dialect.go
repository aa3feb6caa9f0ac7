package sqlite

import (
	"strings"

	"github.com/johndauphine/stageload/internal/dbconfig"
)

// busyTimeout makes a writer wait up to 5s on a locked file.
const busyTimeout = "_pragma=busy_timeout(5000)"

// Dialect implements driver.Dialect for SQLite.
type Dialect struct{}

// DBType returns the database type.
func (d *Dialect) DBType() string {
	return "sqlite"
}

// QuoteIdentifier quotes an identifier, doubling embedded quotes.
func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifyTable returns "schema"."table". The schema is an attached database
// name, "main" for the file itself.
func (d *Dialect) QualifyTable(schema, table string) string {
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

// BuildDSN returns the database file path with connection pragmas.
func (d *Dialect) BuildDSN(cfg *dbconfig.TargetConfig) string {
	sep := "?"
	if strings.Contains(cfg.Database, "?") {
		sep = "&"
	}
	return cfg.Database + sep + busyTimeout
}
