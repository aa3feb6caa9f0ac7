// Package sqlite provides a file-backed sink driver on the pure-Go
// modernc.org/sqlite engine. The target database setting is the file path.
package sqlite

import (
	"context"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for SQLite files.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"sqlite3"}
}

// Defaults returns the SQLite defaults. There is no port.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{Schema: "main"}
}

// Dialect returns the SQLite dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open creates a new SQLite writer.
func (d *Driver) Open(ctx context.Context, cfg *dbconfig.TargetConfig) (driver.Writer, error) {
	return NewWriter(ctx, cfg)
}
