// Package mssql provides the SQL Server sink driver.
// It registers itself with the driver registry on import.
package mssql

import (
	"context"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for Microsoft SQL Server.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "mssql"
}

// Aliases returns alternative names for the driver.
func (d *Driver) Aliases() []string {
	return []string{"sqlserver", "sql-server"}
}

// Defaults returns the SQL Server defaults.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{
		Port:   1433,
		Schema: "dbo",
	}
}

// Dialect returns the MSSQL dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open creates a new MSSQL writer.
func (d *Driver) Open(ctx context.Context, cfg *dbconfig.TargetConfig) (driver.Writer, error) {
	return NewWriter(ctx, cfg)
}
