// Package postgres provides the PostgreSQL sink driver.
// It registers itself with the driver registry on import.
package postgres

import (
	"context"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
)

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver for PostgreSQL databases.
type Driver struct{}

// Name returns the primary driver name.
func (d *Driver) Name() string {
	return "postgres"
}

// Aliases returns alternative names for this driver.
func (d *Driver) Aliases() []string {
	return []string{"postgresql", "pg"}
}

// Defaults returns the PostgreSQL defaults.
func (d *Driver) Defaults() driver.Defaults {
	return driver.Defaults{
		Port:    5432,
		Schema:  "public",
		SSLMode: "require",
	}
}

// Dialect returns the PostgreSQL dialect.
func (d *Driver) Dialect() driver.Dialect {
	return &Dialect{}
}

// Open creates a new PostgreSQL writer.
func (d *Driver) Open(ctx context.Context, cfg *dbconfig.TargetConfig) (driver.Writer, error) {
	return NewWriter(ctx, cfg)
}
