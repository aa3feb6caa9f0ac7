// Package driver provides pluggable sink database abstractions.
// Each database (SQL Server, PostgreSQL, SQLite) implements the Driver
// interface and registers itself on import.
package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/johndauphine/stageload/internal/dbconfig"
)

// Defaults contains default values for a database driver.
// Used by config.applyDefaults() so database-specific values are not
// hardcoded there.
type Defaults struct {
	// Port is the default port (e.g., 1433 for MSSQL). Zero for file databases.
	Port int

	// Schema is the default target schema (e.g., "dbo" for MSSQL).
	Schema string

	// SSLMode is the default SSL mode for PostgreSQL-style connections.
	SSLMode string
}

// Driver represents a sink database.
//
// To add a new database:
// 1. Create a package under internal/driver/<dbname>/
// 2. Implement the Driver interface
// 3. Register via init(): driver.Register(&MyDriver{})
type Driver interface {
	// Name returns the primary driver name (e.g., "mssql").
	Name() string

	// Aliases returns alternative names for this driver.
	Aliases() []string

	// Defaults returns the default configuration values for this driver.
	Defaults() Defaults

	// Dialect returns the SQL dialect for this database.
	Dialect() Dialect

	// Open connects to the sink and verifies the connection. Failures are
	// returned as *ConnectionError.
	Open(ctx context.Context, cfg *dbconfig.TargetConfig) (Writer, error)
}

// Dialect holds the database-specific SQL text helpers.
type Dialect interface {
	DBType() string
	QuoteIdentifier(name string) string
	QualifyTable(schema, table string) string
	BuildDSN(cfg *dbconfig.TargetConfig) string
}

// WriteBatchOptions describes one chunk of rows to append.
type WriteBatchOptions struct {
	Schema  string
	Table   string
	Columns []string
	Rows    [][]any
}

// Writer is one open session against the sink. A Writer owns exactly one
// connection and is not safe for concurrent use.
type Writer interface {
	// DBType returns the database type name.
	DBType() string

	// TableColumns returns the destination's column names in ordinal order.
	// exists is false when the table does not exist.
	TableColumns(ctx context.Context, schema, table string) (columns []string, exists bool, err error)

	// Begin starts a transaction that spans subsequent WriteBatch calls until
	// Commit or Rollback. Without it every WriteBatch commits on its own.
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// WriteBatch appends rows to an existing table.
	WriteBatch(ctx context.Context, opts WriteBatchOptions) error

	// RowCount returns the exact number of rows in a table.
	RowCount(ctx context.Context, schema, table string) (int64, error)

	// Close releases the connection.
	Close() error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Driver)
	primary    = make(map[string]Driver)
)

// Register makes a driver available by its name and aliases.
// It panics if a name is registered twice.
func Register(d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := append([]string{d.Name()}, d.Aliases()...)
	for _, n := range names {
		key := strings.ToLower(n)
		if _, dup := registry[key]; dup {
			panic(fmt.Sprintf("driver: Register called twice for %q", n))
		}
		registry[key] = d
	}
	primary[d.Name()] = d
}

// Get returns the driver registered under name or one of its aliases.
func Get(name string) (Driver, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown database type %q (available: %s)", name, strings.Join(namesLocked(), ", "))
	}
	return d, nil
}

// Available returns the primary names of all registered drivers, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(primary))
	for n := range primary {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
