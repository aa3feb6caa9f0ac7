package mssql

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/johndauphine/stageload/internal/dbconfig"
)

// Dialect implements driver.Dialect for SQL Server.
type Dialect struct{}

// DBType returns the database type.
func (d *Dialect) DBType() string {
	return "mssql"
}

// QuoteIdentifier safely quotes a SQL Server identifier, escaping embedded ].
func (d *Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QualifyTable returns [schema].[table].
func (d *Dialect) QualifyTable(schema, table string) string {
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

// BuildDSN builds a sqlserver:// URL. User, password and every query value
// are URL-encoded so special characters survive.
func (d *Dialect) BuildDSN(cfg *dbconfig.TargetConfig) string {
	q := url.Values{}
	q.Set("database", cfg.Database)
	for k, v := range cfg.DSNOptions() {
		if k == "sslmode" {
			continue
		}
		q.Set(k, fmt.Sprint(v))
	}

	host := cfg.Host
	if cfg.Port > 0 {
		host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s?%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), host, q.Encode())
}
