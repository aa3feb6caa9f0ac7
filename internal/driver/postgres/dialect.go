package postgres

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/johndauphine/stageload/internal/dbconfig"
)

// Dialect implements driver.Dialect for PostgreSQL.
type Dialect struct{}

// DBType returns the database type.
func (d *Dialect) DBType() string {
	return "postgres"
}

// QuoteIdentifier quotes a PostgreSQL identifier, doubling embedded quotes.
func (d *Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifyTable returns "schema"."table".
func (d *Dialect) QualifyTable(schema, table string) string {
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

// BuildDSN builds a postgres:// URL. Only the libpq options PostgreSQL
// understands are carried over.
func (d *Dialect) BuildDSN(cfg *dbconfig.TargetConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host,
		Path:   "/" + cfg.Database,
	}
	if cfg.Port > 0 {
		u.Host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	q := url.Values{}
	opts := cfg.DSNOptions()
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch k {
		case "sslmode":
			q.Set(k, fmt.Sprint(opts[k]))
		case "app name":
			q.Set("application_name", fmt.Sprint(opts[k]))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
