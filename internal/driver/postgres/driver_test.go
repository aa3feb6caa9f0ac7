package postgres

import (
	"reflect"
	"strings"
	"testing"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
)

func TestDriverRegistration(t *testing.T) {
	// The driver should be registered via init()
	d, err := driver.Get("postgres")
	if err != nil {
		t.Fatalf("Failed to get postgres driver: %v", err)
	}

	if d.Name() != "postgres" {
		t.Errorf("Expected driver name 'postgres', got %q", d.Name())
	}

	// Test aliases
	for _, alias := range []string{"postgresql", "pg"} {
		d, err := driver.Get(alias)
		if err != nil {
			t.Errorf("Failed to get driver by alias %q: %v", alias, err)
			continue
		}
		if d.Name() != "postgres" {
			t.Errorf("Expected driver name 'postgres' for alias %q, got %q", alias, d.Name())
		}
	}

	if got := d.Defaults(); got.Port != 5432 || got.Schema != "public" || got.SSLMode != "require" {
		t.Errorf("unexpected defaults %+v", got)
	}
}

func TestDialect(t *testing.T) {
	dialect := &Dialect{}

	tests := []struct {
		name     string
		method   func() string
		expected string
	}{
		{"DBType", dialect.DBType, "postgres"},
		{"QuoteIdentifier", func() string { return dialect.QuoteIdentifier("test") }, `"test"`},
		{"QuoteIdentifierEscapes", func() string { return dialect.QuoteIdentifier(`a"b`) }, `"a""b"`},
		{"QualifyTable", func() string { return dialect.QualifyTable("public", "json_df") }, `"public"."json_df"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.method()
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	cfg := &dbconfig.TargetConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "testdb",
		User:     "user",
		Password: "p@ss:word",
		SSLMode:  "disable",
		AppName:  "stageload",
	}
	dsn := (&Dialect{}).BuildDSN(cfg)

	if !strings.HasPrefix(dsn, "postgres://user:p%40ss:word@localhost:5432/testdb?") {
		t.Errorf("PostgreSQL DSN unexpected format: %s", dsn)
	}
	for _, want := range []string{"sslmode=disable", "application_name=stageload"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}

	trust := true
	cfg.Encrypt = &trust
	cfg.PacketSize = 4096
	if dsn := (&Dialect{}).BuildDSN(cfg); strings.Contains(dsn, "encrypt") || strings.Contains(dsn, "packetSize") {
		t.Errorf("SQL Server options leaked into PostgreSQL DSN: %s", dsn)
	}
}

func TestConvertRow(t *testing.T) {
	types := map[string]string{
		"name":  "text",
		"score": "double precision",
		"id":    "bigint",
		"meta":  "jsonb",
	}
	cols := []string{"name", "score", "id", "meta", "unknown"}

	got := convertRow([]any{false, int64(4), int64(9), map[string]any{"k": "v"}, 1.5}, cols, types)
	want := []any{"False", float64(4), int64(9), `{"k":"v"}`, 1.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("convertRow() = %#v, want %#v", got, want)
	}
}

func TestAvailableDrivers(t *testing.T) {
	available := driver.Available()
	found := false
	for _, name := range available {
		if name == "postgres" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("PostgreSQL driver not in available list: %v", available)
	}
}
