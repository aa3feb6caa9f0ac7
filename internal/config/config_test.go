package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/johndauphine/stageload/internal/driver/mssql"
	_ "github.com/johndauphine/stageload/internal/driver/postgres"
	_ "github.com/johndauphine/stageload/internal/driver/sqlite"
	"github.com/johndauphine/stageload/internal/logging"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "mssql", cfg.Target.Type)
	assert.Equal(t, 1433, cfg.Target.Port)
	assert.Equal(t, "dbo", cfg.Target.Schema)
	assert.Equal(t, "latin-1", cfg.Reader.Encoding)
	assert.Equal(t, []string{"csv_df", "json_df"}, cfg.Load.Tables)
	assert.Equal(t, 1000, cfg.Load.BatchSize)
	assert.True(t, cfg.LoadEnabled())
	assert.True(t, cfg.HistoryEnabled())
	assert.True(t, cfg.ProgressEnabled())
	assert.False(t, cfg.Load.Atomic)
	assert.Equal(t, ".stageload/history.db", cfg.History.Path)

	opts := cfg.ReaderOptions()
	assert.Equal(t, '"', opts.QuoteChar)
	assert.Equal(t, ',', opts.Delimiter)
	assert.True(t, opts.InferTypes)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("STAGE_SCHEMA", "landing")
	path := filepath.Join(t.TempDir(), "stageload.yaml")
	content := `
data_dir: ./incoming
reader:
  encoding: utf-8
  quote_char: "'"
  delimiter: ";"
  infer_types: false
target:
  type: pg
  schema: ${STAGE_SCHEMA}
  ssl_mode: disable
load:
  tables: [csv_df]
  batch_size: 250
  atomic: true
history:
  enabled: false
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./incoming", cfg.DataDir)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, 5432, cfg.Target.Port)
	assert.Equal(t, "landing", cfg.Target.Schema)
	assert.Equal(t, "disable", cfg.Target.SSLMode)
	assert.True(t, cfg.LoadsTable("csv_df"))
	assert.False(t, cfg.LoadsTable("json_df"))
	assert.False(t, cfg.HistoryEnabled())

	opts := cfg.ReaderOptions()
	assert.Equal(t, '\'', opts.QuoteChar)
	assert.Equal(t, ';', opts.Delimiter)
	assert.False(t, opts.InferTypes)
	assert.Equal(t, "utf-8", opts.Encoding)

	lo := cfg.LoaderOptions()
	assert.Equal(t, "landing", lo.Schema)
	assert.Equal(t, 250, lo.BatchSize)
	assert.True(t, lo.Atomic)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		errorMsg string
	}{
		{"unknown target", "target:\n  type: oracle\n", `unknown database type "oracle"`},
		{"bad encoding", "reader:\n  encoding: klingon\n", "reader.encoding"},
		{"long quote", "reader:\n  quote_char: \"''\"\n", "reader.quote_char must be a single character"},
		{"quote equals delimiter", "reader:\n  quote_char: \",\"\n", "must differ"},
		{"unknown table", "load:\n  tables: [orders]\n", `unknown table "orders"`},
		{"negative batch", "load:\n  batch_size: -5\n", "load.batch_size"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"bad port", "target:\n  port: 70000\n", "out of range"},
		{"credentials in file", "target:\n  host: db1\n", "field host not found"},
		{"unknown key", "colour: blue\n", "field colour not found"},
		{"slack without webhook", "notify:\n  slack:\n    enabled: true\n", "notify.slack.webhook_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestSlackWebhookFromEnvironment(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/T000/B000")
	cfg, err := Parse([]byte("notify:\n  slack:\n    enabled: true\n    webhook_url: ${SLACK_WEBHOOK_URL}\n    channel: \"#staging\"\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Notify.Slack.Enabled)
	assert.Equal(t, "https://hooks.example.com/T000/B000", cfg.Notify.Slack.WebhookURL)
	assert.Equal(t, "#staging", cfg.Notify.Slack.Channel)
}

func TestParseCommentOnly(t *testing.T) {
	cfg, err := Parse([]byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, "mssql", cfg.Target.Type)
}

func TestSQLiteDefaults(t *testing.T) {
	cfg, err := Parse([]byte("target:\n  type: sqlite3\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, "main", cfg.Target.Schema)
	assert.Zero(t, cfg.Target.Port)
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv("STAGELOAD_SERVER", "db.example.com")
	t.Setenv("STAGELOAD_DATABASE", "stage")
	t.Setenv("STAGELOAD_USER", "loader")
	t.Setenv("CUSTOM_PW", "s3cret")
	t.Setenv("STAGELOAD_PASSWORD", "")

	cfg, err := Parse([]byte("credentials:\n  password_env: CUSTOM_PW\n"))
	require.NoError(t, err)

	creds := cfg.ResolveCredentials()
	assert.Equal(t, "db.example.com", creds.Host)
	assert.Equal(t, "stage", creds.Database)
	assert.Equal(t, "loader", creds.User)
	assert.Equal(t, "s3cret", creds.Password)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STAGELOAD_USER=fromfile\nSTAGELOAD_DATABASE=filedb\n"), 0o600))
	chdir(t, dir)
	t.Setenv("STAGELOAD_USER", "fromenv")
	t.Setenv("STAGELOAD_DATABASE", "")
	os.Unsetenv("STAGELOAD_DATABASE")

	LoadDotEnv()
	t.Cleanup(func() { os.Unsetenv("STAGELOAD_DATABASE") })

	assert.Equal(t, "fromenv", os.Getenv("STAGELOAD_USER"))
	assert.Equal(t, "filedb", os.Getenv("STAGELOAD_DATABASE"))
}

func TestLoadDotEnvWarnsOnMalformedFile(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(nil) })

	dir := t.TempDir()
	chdir(t, dir)
	LoadDotEnv()
	assert.Empty(t, buf.String(), "a missing .env is not worth a warning")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STAGELOAD_USER=\"unterminated\n"), 0o600))
	LoadDotEnv()
	assert.Contains(t, buf.String(), "Ignoring .env")
}
