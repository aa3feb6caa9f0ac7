// Package config loads stageload.yaml, applies defaults and validates it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/johndauphine/stageload/internal/dbconfig"
	"github.com/johndauphine/stageload/internal/driver"
	"github.com/johndauphine/stageload/internal/loader"
	"github.com/johndauphine/stageload/internal/logging"
	"github.com/johndauphine/stageload/internal/notify"
	"github.com/johndauphine/stageload/internal/reader"
	"github.com/johndauphine/stageload/internal/table"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "stageload.yaml"

// Environment variable names the credentials are read from by default.
const (
	DefaultServerEnv   = "STAGELOAD_SERVER"
	DefaultDatabaseEnv = "STAGELOAD_DATABASE"
	DefaultUserEnv     = "STAGELOAD_USER"
	DefaultPasswordEnv = "STAGELOAD_PASSWORD"
)

// Config is the complete stageload configuration.
type Config struct {
	DataDir     string                `yaml:"data_dir"`
	Reader      ReaderConfig          `yaml:"reader"`
	Target      dbconfig.TargetConfig `yaml:"target"`
	Credentials CredentialsConfig     `yaml:"credentials"`
	Load        LoadConfig            `yaml:"load"`
	History     HistoryConfig         `yaml:"history"`
	Logging     LoggingConfig         `yaml:"logging"`
	Notify      NotifyConfig          `yaml:"notify"`
}

// ReaderConfig controls file parsing.
type ReaderConfig struct {
	Encoding   string `yaml:"encoding"`    // IANA name (default: latin-1)
	QuoteChar  string `yaml:"quote_char"`  // single character (default: ")
	Delimiter  string `yaml:"delimiter"`   // single character (default: ,)
	InferTypes *bool  `yaml:"infer_types"` // default: true
	Debug      bool   `yaml:"debug"`
}

// CredentialsConfig names the environment variables holding the sink
// credentials. Values themselves never appear in the config file.
type CredentialsConfig struct {
	ServerEnv   string `yaml:"server_env"`
	DatabaseEnv string `yaml:"database_env"`
	UserEnv     string `yaml:"user_env"`
	PasswordEnv string `yaml:"password_env"`
}

// LoadConfig controls the upload step.
type LoadConfig struct {
	Enabled   *bool    `yaml:"enabled"`    // default: true
	Tables    []string `yaml:"tables"`     // default: [csv_df, json_df]
	BatchSize int      `yaml:"batch_size"` // default: 1000
	Atomic    bool     `yaml:"atomic"`     // one transaction per table
	Progress  *bool    `yaml:"progress"`   // default: true (only shown on a terminal)
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: .stageload/history.db
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format"` // text or json (default: text)
}

// NotifyConfig holds notification sinks.
type NotifyConfig struct {
	Slack notify.SlackConfig `yaml:"slack"`
}

// Load reads the config file at path. A missing file yields the defaults.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err != nil {
		logging.Debug("Config file %s not found, using defaults", path)
	}
	return Parse(data)
}

// Parse parses YAML config content, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	// Defaults always validate.
	_ = cfg.Finalize()
	return cfg
}

// Finalize applies defaults then validates. Call it again after changing
// fields, e.g. from command line flags.
func (c *Config) Finalize() error {
	c.applyDefaults()
	return c.validate()
}

func boolPtr(b bool) *bool { return &b }

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}

	if c.Reader.Encoding == "" {
		c.Reader.Encoding = "latin-1"
	}
	if c.Reader.QuoteChar == "" {
		c.Reader.QuoteChar = `"`
	}
	if c.Reader.Delimiter == "" {
		c.Reader.Delimiter = ","
	}
	if c.Reader.InferTypes == nil {
		c.Reader.InferTypes = boolPtr(true)
	}

	if c.Target.Type == "" {
		c.Target.Type = "mssql"
	}
	if d, err := driver.Get(c.Target.Type); err == nil {
		defaults := d.Defaults()
		c.Target.Type = d.Name()
		if c.Target.Port == 0 {
			c.Target.Port = defaults.Port
		}
		if c.Target.Schema == "" {
			c.Target.Schema = defaults.Schema
		}
		if c.Target.SSLMode == "" {
			c.Target.SSLMode = defaults.SSLMode
		}
	}
	if c.Target.AppName == "" {
		c.Target.AppName = "stageload"
	}

	if c.Credentials.ServerEnv == "" {
		c.Credentials.ServerEnv = DefaultServerEnv
	}
	if c.Credentials.DatabaseEnv == "" {
		c.Credentials.DatabaseEnv = DefaultDatabaseEnv
	}
	if c.Credentials.UserEnv == "" {
		c.Credentials.UserEnv = DefaultUserEnv
	}
	if c.Credentials.PasswordEnv == "" {
		c.Credentials.PasswordEnv = DefaultPasswordEnv
	}

	if c.Load.Enabled == nil {
		c.Load.Enabled = boolPtr(true)
	}
	if len(c.Load.Tables) == 0 {
		c.Load.Tables = []string{table.CSVName, table.JSONName}
	}
	if c.Load.BatchSize == 0 {
		c.Load.BatchSize = loader.DefaultBatchSize
	}
	if c.Load.Progress == nil {
		c.Load.Progress = boolPtr(true)
	}

	if c.History.Enabled == nil {
		c.History.Enabled = boolPtr(true)
	}
	if c.History.Path == "" {
		c.History.Path = ".stageload/history.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// validate returns the first configuration problem found.
func (c *Config) validate() error {
	if _, err := driver.Get(c.Target.Type); err != nil {
		return fmt.Errorf("target.type: %w", err)
	}
	if c.Target.Port < 0 || c.Target.Port > 65535 {
		return fmt.Errorf("target.port %d out of range", c.Target.Port)
	}
	if c.Target.PacketSize < 0 {
		return fmt.Errorf("target.packet_size must not be negative")
	}

	if err := reader.ValidateEncoding(c.Reader.Encoding); err != nil {
		return fmt.Errorf("reader.encoding: %w", err)
	}
	if utf8.RuneCountInString(c.Reader.QuoteChar) != 1 {
		return fmt.Errorf("reader.quote_char must be a single character, got %q", c.Reader.QuoteChar)
	}
	if utf8.RuneCountInString(c.Reader.Delimiter) != 1 {
		return fmt.Errorf("reader.delimiter must be a single character, got %q", c.Reader.Delimiter)
	}
	if c.Reader.QuoteChar == c.Reader.Delimiter {
		return fmt.Errorf("reader.quote_char and reader.delimiter must differ")
	}

	if c.Load.BatchSize < 0 {
		return fmt.Errorf("load.batch_size must be positive, got %d", c.Load.BatchSize)
	}
	for _, t := range c.Load.Tables {
		if t != table.CSVName && t != table.JSONName {
			return fmt.Errorf("load.tables: unknown table %q (valid: %s, %s)", t, table.CSVName, table.JSONName)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Notify.Slack.Enabled && c.Notify.Slack.WebhookURL == "" {
		return fmt.Errorf("notify.slack.webhook_url is required when slack is enabled")
	}
	return nil
}

// ReaderOptions converts the reader section to reader.Options.
func (c *Config) ReaderOptions() reader.Options {
	opts := reader.DefaultOptions()
	opts.Encoding = c.Reader.Encoding
	if r, _ := utf8.DecodeRuneInString(c.Reader.QuoteChar); r != utf8.RuneError {
		opts.QuoteChar = r
	}
	if r, _ := utf8.DecodeRuneInString(c.Reader.Delimiter); r != utf8.RuneError {
		opts.Delimiter = r
	}
	if c.Reader.InferTypes != nil {
		opts.InferTypes = *c.Reader.InferTypes
	}
	opts.Debug = c.Reader.Debug
	return opts
}

// LoaderOptions converts the load section to loader.Options.
func (c *Config) LoaderOptions() loader.Options {
	return loader.Options{
		Schema:    c.Target.Schema,
		BatchSize: c.Load.BatchSize,
		Atomic:    c.Load.Atomic,
	}
}

// LoadEnabled reports whether collected tables are uploaded.
func (c *Config) LoadEnabled() bool {
	return c.Load.Enabled == nil || *c.Load.Enabled
}

// ProgressEnabled reports whether a progress bar may be shown.
func (c *Config) ProgressEnabled() bool {
	return c.Load.Progress == nil || *c.Load.Progress
}

// HistoryEnabled reports whether runs are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// LoadsTable reports whether the named aggregate is uploaded.
func (c *Config) LoadsTable(name string) bool {
	for _, t := range c.Load.Tables {
		if t == name {
			return true
		}
	}
	return false
}

// ResolveCredentials reads the sink credentials from the environment. Unset
// variables yield empty strings.
func (c *Config) ResolveCredentials() dbconfig.Credentials {
	return dbconfig.Credentials{
		Host:     os.Getenv(c.Credentials.ServerEnv),
		Database: os.Getenv(c.Credentials.DatabaseEnv),
		User:     os.Getenv(c.Credentials.UserEnv),
		Password: os.Getenv(c.Credentials.PasswordEnv),
	}
}

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Ignoring .env: %v", err)
	}
}
