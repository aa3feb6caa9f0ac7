// Package dbconfig provides the sink connection settings shared by the config
// and driver packages. It exists to break the import cycle between them.
package dbconfig

// TargetConfig holds the settings needed to connect to the sink database.
// Host, Database, User and Password are not read from the config file; they
// are filled from Credentials at load time.
type TargetConfig struct {
	Type            string `yaml:"type"` // "mssql", "postgres" or "sqlite" (default: mssql)
	Host            string `yaml:"-"`
	Port            int    `yaml:"port"`
	Database        string `yaml:"-"`
	User            string `yaml:"-"`
	Password        string `yaml:"-"`
	Schema          string `yaml:"schema"`
	SSLMode         string `yaml:"ssl_mode"`          // PostgreSQL: disable, require, verify-ca, verify-full
	TrustServerCert bool   `yaml:"trust_server_cert"` // MSSQL: trust server certificate (default: false)
	Encrypt         *bool  `yaml:"encrypt"`           // MSSQL: enable TLS encryption (default: true)
	PacketSize      int    `yaml:"packet_size"`       // MSSQL: TDS packet size in bytes
	AppName         string `yaml:"app_name"`
}

// Credentials are the four opaque connection strings resolved from the
// environment. They are never validated or logged.
type Credentials struct {
	Host     string
	Database string
	User     string
	Password string
}

// WithCredentials returns a copy of c with the credential fields set.
func (c TargetConfig) WithCredentials(cr Credentials) *TargetConfig {
	c.Host = cr.Host
	c.Database = cr.Database
	c.User = cr.User
	c.Password = cr.Password
	return &c
}

// DSNOptions returns the driver-specific options used when building a DSN.
func (c *TargetConfig) DSNOptions() map[string]any {
	opts := make(map[string]any)
	if c.SSLMode != "" {
		opts["sslmode"] = c.SSLMode
	}
	if c.Encrypt != nil {
		opts["encrypt"] = *c.Encrypt
	}
	if c.TrustServerCert {
		opts["trustServerCertificate"] = true
	}
	if c.PacketSize > 0 {
		opts["packetSize"] = c.PacketSize
	}
	if c.AppName != "" {
		opts["app name"] = c.AppName
	}
	return opts
}
