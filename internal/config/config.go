// Package config provides configuration structures and loading for dataport.
package config

// Config represents the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Transfer TransferConfig `yaml:"transfer" mapstructure:"transfer"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the MySQL connection configuration for the
// GarageReg database.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// TransferConfig represents export/import behavior defaults.
type TransferConfig struct {
	DefaultFormat        string `yaml:"default_format" mapstructure:"default_format"`     // jsonl, json, csv
	DefaultStrategy      string `yaml:"default_strategy" mapstructure:"default_strategy"` // skip, overwrite, merge, error
	MaxInlineExportBytes int64  `yaml:"max_inline_export_bytes" mapstructure:"max_inline_export_bytes"`
}

// ServerConfig represents the embedded HTTP API settings.
type ServerConfig struct {
	Addr                string `yaml:"addr" mapstructure:"addr"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Transfer: TransferConfig{
			DefaultFormat:        "jsonl",
			DefaultStrategy:      "skip",
			MaxInlineExportBytes: 10 * 1024 * 1024,
		},
		Server: ServerConfig{
			Addr:                ":8085",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
