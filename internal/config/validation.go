package config

import (
	"fmt"
	"strings"
)

var (
	validFormats    = map[string]bool{"jsonl": true, "json": true, "csv": true}
	validStrategies = map[string]bool{"skip": true, "overwrite": true, "merge": true, "error": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	validLogFormats = map[string]bool{"json": true, "text": true, "": true}
	validTLSModes   = map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns a single error aggregating every problem found.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.Host == "" {
		problems = append(problems, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, fmt.Sprintf("database.port %d is out of range", c.Database.Port))
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Database == "" {
		problems = append(problems, "database.database is required")
	}
	if !validTLSModes[c.Database.TLS] {
		problems = append(problems, fmt.Sprintf("database.tls %q is invalid (disable, preferred, required)", c.Database.TLS))
	}

	if !validFormats[c.Transfer.DefaultFormat] {
		problems = append(problems, fmt.Sprintf("transfer.default_format %q is invalid (jsonl, json, csv)", c.Transfer.DefaultFormat))
	}
	if !validStrategies[c.Transfer.DefaultStrategy] {
		problems = append(problems, fmt.Sprintf("transfer.default_strategy %q is invalid (skip, overwrite, merge, error)", c.Transfer.DefaultStrategy))
	}
	if c.Transfer.MaxInlineExportBytes <= 0 {
		problems = append(problems, "transfer.max_inline_export_bytes must be positive")
	}

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Server.ReadTimeoutSeconds < 0 {
		problems = append(problems, "server.read_timeout_seconds must not be negative")
	}
	if c.Server.WriteTimeoutSeconds < 0 {
		problems = append(problems, "server.write_timeout_seconds must not be negative")
	}

	if !validLogLevels[c.Logging.Level] {
		problems = append(problems, fmt.Sprintf("logging.level %q is invalid (debug, info, warn, error)", c.Logging.Level))
	}
	if !validLogFormats[c.Logging.Format] {
		problems = append(problems, fmt.Sprintf("logging.format %q is invalid (json, text)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
