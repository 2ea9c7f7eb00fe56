// Package config loads runtime configuration for the storefront client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the identity service
//	-d string   path to the local SQLite credentials file
//	-i int      request timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://localhost:8080",
//	  "database_path": "storefront-client.db",
//	  "request_timeout": "10s"
//	}
package config
