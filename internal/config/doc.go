// Package config loads server settings. Later sources override earlier ones:
// defaults, an optional YAML file, then DIALTONE_* environment variables
// (.env files included). Command-line flags are applied on top by the CLI.
package config
