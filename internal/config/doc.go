// Package config loads, normalizes, and validates the TOML configuration
// that drives the clipdub daemon and CLI.
package config
