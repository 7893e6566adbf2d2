// Package config loads, normalizes, and validates stratum configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads optional TOML files. Every knob the CLI needs lives
// on the Config type; command-line flags override individual fields after
// loading. Obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
