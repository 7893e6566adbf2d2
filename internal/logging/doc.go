// Package logging constructs the slog loggers used across stratum.
//
// It provides a console handler for interactive runs, a JSON handler for
// machine-readable logs, and helpers for attaching component attributes.
// The run log file under the output root receives the same records as
// the console so interrupted batches can be audited afterwards.
package logging
