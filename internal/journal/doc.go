// Package journal records run history in SQLite.
//
// Each pipeline run gets one row with its directories, counts, and timing;
// per-artifact outcomes are appended as they complete. The journal is
// advisory: it backs the `stratum history` command and plays no part in
// resume correctness, so journal failures are logged by callers and never
// abort processing. The resumable state itself lives in the JSON state
// document, not here.
package journal
