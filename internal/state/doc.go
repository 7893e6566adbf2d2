// Package state persists the resumable processing state as a single JSON
// document.
//
// The document holds three independent tables: the set of fully processed
// artifact paths, the content-hash to output-name table, and the per-base-name
// suffix counters. Loading is best-effort: a corrupt or missing document
// yields an empty initial state so a run can always make forward progress.
// Saving rewrites the document atomically; a failed checkpoint is logged and
// never aborts the batch.
package state
