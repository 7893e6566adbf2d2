// Package pipeline coordinates artifact processing across a bounded worker
// pool.
//
// The coordinator filters out artifacts completed by earlier runs, dispatches
// one artifact per task, and aggregates outcomes on a single collector
// goroutine. Workers hash their artifact, consult the dedup resolver inside
// its critical section, and perform all file I/O outside the lock, so a slow
// decode never blocks another worker's naming decision. Duplicates perform no
// I/O at all. A failing task
// is logged and counted; it never aborts its siblings or the batch. State is
// checkpointed after a fixed number of completions and once more when the
// batch ends; work completed after the last checkpoint of an interrupted run
// is simply redone on the next run.
package pipeline
