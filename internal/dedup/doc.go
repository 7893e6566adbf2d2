// Package dedup decides whether an artifact is a duplicate and allocates
// collision-free output names.
//
// The Resolver guards the hash-to-name table and the per-base-name suffix
// counters with a single mutex so that check-and-allocate is one atomic
// operation: two workers can never bind the same hash to different names or
// receive the same candidate suffix. Counters only ever advance: a suffix,
// once issued, is never handed out again, even when the corresponding name
// later turns out to be free on disk. Files on disk that the pipeline did
// not record are foreign and are skipped over, never overwritten.
package dedup
