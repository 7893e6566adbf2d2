// Package discovery enumerates input artifacts under a directory tree.
//
// Walking large trees is expensive, so the result of a scan is persisted as
// a flat text file (one absolute path per line) under the output root. A
// later run reads that file verbatim instead of re-walking; trusting the
// cache is a deliberate performance tradeoff, and passing refresh forces a
// new scan. Cache read and write failures degrade to a fresh walk and are never
// fatal.
package discovery
