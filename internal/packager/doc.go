// Package packager turns one input artifact into a single output archive.
//
// For each artifact it rebuilds a per-artifact directory from scratch (a
// partially populated directory left by an interrupted run is treated as
// scratch and deleted), optionally embeds a copy of the source artifact,
// mirrors the decoder's blob tree into the directory, compresses the
// directory into a zip archive at the output root, and removes the
// directory once the archive is written. On compression failure the
// partial archive is removed and the directory is left in place for
// inspection.
package packager
