// Package decoder defines the narrow contract between the pipeline and the
// external artifact decoder.
//
// The pipeline treats decoding as an opaque capability: one input artifact
// becomes a tree of named image blobs, with groups as interior nodes. The
// Tool implementation shells out to a configurable extractor binary; tests
// substitute in-memory fakes. Nothing in the pipeline may assume decoder
// behavior beyond this contract.
package decoder
