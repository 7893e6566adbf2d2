package decoder

import "context"

// Node is one element of a decoded artifact: a group (interior node with
// children) or a blob (leaf carrying PNG-encoded image bytes). Hidden
// layers arrive with Visible=false and the pipeline skips their bytes.
type Node struct {
	Name     string
	Group    bool
	Visible  bool
	Image    []byte
	Children []*Node
}

// Decoder turns one artifact into a tree of named image blobs. The returned
// root is an unnamed group whose children are the artifact's top-level
// layers.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Node, error)
}
