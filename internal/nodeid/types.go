// internal/nodeid/types.go
package nodeid

// PathSegment is one component of a node id: a task name plus an optional
// numeric index (e.g. `downloader[2]`). Index is -1 when absent. The graph
// builder fills the index from a sequence number that runs across the whole
// build, so it is unique per node rather than a replica ordinal.
type PathSegment struct {
	Name  string
	Index int
}

// NewPathSegment creates a segment with no index.
func NewPathSegment(name string) PathSegment {
	return PathSegment{Name: name, Index: -1}
}

// NewPathSegmentWithIndex creates a segment with an explicit index.
func NewPathSegmentWithIndex(name string, index int) PathSegment {
	return PathSegment{Name: name, Index: index}
}

// HasIndex returns true if the segment carries an explicit index.
func (ps PathSegment) HasIndex() bool {
	return ps.Index != -1
}

// Address is a node's canonical identifier: one task-name/index
// segment. Pointy-Lang's task graph is flat — a node's id never nests
// inside another node's — so an Address is a single PathSegment rather
// than a path.
type Address struct {
	Segment PathSegment
}
