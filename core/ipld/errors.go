package ipld

import "fmt"

// TypeError means a Node was accessed as a kind it is not.
type TypeError struct {
	Expected Kind
	Found    Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("ipld: expected %s but found %s", e.Expected, e.Found)
}

// SegmentNotFoundError means a path segment named a key or index that
// does not exist in the list or map it was applied to.
type SegmentNotFoundError struct {
	Segment Segment
	In      Kind
}

func (e *SegmentNotFoundError) Error() string {
	return fmt.Sprintf("ipld: segment %q not found in %s", e.Segment, e.In)
}
