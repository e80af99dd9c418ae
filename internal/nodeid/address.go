// internal/nodeid/address.go
package nodeid

import "fmt"

// String serializes the Address into its canonical `name` or `name[index]`
// representation.
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	if !a.Segment.HasIndex() {
		return a.Segment.Name
	}
	return fmt.Sprintf("%s[%d]", a.Segment.Name, a.Segment.Index)
}

// Equal checks for equality between two Address pointers.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Segment == other.Segment
}
