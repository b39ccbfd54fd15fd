package validate

// NameIDRef describes one name-table/file-data-id reference to check.
type NameIDRef struct {
	Field      string
	Index      int
	TableLen   int
	FileDataID bool // true if Index is actually a file-data-id, exempt from table bounds
}

// CheckNameIDRefs validates a batch of name/file-data-id references
// against a shared name table length.
func (c *Checker) CheckNameIDRefs(refs []NameIDRef) {
	for _, r := range refs {
		if r.FileDataID {
			continue
		}
		c.RequireIndexInBounds(r.Field, r.Index, r.TableLen, nil)
	}
}

// PortalRef describes one portal-index/group-index pair to check against
// the owning culler's table lengths.
type PortalRef struct {
	Field       string
	PortalIndex int
	GroupIndex  int
}

// CheckPortalRefs validates that every portal/group reference index falls
// within its respective table.
func (c *Checker) CheckPortalRefs(refs []PortalRef, portalCount, groupCount int) {
	for _, r := range refs {
		c.RequireIndexInBounds(r.Field+".portal", r.PortalIndex, portalCount, nil)
		c.RequireIndexInBounds(r.Field+".group", r.GroupIndex, groupCount, nil)
	}
}

// CheckBoneParents validates that every bone's parent index is either -1
// (root) or strictly less than the bone's own index, preserving the
// topological-ordering invariant the bone transform engine depends on.
func (c *Checker) CheckBoneParents(parents []int) {
	for i, p := range parents {
		if p == -1 {
			continue
		}
		if p < 0 || p >= i {
			c.Errorf("bones", "bone %d has out-of-order or invalid parent %d", i, p)
		}
	}
}
