package portal

// WmoGroupLocator answers point-in-group queries: which groups of a world
// map object contain a given point, interior groups preferred first, then
// exterior ones, with exterior AABBs tested ignoring their upper Z bound
// (open-air ceilings) (§4.10).
type WmoGroupLocator struct {
	groups []Group
}

// NewWmoGroupLocator builds a locator over groups.
func NewWmoGroupLocator(groups []Group) *WmoGroupLocator {
	return &WmoGroupLocator{groups: groups}
}

// Locate returns the indices of every group containing p, interior
// matches first (in group order), then exterior matches (in group
// order).
func (l *WmoGroupLocator) Locate(p Vec3) []int {
	var interior, exterior []int
	for i, g := range l.groups {
		if g.Exterior {
			if g.AABB.Contains(p, true) {
				exterior = append(exterior, i)
			}
		} else if g.AABB.Contains(p, false) {
			interior = append(interior, i)
		}
	}
	return append(interior, exterior...)
}
