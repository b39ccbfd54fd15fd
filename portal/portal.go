package portal

import (
	"math"
	"sort"
)

// Portal is a planar convex polygon shared between two groups.
type Portal struct {
	Vertices []Vec3
	AABB     AABB
	Plane    Plane
}

// degenerate reports whether the polygon has fewer than 3 vertices (§3
// invariant 6); collinear vertices are not detected.
func (p Portal) degenerate() bool {
	return len(p.Vertices) < 3
}

// PortalRef names a portal, its destination group, and which half-space
// of the portal's plane it faces.
type PortalRef struct {
	PortalIndex int
	DestGroup   int
	Side        int8 // -1 or +1
}

// Group is a convex subvolume: its portal references, AABB, and whether
// it's exterior (outdoor).
type Group struct {
	Portals  []PortalRef
	AABB     AABB
	Exterior bool
}

// VisibilityResult is the output of FindVisibleGroups.
type VisibilityResult struct {
	VisibleGroups    []int
	ExteriorFrustums []Frustum
}

// Culler holds the static portal/group arrays a world-map object is built
// from and answers visibility queries against them.
type Culler struct {
	Portals []Portal
	Groups  []Group
}

// New constructs a Culler from its immutable arrays.
func New(portals []Portal, groups []Group) *Culler {
	return &Culler{Portals: portals, Groups: groups}
}

// FindVisibleGroups performs the depth-first, path-sensitive traversal of
// §4.10: visited is cloned per recursion path, so a group reached through
// two portals from different directions is visited twice if each path
// carries a distinct frustum.
func (c *Culler) FindVisibleGroups(startGroup int, eye Vec3, frustum Frustum) VisibilityResult {
	result := VisibilityResult{}
	visited := map[int]bool{}
	c.visit(startGroup, eye, frustum, visited, &result)
	return result
}

func (c *Culler) visit(groupIdx int, eye Vec3, frustum Frustum, visited map[int]bool, result *VisibilityResult) {
	if groupIdx < 0 || groupIdx >= len(c.Groups) {
		return
	}
	if visited[groupIdx] {
		return
	}
	// visited is path-local: clone before recursing further so sibling
	// branches don't see each other's visits.
	pathVisited := make(map[int]bool, len(visited)+1)
	for k, v := range visited {
		pathVisited[k] = v
	}
	pathVisited[groupIdx] = true

	result.VisibleGroups = append(result.VisibleGroups, groupIdx)
	group := c.Groups[groupIdx]

	for _, ref := range group.Portals {
		if ref.PortalIndex < 0 || ref.PortalIndex >= len(c.Portals) {
			continue
		}
		p := c.Portals[ref.PortalIndex]

		// Step 1: early-exit on side mismatch.
		dist := p.Plane.Distance(eye)
		if ref.Side > 0 && dist < 0 {
			continue
		}
		if ref.Side < 0 && dist > 0 {
			continue
		}

		// Step 2: AABB vs frustum.
		aabbPasses := frustum.ContainsAABB(p.AABB)

		// Step 3: always traverse if eye is inside the portal's AABB.
		insideAABB := p.AABB.Contains(eye, false)
		if !insideAABB && !aabbPasses {
			continue
		}

		// Step 4: clip the frustum through the portal's edges.
		clipped := clipThroughPortal(frustum, eye, p)

		// Step 5: record exterior transitions.
		if !group.Exterior && ref.DestGroup >= 0 && ref.DestGroup < len(c.Groups) && c.Groups[ref.DestGroup].Exterior {
			result.ExteriorFrustums = append(result.ExteriorFrustums, clipped)
		}

		c.visit(ref.DestGroup, eye, clipped, pathVisited, result)
	}
}

// clipThroughPortal builds a new frustum by appending, for every edge
// (a,b) of the portal polygon, the plane through (eye,a,b) oriented
// toward the previous vertex so the portal interior lies on the positive
// side (§4.10 step 4). A degenerate (≤2-vertex) polygon leaves the
// frustum unchanged, per the open question noted in SPEC_FULL.md.
func clipThroughPortal(frustum Frustum, eye Vec3, p Portal) Frustum {
	if p.degenerate() {
		return frustum
	}
	out := frustum
	n := len(p.Vertices)
	for i := 0; i < n; i++ {
		a := p.Vertices[i]
		b := p.Vertices[(i+1)%n]
		prev := p.Vertices[(i+n-1)%n]

		pl := PlaneFromPoints(eye, a, b)
		if pl.Distance(prev) < 0 {
			pl.Normal = Vec3{-pl.Normal.X, -pl.Normal.Y, -pl.Normal.Z}
			pl.D = -pl.D
		}
		out = out.Clip(pl)
	}
	return out
}

// SortVerticesAroundCentroid orders vertices (assumed coplanar, on plane
// pl) by angle around their centroid in pl's major-axis 2D projection, so
// winding is stable regardless of input order (§4.10).
func SortVerticesAroundCentroid(vertices []Vec3, pl Plane) []Vec3 {
	if len(vertices) < 3 {
		out := make([]Vec3, len(vertices))
		copy(out, vertices)
		return out
	}
	var centroid Vec3
	for _, v := range vertices {
		centroid = centroid.Add(v)
	}
	inv := 1.0 / float32(len(vertices))
	centroid = Vec3{centroid.X * inv, centroid.Y * inv, centroid.Z * inv}

	ax, ay := majorAxes(pl.Normal)

	type withAngle struct {
		v   Vec3
		ang float64
	}
	items := make([]withAngle, len(vertices))
	for i, v := range vertices {
		d := v.Sub(centroid)
		u := d.Dot(ax)
		w := d.Dot(ay)
		items[i] = withAngle{v: v, ang: angleOf(u, w)}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ang < items[j].ang })

	out := make([]Vec3, len(items))
	for i, it := range items {
		out[i] = it.v
	}
	return out
}

// majorAxes picks two axes spanning the plane perpendicular to normal,
// by dropping the normal's dominant component.
func majorAxes(normal Vec3) (Vec3, Vec3) {
	ax := normal.X
	ay := normal.Y
	az := normal.Z
	abs := func(f float32) float32 {
		if f < 0 {
			return -f
		}
		return f
	}
	var u Vec3
	switch {
	case abs(az) >= abs(ax) && abs(az) >= abs(ay):
		u = Vec3{1, 0, 0}
	case abs(ay) >= abs(ax):
		u = Vec3{1, 0, 0}
	default:
		u = Vec3{0, 1, 0}
	}
	v := normal.Cross(u).Normalize()
	u = v.Cross(normal).Normalize()
	return u, v
}

func angleOf(u, w float32) float64 {
	return math.Atan2(float64(w), float64(u))
}
