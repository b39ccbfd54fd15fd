// Package portal implements the portal-based visibility engine for
// world-map objects: a recursive frustum-clipping traversal over planar
// portals linking convex group volumes, plus a point-in-group locator
// (§4.10).
package portal

import "math"

// Vec3 is a 3D point or direction.
type Vec3 struct {
	X, Y, Z float32
}

func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}
func (a Vec3) Dot(b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float32       { return float32(math.Sqrt(float64(a.Dot(a)))) }

func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{a.X / l, a.Y / l, a.Z / l}
}

// AABB is an axis-aligned bounding box. An empty box (Min.X > Max.X, by
// convention on every axis) rejects every point and every other test,
// per the degenerate-sentinel rule of §4.10.
type AABB struct {
	Min, Max Vec3
}

func (b AABB) empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Contains reports whether p lies within b. ignoreUpperZ skips the Max.Z
// test, modeling an exterior group's open ceiling.
func (b AABB) Contains(p Vec3, ignoreUpperZ bool) bool {
	if b.empty() {
		return false
	}
	if p.X < b.Min.X || p.X > b.Max.X {
		return false
	}
	if p.Y < b.Min.Y || p.Y > b.Max.Y {
		return false
	}
	if p.Z < b.Min.Z {
		return false
	}
	if !ignoreUpperZ && p.Z > b.Max.Z {
		return false
	}
	return true
}

// Corners returns the 8 corners of b.
func (b AABB) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z}, {b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z}, {b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z}, {b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z}, {b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// Plane is a plane in normal-distance form: points p with Normal.Dot(p) +
// D >= 0 lie on the positive side. A zero-normal plane is degenerate and
// is treated as always-satisfied (§4.10).
type Plane struct {
	Normal Vec3
	D      float32
}

func (p Plane) degenerate() bool {
	return p.Normal.X == 0 && p.Normal.Y == 0 && p.Normal.Z == 0
}

// Distance returns the signed distance of v from p.
func (p Plane) Distance(v Vec3) float32 {
	return p.Normal.Dot(v) + p.D
}

// PlaneFromPoints builds the plane through a, b, c with its normal
// oriented per (b-a) x (c-a).
func PlaneFromPoints(a, b, c Vec3) Plane {
	n := b.Sub(a).Cross(c.Sub(a)).Normalize()
	return Plane{Normal: n, D: -n.Dot(a)}
}

// aabbOnPositiveSide reports whether any corner of box lies on or in
// front of plane, so a box fails a plane only when all eight corners are
// behind it. A degenerate plane always reports true.
func aabbOnPositiveSide(box AABB, pl Plane) bool {
	if pl.degenerate() {
		return true
	}
	for _, c := range box.Corners() {
		if pl.Distance(c) >= 0 {
			return true
		}
	}
	return false
}

// Frustum is an ordered convex hull of outward-facing planes.
type Frustum struct {
	Planes []Plane
}

// ContainsAABB reports whether box passes every plane of f: for each
// plane, at least one corner of box must lie on or in front of it, each
// plane tested independently — the standard conservative AABB/frustum
// test (§3). An empty box never passes.
func (f Frustum) ContainsAABB(box AABB) bool {
	if box.empty() {
		return false
	}
	for _, pl := range f.Planes {
		if !aabbOnPositiveSide(box, pl) {
			return false
		}
	}
	return true
}

// Clip returns a new frustum with pl appended.
func (f Frustum) Clip(pl Plane) Frustum {
	out := Frustum{Planes: make([]Plane, len(f.Planes), len(f.Planes)+1)}
	copy(out.Planes, f.Planes)
	out.Planes = append(out.Planes, pl)
	return out
}

// Subset reports whether f is a subset of g: every plane constraint of f
// also appears in g with an exactly equal normal and distance. The
// traversal does not use this relation.
func (f Frustum) Subset(g Frustum) bool {
	for _, pf := range f.Planes {
		found := false
		for _, pg := range g.Planes {
			if pf.Normal == pg.Normal && pf.D == pg.D {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
