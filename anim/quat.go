package anim

import "math"

func (q Quat) dot(o Quat) float32 { return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W }

func (q Quat) scale(s float32) Quat { return Quat{q.X * s, q.Y * s, q.Z * s, q.W * s} }

func (q Quat) add(o Quat) Quat {
	return Quat{q.X + o.X, q.Y + o.Y, q.Z + o.Z, q.W + o.W}
}

func (q Quat) negate() Quat { return Quat{-q.X, -q.Y, -q.Z, -q.W} }

// Normalize returns q scaled to unit length; the identity quaternion if q
// is (near-)zero.
func (q Quat) Normalize() Quat {
	lenSq := q.dot(q)
	if lenSq < 1e-12 {
		return identityQuat
	}
	inv := float32(1.0 / math.Sqrt(float64(lenSq)))
	return q.scale(inv)
}

// slerp spherically interpolates between a and b at t in [0,1], taking
// the shorter arc, falling back to a normalized lerp when the angle
// between them is too small for slerp's division to stay numerically
// stable (§4.11: "slerp for quaternions"). The result is renormalized,
// matching the track interpolator's rule that quaternion samples
// normalize after interpolation (§4.13).
func slerp(a, b Quat, t float32) Quat {
	cosTheta := a.dot(b)
	if cosTheta < 0 {
		b = b.negate()
		cosTheta = -cosTheta
	}

	const epsilon = 1e-5
	if cosTheta > 1-epsilon {
		return a.add(b.add(a.negate()).scale(t)).Normalize()
	}

	theta := float32(math.Acos(float64(cosTheta)))
	sinTheta := float32(math.Sin(float64(theta)))
	wa := float32(math.Sin(float64((1-t)*theta))) / sinTheta
	wb := float32(math.Sin(float64(t*theta))) / sinTheta
	return a.scale(wa).add(b.scale(wb)).Normalize()
}
