package anim

import "sort"

// InterpolationKind selects how a Track resamples between keyframes.
type InterpolationKind int

const (
	InterpNone InterpolationKind = iota
	InterpLinear
	InterpHermite
	InterpBezier
)

// GlobalSequenceNone marks a track as driven by its owning sequence's own
// clock rather than a shared global-sequence timeline.
const GlobalSequenceNone = -1

// lerpable is the set of value types a Track can interpolate.
type lerpable interface {
	Vec3 | Quat | float32
}

// Track is a per-sequence keyframe timeline (§4.13). Timestamps and
// Values are indexed in parallel, one slice per sequence (legacy formats
// store a shared flat buffer instead; RebuildFromRanges below adapts that
// layout into this one).
type Track[T lerpable] struct {
	Interpolation  InterpolationKind
	GlobalSequence int
	Timestamps     [][]uint32
	Values         [][]T
}

// RebuildFromRanges adapts the legacy paired (start,end) index-range
// layout into per-sequence slices against flat timestamp/value buffers.
func RebuildFromRanges[T lerpable](ranges [][2]int, flatTimes []uint32, flatValues []T) ([][]uint32, [][]T) {
	times := make([][]uint32, len(ranges))
	values := make([][]T, len(ranges))
	for i, r := range ranges {
		start, end := r[0], r[1]
		if start < 0 || end > len(flatTimes) || start > end {
			continue
		}
		times[i] = flatTimes[start:end]
		if end <= len(flatValues) {
			values[i] = flatValues[start:end]
		}
	}
	return times, values
}

func lerpValue[T lerpable](a, b T, t float32) T {
	switch av := any(a).(type) {
	case Vec3:
		bv := any(b).(Vec3)
		return any(Vec3{
			X: av.X + (bv.X-av.X)*t,
			Y: av.Y + (bv.Y-av.Y)*t,
			Z: av.Z + (bv.Z-av.Z)*t,
		}).(T)
	case Quat:
		bv := any(b).(Quat)
		return any(slerp(av, bv, t)).(T)
	case float32:
		bv := any(b).(float32)
		return any(av + (bv-av)*t).(T)
	default:
		return a
	}
}

// smoothstep applies an ease-in/ease-out weighting to t, used for the
// Hermite/Bezier kinds in the absence of separately stored tangent data
// (this distillation's tracks carry only sampled values, not tangents;
// see DESIGN.md).
func smoothstep(t float32) float32 {
	return t * t * (3 - 2*t)
}

// Sample evaluates the track for sequence seq at time t (or, if the track
// is driven by a global sequence, at globalTime instead). Returns the
// type's zero value if the sequence has no timestamps.
func (tr Track[T]) Sample(seq int, t uint32, globalTime uint32) T {
	var zero T
	if seq < 0 || seq >= len(tr.Timestamps) {
		return zero
	}
	times := tr.Timestamps[seq]
	values := tr.Values[seq]
	if len(times) == 0 || len(values) == 0 {
		return zero
	}

	queryTime := t
	if tr.GlobalSequence >= 0 {
		queryTime = globalTime
	}

	if len(times) == 1 {
		return values[0]
	}

	// Binary search for the first index whose timestamp is > queryTime;
	// the bracketing pair is (idx-1, idx).
	idx := sort.Search(len(times), func(i int) bool { return times[i] > queryTime })

	if idx == 0 {
		return values[0]
	}
	if idx >= len(times) {
		return values[len(values)-1]
	}

	lo, hi := idx-1, idx
	span := times[hi] - times[lo]
	var frac float32
	if span > 0 {
		frac = float32(queryTime-times[lo]) / float32(span)
	}

	switch tr.Interpolation {
	case InterpNone:
		return values[lo]
	case InterpHermite, InterpBezier:
		frac = smoothstep(frac)
		fallthrough
	default: // InterpLinear and the smoothed fallthrough
		return lerpValue(values[lo], values[hi], frac)
	}
}
