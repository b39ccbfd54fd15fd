package anim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightTrack(values []Vec3, times []uint32) Track[Vec3] {
	return Track[Vec3]{
		Interpolation:  InterpLinear,
		GlobalSequence: GlobalSequenceNone,
		Timestamps:     [][]uint32{times},
		Values:         [][]Vec3{values},
	}
}

func TestTrackSampleLinearInterpolation(t *testing.T) {
	tr := straightTrack([]Vec3{{0, 0, 0}, {10, 0, 0}}, []uint32{0, 1000})

	v := tr.Sample(0, 500, 0)
	assert.InDelta(t, 5.0, v.X, 1e-5)

	assert.Equal(t, Vec3{0, 0, 0}, tr.Sample(0, 0, 0))
	assert.Equal(t, Vec3{10, 0, 0}, tr.Sample(0, 1000, 0))
	// past the last keyframe, clamp to the last value
	assert.Equal(t, Vec3{10, 0, 0}, tr.Sample(0, 5000, 0))
}

func TestTrackSampleSingleKeyframeIsConstant(t *testing.T) {
	tr := straightTrack([]Vec3{{3, 4, 5}}, []uint32{0})
	assert.Equal(t, Vec3{3, 4, 5}, tr.Sample(0, 9999, 0))
}

func TestTrackSampleMissingSequenceReturnsZero(t *testing.T) {
	tr := straightTrack([]Vec3{{1, 1, 1}}, []uint32{0})
	assert.Equal(t, Vec3{}, tr.Sample(5, 0, 0))
}

func TestTrackSampleNoneInterpolationSteps(t *testing.T) {
	tr := straightTrack([]Vec3{{0, 0, 0}, {10, 0, 0}}, []uint32{0, 1000})
	tr.Interpolation = InterpNone
	v := tr.Sample(0, 999, 0)
	assert.Equal(t, Vec3{0, 0, 0}, v)
}

func TestTrackGlobalSequenceUsesGlobalTimeNotLocal(t *testing.T) {
	tr := straightTrack([]Vec3{{0, 0, 0}, {10, 0, 0}}, []uint32{0, 1000})
	tr.GlobalSequence = 0
	v := tr.Sample(0, 999999, 500)
	assert.InDelta(t, 5.0, v.X, 1e-5)
}

func TestRebuildFromRangesSlicesFlatBuffers(t *testing.T) {
	flatTimes := []uint32{0, 500, 1000, 0, 250}
	flatValues := []Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {5, 5, 5}, {6, 6, 6}}
	ranges := [][2]int{{0, 3}, {3, 5}}

	times, values := RebuildFromRanges(ranges, flatTimes, flatValues)
	require.Len(t, times, 2)
	assert.Equal(t, []uint32{0, 500, 1000}, times[0])
	assert.Equal(t, []Vec3{{5, 5, 5}, {6, 6, 6}}, values[1])
}

func TestSlerpTakesShorterArc(t *testing.T) {
	a := Quat{0, 0, 0, 1}
	// b is "almost opposite" a in the sense that its dot product with a is
	// negative; slerp must negate b internally so the path stays short.
	b := Quat{0, 0, 0, -1}.Normalize()
	mid := slerp(a, b, 0.5)
	// Negating b before interpolating means the midpoint stays at the
	// identity rotation rather than passing through the long way around.
	assert.InDelta(t, 1.0, math.Abs(float64(mid.W)), 1e-4)
}

func TestSlerpFallsBackToLerpWhenNearParallel(t *testing.T) {
	a := Quat{0, 0, 0, 1}
	b := Quat{0.0001, 0, 0, 1}.Normalize()
	mid := slerp(a, b, 0.5)
	assert.InDelta(t, 1.0, mid.dot(mid), 1e-3)
}

func TestResolveAliasFollowsChain(t *testing.T) {
	seqs := []Sequence{
		{DurationMs: 1000},
		{IsAlias: true, AliasTarget: 2},
		{IsAlias: true, AliasTarget: 0},
	}
	assert.Equal(t, 0, resolveAlias(seqs, 1))
}

func TestResolveAliasBoundedAgainstCycles(t *testing.T) {
	seqs := []Sequence{
		{IsAlias: true, AliasTarget: 1},
		{IsAlias: true, AliasTarget: 0},
	}
	// must terminate rather than loop forever
	got := resolveAlias(seqs, 0)
	assert.True(t, got == 0 || got == 1)
}

func TestBoneEngineComposesParentChildTranslation(t *testing.T) {
	bones := []Bone{
		{Parent: -1},
		{Parent: 0},
	}
	e := NewBoneEngine(bones)
	poses := []BonePose{
		{Rotation: identityQuat, Translation: Vec3{1, 0, 0}, Scale: oneVec3},
		{Rotation: identityQuat, Translation: Vec3{0, 2, 0}, Scale: oneVec3},
	}
	e.Compute(poses)

	root := e.SkinningMatrix(0)
	assert.InDelta(t, 1.0, root[12], 1e-5)

	child := e.SkinningMatrix(1)
	assert.InDelta(t, 1.0, child[12], 1e-5)
	assert.InDelta(t, 2.0, child[13], 1e-5)
}

func TestBoneEngineBillboardFlagInherited(t *testing.T) {
	bones := []Bone{
		{Parent: -1, Flags: BoneFlagSphericalBillboard},
		{Parent: 0},
	}
	e := NewBoneEngine(bones)
	assert.True(t, e.IsBillboard(0))
	assert.True(t, e.IsBillboard(1))
}

func TestMachineUpdateWrapsWithoutVariation(t *testing.T) {
	sequences := []Sequence{{ID: 1, DurationMs: 1000, VariationNext: -1}}
	m := NewMachine(sequences, nil, nil, 1)
	m.Update(1200)
	assert.Equal(t, uint32(200), m.Current.TimeMs)
	assert.Nil(t, m.Next)
}

func TestMachineSetAnimationIDResetsState(t *testing.T) {
	sequences := []Sequence{{ID: 1, DurationMs: 500}, {ID: 2, DurationMs: 800}}
	m := NewMachine(sequences, nil, nil, 1)
	m.Update(400)
	m.SetAnimationID(2)
	assert.Equal(t, 1, m.Current.SequenceIndex)
	assert.Equal(t, uint32(0), m.Current.TimeMs)
	assert.Equal(t, float32(1.0), m.BlendFactor)
}

func TestMachineRepeatTimesQueuesNextBeforeCompletion(t *testing.T) {
	sequences := []Sequence{{ID: 1, DurationMs: 1000, VariationNext: -1}}
	m := NewMachine(sequences, nil, nil, 7)
	m.Current.RepeatTimes = 3
	m.Update(100)
	require.NotNil(t, m.Next)
	assert.Equal(t, int32(2), m.Next.RepeatTimes)
}

func TestMachineGlobalSequenceAccumulatesIndependently(t *testing.T) {
	sequences := []Sequence{{ID: 1, DurationMs: 1000, VariationNext: -1}}
	globals := []GlobalSequence{{DurationMs: 300}}
	m := NewMachine(sequences, nil, globals, 1)
	m.Update(700)
	assert.Equal(t, uint32(100), m.GlobalSequences[0].TimeMs)
}

func TestInstanceAdvanceProducesSkinningMatrix(t *testing.T) {
	bones := []Bone{
		{
			Parent:      -1,
			Translation: straightTrack([]Vec3{{0, 0, 0}, {4, 0, 0}}, []uint32{0, 1000}),
			Rotation:    Track[Quat]{Interpolation: InterpLinear, GlobalSequence: GlobalSequenceNone, Timestamps: [][]uint32{{0}}, Values: [][]Quat{{identityQuat}}},
			Scale:       straightTrack([]Vec3{{1, 1, 1}}, []uint32{0}),
		},
	}
	sequences := []Sequence{{ID: 1, DurationMs: 1000, VariationNext: -1}}
	in := NewInstance(bones, sequences, nil, 42)
	in.Advance(500)

	m := in.SkinningMatrix(0)
	assert.InDelta(t, 2.0, m[12], 1e-4)
}

func TestAnimationManagerSpawnsIndependentInstances(t *testing.T) {
	bones := []Bone{
		{
			Parent:      -1,
			Translation: straightTrack([]Vec3{{0, 0, 0}, {4, 0, 0}}, []uint32{0, 1000}),
			Rotation:    Track[Quat]{Interpolation: InterpLinear, GlobalSequence: GlobalSequenceNone, Timestamps: [][]uint32{{0}}, Values: [][]Quat{{identityQuat}}},
			Scale:       straightTrack([]Vec3{{1, 1, 1}}, []uint32{0}),
		},
	}
	sequences := []Sequence{{ID: 1, DurationMs: 1000, VariationNext: -1}}
	am := NewAnimationManager(bones, sequences, nil)

	a := am.Spawn("goblin-1")
	b := am.Spawn("goblin-2")
	am.Advance(500)

	got, ok := am.Get("goblin-1")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.NotSame(t, a, b)

	am.Despawn("goblin-2")
	_, ok = am.Get("goblin-2")
	assert.False(t, ok)
}
