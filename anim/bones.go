package anim

// BoneFlags encodes per-bone rendering modifiers.
type BoneFlags uint32

const (
	BoneFlagSphericalBillboard BoneFlags = 0x1 << iota
	BoneFlagInheritanceDisabled
)

// Bone describes one skeleton joint: its parent (< own index, or -1 for a
// root), a pivot point, and its three animation tracks.
type Bone struct {
	Parent      int
	Flags       BoneFlags
	Pivot       Vec3
	Translation Track[Vec3]
	Rotation    Track[Quat]
	Scale       Track[Vec3]
}

// BoneEngine precomputes per-bone pivot matrices and the propagated
// billboard flag, then composes per-frame hierarchical transforms
// (§4.12). Bones must already be topologically ordered (parent index <
// own index), per §3 invariant 7.
type BoneEngine struct {
	bones        []Bone
	pivot        []Mat4
	antiPivot    []Mat4
	billboard    []bool
	transform    []Mat4
	postBillboard []Mat4
}

// NewBoneEngine precomputes pivot/anti-pivot matrices and propagates the
// spherical-billboard flag from any ancestor to its descendants.
func NewBoneEngine(bones []Bone) *BoneEngine {
	e := &BoneEngine{
		bones:         bones,
		pivot:         make([]Mat4, len(bones)),
		antiPivot:     make([]Mat4, len(bones)),
		billboard:     make([]bool, len(bones)),
		transform:     make([]Mat4, len(bones)),
		postBillboard: make([]Mat4, len(bones)),
	}
	for i, b := range bones {
		e.pivot[i] = Translation(b.Pivot)
		e.antiPivot[i] = Translation(Vec3{-b.Pivot.X, -b.Pivot.Y, -b.Pivot.Z})

		own := b.Flags&BoneFlagSphericalBillboard != 0
		inherited := false
		if b.Parent >= 0 {
			inherited = e.billboard[b.Parent]
		}
		e.billboard[i] = own || inherited
	}
	return e
}

// BonePose is the sampled local rotation/translation/scale for one bone
// at the current frame, as produced by the animation state machine.
type BonePose struct {
	Rotation    Quat
	Translation Vec3
	Scale       Vec3
}

// Compute walks bones in index order (parents always precede children,
// by the topological-ordering invariant) and fills Transform/PostBillboard
// per the composition rule of §4.12.
func (e *BoneEngine) Compute(poses []BonePose) {
	for i, b := range e.bones {
		pose := BonePose{Rotation: identityQuat, Translation: identityVec3, Scale: oneVec3}
		if i < len(poses) {
			pose = poses[i]
		}
		local := FromRotationTranslationScale(pose.Rotation, pose.Translation, pose.Scale)
		centered := e.pivot[i].Mul(local)

		if b.Parent >= 0 {
			if e.billboard[i] {
				e.transform[i] = e.transform[b.Parent].Mul(e.antiPivot[i])
				e.postBillboard[i] = e.postBillboard[b.Parent].Mul(centered)
			} else {
				finalLocal := centered.Mul(e.antiPivot[i])
				e.postBillboard[i] = e.postBillboard[b.Parent].Mul(finalLocal)
				e.transform[i] = e.postBillboard[i]
			}
			continue
		}

		if e.billboard[i] {
			e.transform[i] = e.antiPivot[i]
			e.postBillboard[i] = centered
		} else {
			finalLocal := centered.Mul(e.antiPivot[i])
			e.transform[i] = finalLocal
			e.postBillboard[i] = finalLocal
		}
	}
}

// SkinningMatrix returns the matrix a renderer should use to skin
// vertices weighted to bone i.
func (e *BoneEngine) SkinningMatrix(i int) Mat4 { return e.postBillboard[i] }

// BillboardTransform returns the pre-billboard-injection transform for
// bone i, exposed so a renderer can splice in a camera rotation (§4.12);
// only meaningful when the bone is flagged as billboarded.
func (e *BoneEngine) BillboardTransform(i int) Mat4 { return e.transform[i] }

// IsBillboard reports whether bone i (directly or via inheritance) is a
// billboard bone.
func (e *BoneEngine) IsBillboard(i int) bool { return e.billboard[i] }
