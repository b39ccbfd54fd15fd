package anim

// Instance ties one playback state Machine to a BoneEngine sharing the
// same skeleton, giving a renderer-facing consumer a single Advance/Pose
// cycle instead of juggling the two pieces itself.
type Instance struct {
	Machine *Machine
	Engine  *BoneEngine
}

// NewInstance builds an Instance from a bone list, sequence list,
// global-sequence list, and RNG seed.
func NewInstance(bones []Bone, sequences []Sequence, globalSequences []GlobalSequence, seed uint32) *Instance {
	return &Instance{
		Machine: NewMachine(sequences, bones, globalSequences, seed),
		Engine:  NewBoneEngine(bones),
	}
}

// Advance moves playback forward by dtMs and recomputes every bone's
// skinning matrix against the new pose.
func (in *Instance) Advance(dtMs uint32) {
	in.Machine.Update(dtMs)
	poses := make([]BonePose, len(in.Engine.bones))
	for i := range in.Engine.bones {
		poses[i] = BonePose{
			Rotation:    in.Machine.GetBoneRotation(i),
			Translation: in.Machine.GetBoneTranslation(i),
			Scale:       in.Machine.GetBoneScale(i),
		}
	}
	in.Engine.Compute(poses)
}

// SkinningMatrix returns the current frame's skinning matrix for bone i.
func (in *Instance) SkinningMatrix(i int) Mat4 { return in.Engine.SkinningMatrix(i) }

// PlaySequenceID switches playback to the first sequence with the given
// ID.
func (in *Instance) PlaySequenceID(id uint16) { in.Machine.SetAnimationID(id) }

// AnimationManager owns one Instance per model instance, keyed by a
// caller-chosen ID (e.g. an entity handle). A renderer drives many
// instances of one skeleton; each instance advances independently and
// single-threaded per its own call (§5), the manager just fans out
// construction and lookup.
type AnimationManager struct {
	bones           []Bone
	sequences       []Sequence
	globalSequences []GlobalSequence
	nextSeed        uint32
	instances       map[string]*Instance
}

// NewAnimationManager builds a manager sharing one skeleton/sequence
// table across every instance it creates.
func NewAnimationManager(bones []Bone, sequences []Sequence, globalSequences []GlobalSequence) *AnimationManager {
	return &AnimationManager{
		bones:           bones,
		sequences:       sequences,
		globalSequences: globalSequences,
		nextSeed:        1,
		instances:       make(map[string]*Instance),
	}
}

// Spawn creates (or replaces) a new instance under id, deriving a
// distinct RNG seed from the manager's internal counter so instances
// don't share an identical variation-selection sequence.
func (am *AnimationManager) Spawn(id string) *Instance {
	seed := am.nextSeed
	am.nextSeed = am.nextSeed*1103515245 + 12345
	globals := make([]GlobalSequence, len(am.globalSequences))
	copy(globals, am.globalSequences)
	in := NewInstance(am.bones, am.sequences, globals, seed)
	am.instances[id] = in
	return in
}

// Get returns the instance registered under id, if any.
func (am *AnimationManager) Get(id string) (*Instance, bool) {
	in, ok := am.instances[id]
	return in, ok
}

// Despawn removes the instance registered under id.
func (am *AnimationManager) Despawn(id string) {
	delete(am.instances, id)
}

// Advance steps every registered instance forward by dtMs.
func (am *AnimationManager) Advance(dtMs uint32) {
	for _, in := range am.instances {
		in.Advance(dtMs)
	}
}
