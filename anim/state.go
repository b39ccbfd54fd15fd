package anim

// AnimationState is one playback cursor: which sequence, how far into it,
// how many repeats remain, and which variation of the sequence's ID this
// is (§3).
type AnimationState struct {
	SequenceIndex  int
	TimeMs         uint32
	RepeatTimes    int32
	MainVariation  int
}

// GlobalSequence is a timeline shared across animations, independent of
// the current animation's own clock (e.g. a blinking light).
type GlobalSequence struct {
	DurationMs uint32
	TimeMs     uint32
}

// Machine owns global-sequence clocks, the sequence table, resolved
// bones, the current/next playback states, and the active blend factor
// (§4.11).
type Machine struct {
	GlobalSequences []GlobalSequence
	Sequences       []Sequence
	Bones           []Bone

	Current     AnimationState
	Next        *AnimationState
	BlendFactor float32

	rng *lcgRNG
}

// NewMachine constructs a Machine starting at sequence index 0 with a
// private RNG seeded from seed (0 is remapped to a nonzero default).
func NewMachine(sequences []Sequence, bones []Bone, globalSequences []GlobalSequence, seed uint32) *Machine {
	return &Machine{
		GlobalSequences: globalSequences,
		Sequences:       sequences,
		Bones:           bones,
		Current:         AnimationState{SequenceIndex: 0, MainVariation: 0},
		BlendFactor:     1.0,
		rng:             newLCGRNG(seed),
	}
}

// SetAnimationID resets playback to the first sequence whose ID equals
// id, clearing any pending blend.
func (m *Machine) SetAnimationID(id uint16) {
	for i, s := range m.Sequences {
		if s.ID == id {
			m.SetAnimationIndex(i)
			return
		}
	}
}

// SetAnimationIndex resets both states to index i and clears the blend.
func (m *Machine) SetAnimationIndex(i int) {
	m.Current = AnimationState{SequenceIndex: i, MainVariation: i}
	m.Next = nil
	m.BlendFactor = 1.0
}

func (m *Machine) currentSeq() (Sequence, bool) {
	if m.Current.SequenceIndex < 0 || m.Current.SequenceIndex >= len(m.Sequences) {
		return Sequence{}, false
	}
	return m.Sequences[m.Current.SequenceIndex], true
}

// Update advances playback by dtMs per the five steps of §4.11.
func (m *Machine) Update(dtMs uint32) {
	// Step 1: advance clocks.
	m.Current.TimeMs += dtMs
	for i := range m.GlobalSequences {
		gs := &m.GlobalSequences[i]
		if gs.DurationMs == 0 {
			continue
		}
		gs.TimeMs = (gs.TimeMs + dtMs) % gs.DurationMs
	}

	seq, ok := m.currentSeq()
	if !ok {
		return
	}

	// Step 2/3: pick or copy a next state.
	if m.Next == nil {
		main, mainOK := m.mainVariationSeq()
		if mainOK && main.VariationNext > -1 && m.Current.RepeatTimes <= 0 {
			m.pickNextVariation()
		} else if m.Current.RepeatTimes > 0 {
			next := m.Current
			next.RepeatTimes--
			m.Next = &next
		}
	}

	// Step 4: compute blend factor and next's local time.
	if m.Next != nil {
		nextSeq, nextOK := m.sequenceAt(m.Next.SequenceIndex)
		remaining := int64(seq.DurationMs) - int64(m.Current.TimeMs)
		if nextOK && seq.BlendTimeMs > 0 && remaining >= 0 && uint32(remaining) < seq.BlendTimeMs {
			b := seq.BlendTimeMs
			m.BlendFactor = float32(remaining) / float32(b)
			if nextSeq.DurationMs > 0 {
				m.Next.TimeMs = (b - uint32(remaining)) % nextSeq.DurationMs
			} else {
				m.Next.TimeMs = 0
			}
		} else {
			m.BlendFactor = 1.0
		}
	} else {
		m.BlendFactor = 1.0
	}

	// Step 5: promote next when current has finished.
	if m.Current.TimeMs >= seq.DurationMs {
		if m.Next != nil {
			resolved := resolveAlias(m.Sequences, m.Next.SequenceIndex)
			promoted := *m.Next
			promoted.SequenceIndex = resolved
			m.Current = promoted
			m.Next = nil
			m.BlendFactor = 1.0
		} else if seq.DurationMs > 0 {
			m.Current.TimeMs %= seq.DurationMs
		}
	}
}

func (m *Machine) sequenceAt(i int) (Sequence, bool) {
	if i < 0 || i >= len(m.Sequences) {
		return Sequence{}, false
	}
	return m.Sequences[i], true
}

func (m *Machine) mainVariationSeq() (Sequence, bool) {
	return m.sequenceAt(m.Current.MainVariation)
}

// pickNextVariation walks the variation chain rooted at the current main
// variation, weighting by frequency, per §4.11 step 2.
func (m *Machine) pickNextVariation() {
	main, ok := m.mainVariationSeq()
	if !ok {
		return
	}

	p := m.rng.f32() * 0x7FFF

	var cumulative float32
	chosen := m.Current.MainVariation
	idx := m.Current.MainVariation
	for {
		s, sOk := m.sequenceAt(idx)
		if !sOk {
			break
		}
		cumulative += float32(s.Frequency)
		if cumulative >= p {
			chosen = idx
			break
		}
		if s.VariationNext < 0 {
			chosen = idx
			break
		}
		idx = int(s.VariationNext)
		if idx == m.Current.MainVariation {
			break // avoid looping forever on a cyclic chain
		}
	}

	// Never pick the current sequence if another option exists.
	if chosen == m.Current.SequenceIndex {
		if alt, altOk := m.sequenceAt(int(main.VariationNext)); altOk && main.VariationNext > -1 {
			_ = alt
			chosen = int(main.VariationNext)
		}
	}

	chosenSeq, _ := m.sequenceAt(chosen)
	repeatSpan := chosenSeq.ReplayMax - chosenSeq.ReplayMin
	repeat := chosenSeq.ReplayMin
	if repeatSpan > 0 {
		repeat += uint32(m.rng.f32() * float32(repeatSpan))
	}

	next := AnimationState{
		SequenceIndex: chosen,
		MainVariation: m.Current.MainVariation,
		RepeatTimes:   int32(repeat),
	}
	m.Next = &next
}

func lerpVec3(a, b Vec3, t float32) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// globalTimeFor returns the current time of global sequence globalSeq, or
// 0 when the index is out of range (a track with no global sequence).
func (m *Machine) globalTimeFor(globalSeq int) uint32 {
	if globalSeq < 0 || globalSeq >= len(m.GlobalSequences) {
		return 0
	}
	return m.GlobalSequences[globalSeq].TimeMs
}

// GetBoneTranslation blends the interpolated translation of bone i
// between Current and Next using BlendFactor (§4.11 sampling rule).
func (m *Machine) GetBoneTranslation(i int) Vec3 {
	if i < 0 || i >= len(m.Bones) {
		return identityVec3
	}
	tr := m.Bones[i].Translation
	cur := tr.Sample(m.Current.SequenceIndex, m.Current.TimeMs, m.globalTimeFor(tr.GlobalSequence))
	if m.Next == nil || m.BlendFactor >= 1.0 {
		return cur
	}
	next := tr.Sample(m.Next.SequenceIndex, m.Next.TimeMs, m.globalTimeFor(tr.GlobalSequence))
	return lerpVec3(next, cur, m.BlendFactor)
}

// GetBoneRotation blends via slerp between Current and Next. An empty
// track samples as the zero quaternion, which is reported as identity.
func (m *Machine) GetBoneRotation(i int) Quat {
	if i < 0 || i >= len(m.Bones) {
		return identityQuat
	}
	tr := m.Bones[i].Rotation
	cur := tr.Sample(m.Current.SequenceIndex, m.Current.TimeMs, m.globalTimeFor(tr.GlobalSequence))
	if cur == (Quat{}) {
		cur = identityQuat
	}
	if m.Next == nil || m.BlendFactor >= 1.0 {
		return cur
	}
	next := tr.Sample(m.Next.SequenceIndex, m.Next.TimeMs, m.globalTimeFor(tr.GlobalSequence))
	if next == (Quat{}) {
		next = identityQuat
	}
	return slerp(next, cur, m.BlendFactor)
}

// GetBoneScale blends the interpolated scale of bone i.
func (m *Machine) GetBoneScale(i int) Vec3 {
	if i < 0 || i >= len(m.Bones) {
		return oneVec3
	}
	tr := m.Bones[i].Scale
	cur := tr.Sample(m.Current.SequenceIndex, m.Current.TimeMs, m.globalTimeFor(tr.GlobalSequence))
	if m.Next == nil || m.BlendFactor >= 1.0 {
		return cur
	}
	next := tr.Sample(m.Next.SequenceIndex, m.Next.TimeMs, m.globalTimeFor(tr.GlobalSequence))
	return lerpVec3(next, cur, m.BlendFactor)
}
