package anim

// Sequence describes one animation clip: an ID, duration, probabilistic
// selection weight among variations sharing that ID, repeat bounds, blend
// time, next-variation pointer, and alias target (§3).
type Sequence struct {
	ID            uint16
	DurationMs    uint32
	Frequency     uint16
	ReplayMin     uint32
	ReplayMax     uint32
	BlendTimeMs   uint32
	VariationNext int32 // -1 sentinel: no further variation
	IsAlias       bool
	AliasTarget   int
}

// resolveAlias follows Sequence.AliasTarget chains up to 100 hops,
// per §4.11 step 5.
func resolveAlias(sequences []Sequence, index int) int {
	const maxHops = 100
	for hop := 0; hop < maxHops; hop++ {
		if index < 0 || index >= len(sequences) {
			return index
		}
		seq := sequences[index]
		if !seq.IsAlias {
			return index
		}
		index = seq.AliasTarget
	}
	return index
}
