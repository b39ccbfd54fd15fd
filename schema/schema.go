// Package schema infers a field-level layout for tabular record data
// (fixed-size rows of raw u32 slots, plus a shared variable-length string
// block) without any format-specific schema description, by probing
// sampled values (§4.15).
package schema

import (
	"math"
	"unicode/utf8"
)

// FieldType is the inferred storage type of one schema field.
type FieldType int

const (
	TypeBool FieldType = iota
	TypeString
	TypeFloat32
	TypeUInt32
	TypeInt32
)

func (t FieldType) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	case TypeFloat32:
		return "Float32"
	case TypeUInt32:
		return "UInt32"
	case TypeInt32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// Field is one inferred schema field, which may span several raw u32
// slots (an array) or all nine slots of a localized string block.
type Field struct {
	Type        FieldType
	SlotOffset  int
	SlotCount   int // 1 for a scalar, k for a detected array, 9 for a locstring
	IsArray     bool
	IsLocstring bool
	IsKey       bool
}

// Header describes a record table's declared dimensions.
type Header struct {
	RecordSize      uint32 // declared bytes per record
	RecordCount     uint32
	FieldCount      uint32 // declared raw u32 slots per record
	StringBlockSize uint32
}

// Schema is the full inferred field layout for a record table.
type Schema struct {
	Fields []Field
}

// Result carries the inferred schema plus the validation findings from
// step 5.
type Result struct {
	Schema *Schema
	Valid  bool
	Reason string
}

const maxLocstringStrings = 8
const locstringRunLen = maxLocstringStrings + 1

// Infer builds a Schema from up to maxRecords sampled rows of raw u32
// slots, consulting stringBlock to test string-offset plausibility.
func Infer(header Header, records [][]uint32, stringBlock []byte, maxRecords int) (*Result, error) {
	if maxRecords > 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}
	fieldCount := int(header.FieldCount)
	if fieldCount == 0 && len(records) > 0 {
		fieldCount = len(records[0])
	}

	probed := make([]FieldType, fieldCount)
	for f := 0; f < fieldCount; f++ {
		probed[f] = probeField(records, f, stringBlock)
	}

	fields := buildFields(probed, records, stringBlock)
	detectKey(fields, records)

	schema := &Schema{Fields: fields}
	valid, reason := validate(header, schema)
	return &Result{Schema: schema, Valid: valid, Reason: reason}, nil
}

// probeField classifies one raw field slot across every sampled record,
// per §4.15 step 1.
func probeField(records [][]uint32, field int, stringBlock []byte) FieldType {
	if len(records) == 0 {
		return TypeUInt32
	}

	allBool := true
	allString := true
	allFloat := true
	anyOverflowsI32 := false

	for _, rec := range records {
		if field >= len(rec) {
			return TypeUInt32
		}
		v := rec[field]

		if v != 0 && v != 1 {
			allBool = false
		}
		if !looksLikeStringOffset(v, stringBlock) {
			allString = false
		}
		if !looksLikeFloat(v) {
			allFloat = false
		}
		if v > math.MaxInt32 {
			anyOverflowsI32 = true
		}
	}

	switch {
	case allBool:
		return TypeBool
	case allString:
		return TypeString
	case allFloat:
		return TypeFloat32
	case anyOverflowsI32:
		return TypeUInt32
	default:
		return TypeInt32
	}
}

func looksLikeStringOffset(v uint32, stringBlock []byte) bool {
	if len(stringBlock) == 0 {
		return false
	}
	if v == 0 {
		return true // empty string, universally reclassifiable
	}
	if int(v) >= len(stringBlock) {
		return false
	}
	end := int(v)
	for end < len(stringBlock) && stringBlock[end] != 0 {
		end++
	}
	return utf8.Valid(stringBlock[v:end])
}

func looksLikeFloat(v uint32) bool {
	f := math.Float32frombits(v)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return false
	}
	abs := math.Abs(float64(f))
	if abs == 0 {
		return false
	}
	return abs >= 1e-6 && abs <= 1e7
}

// buildFields scans probed types left to right, first peeling off
// locstring runs (step 3), then collapsing remaining uniform-type runs
// into arrays (step 2), per §4.15.
func buildFields(probed []FieldType, records [][]uint32, stringBlock []byte) []Field {
	var fields []Field
	i := 0
	for i < len(probed) {
		if isLocstringRun(probed, i) {
			fields = append(fields, Field{
				Type:        TypeString,
				SlotOffset:  i,
				SlotCount:   locstringRunLen,
				IsLocstring: true,
			})
			i += locstringRunLen
			continue
		}

		segEnd := nextLocstringOrEnd(probed, i)
		if k, ok := detectArrayRun(probed[i:segEnd]); ok {
			for j := i; j < segEnd; j += k {
				fields = append(fields, Field{
					Type:       probed[j],
					SlotOffset: j,
					SlotCount:  k,
					IsArray:    k > 1,
				})
			}
		} else {
			for j := i; j < segEnd; j++ {
				fields = append(fields, Field{Type: probed[j], SlotOffset: j, SlotCount: 1})
			}
		}
		i = segEnd
	}
	return fields
}

// isLocstringRun reports whether a run of locstringRunLen fields starting
// at i is eight strings (or zero-valued fields reclassifiable as empty
// strings; such fields probe as Bool) followed by one integer flags field.
func isLocstringRun(probed []FieldType, i int) bool {
	if i+locstringRunLen > len(probed) {
		return false
	}
	for k := 0; k < maxLocstringStrings; k++ {
		t := probed[i+k]
		if t != TypeString && t != TypeBool {
			return false
		}
	}
	flags := probed[i+maxLocstringStrings]
	return flags == TypeUInt32 || flags == TypeInt32 || flags == TypeBool
}

func nextLocstringOrEnd(probed []FieldType, from int) int {
	for j := from; j+locstringRunLen <= len(probed); j++ {
		if isLocstringRun(probed, j) {
			return j
		}
	}
	return len(probed)
}

// detectArrayRun tries k from 10 down to 2, per §4.15 step 2: the segment
// must divide evenly by k, and every k-run within it must share a single
// uniform type.
func detectArrayRun(seg []FieldType) (int, bool) {
	for k := 10; k >= 2; k-- {
		if len(seg)%k != 0 {
			continue
		}
		uniform := true
		for base := 0; base < len(seg) && uniform; base += k {
			want := seg[base]
			for j := 1; j < k; j++ {
				if seg[base+j] != want {
					uniform = false
					break
				}
			}
		}
		if uniform {
			return k, true
		}
	}
	return 0, false
}

// detectKey marks the first scalar field whose sampled values are
// unique, non-zero, and either sequential or dense, per §4.15 step 4.
func detectKey(fields []Field, records [][]uint32) {
	if len(records) == 0 {
		return
	}
	for i := range fields {
		f := &fields[i]
		if f.IsArray || f.IsLocstring {
			continue
		}
		if f.Type == TypeString || f.Type == TypeFloat32 {
			continue
		}
		if isKeyCandidate(f.SlotOffset, records) {
			f.IsKey = true
			return
		}
	}
}

func isKeyCandidate(slot int, records [][]uint32) bool {
	seen := make(map[uint32]bool, len(records))
	var minV, maxV uint32
	first := true
	for _, rec := range records {
		if slot >= len(rec) {
			return false
		}
		v := rec[slot]
		if v == 0 {
			return false
		}
		if seen[v] {
			return false
		}
		seen[v] = true
		if first {
			minV, maxV = v, v
			first = false
		} else {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	span := maxV - minV + 1
	sequential := uint64(span) == uint64(len(records))
	density := float64(len(records)) / float64(span)
	return sequential || density > 0.2
}

// validate checks the inferred schema's recomputed raw slot count and
// byte size against the header's declared values, per §4.15 step 5.
func validate(header Header, schema *Schema) (bool, string) {
	rawSlots := 0
	for _, f := range schema.Fields {
		rawSlots += f.SlotCount
	}
	if header.FieldCount != 0 && uint32(rawSlots) != header.FieldCount {
		return false, "field count after collapse does not match declared field count"
	}
	byteSize := uint32(rawSlots * 4)
	if header.RecordSize != 0 && byteSize != header.RecordSize {
		return false, "computed record size does not match declared record size"
	}
	return true, ""
}
