package mpq

import "encoding/binary"

// Attributes bit flags, naming which parallel arrays are present in the
// "(attributes)" pseudo-file (§4.4).
const (
	AttrCRC32    uint32 = 0x00000001
	AttrFileTime uint32 = 0x00000002
	AttrMD5      uint32 = 0x00000004
)

// Attributes is the parsed "(attributes)" pseudo-file: per-block-index
// parallel arrays of optional metadata.
type Attributes struct {
	Version uint32
	Flags   uint32

	CRC32    []uint32  // len == block table entry count, if AttrCRC32 set
	FileTime []uint64  // FILETIME values, if AttrFileTime set
	MD5      [][16]byte // if AttrMD5 set
}

// Attributes returns the parsed "(attributes)" pseudo-file, or nil if the
// archive doesn't carry one.
func (a *Archive) Attributes() (*Attributes, error) {
	if a.attributes != nil {
		return a.attributes, nil
	}
	raw, err := a.ReadFile(attributesName, DefaultLocale)
	if err != nil {
		if ae, ok := err.(*Error); ok && ae.Kind == FileNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) < 8 {
		return nil, newErr(InvalidFormat, "attributes file too short")
	}

	attrs := &Attributes{
		Version: binary.LittleEndian.Uint32(raw[0:4]),
		Flags:   binary.LittleEndian.Uint32(raw[4:8]),
	}
	n := int(a.header.BlockTableEntries)
	off := 8

	if attrs.Flags&AttrCRC32 != 0 {
		need := n * 4
		if off+need > len(raw) {
			return nil, newErr(InvalidFormat, "attributes CRC32 array truncated")
		}
		attrs.CRC32 = make([]uint32, n)
		for i := 0; i < n; i++ {
			attrs.CRC32[i] = binary.LittleEndian.Uint32(raw[off+i*4:])
		}
		off += need
	}
	if attrs.Flags&AttrFileTime != 0 {
		need := n * 8
		if off+need > len(raw) {
			return nil, newErr(InvalidFormat, "attributes FILETIME array truncated")
		}
		attrs.FileTime = make([]uint64, n)
		for i := 0; i < n; i++ {
			attrs.FileTime[i] = binary.LittleEndian.Uint64(raw[off+i*8:])
		}
		off += need
	}
	if attrs.Flags&AttrMD5 != 0 {
		need := n * 16
		if off+need > len(raw) {
			return nil, newErr(InvalidFormat, "attributes MD5 array truncated")
		}
		attrs.MD5 = make([][16]byte, n)
		for i := 0; i < n; i++ {
			copy(attrs.MD5[i][:], raw[off+i*16:off+i*16+16])
		}
		off += need
	}

	a.attributes = attrs
	return attrs, nil
}

// ExtractAll reads every named file from the archive (via ListAll) and
// returns them keyed by name; a convenience the original CLI's extract
// subcommand needed as a library primitive (see SPEC_FULL.md).
func (a *Archive) ExtractAll() (map[string][]byte, error) {
	entries, err := a.ListAll()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := a.readBlock(e.Name, a.blockTable[e.BlockTableIndex])
		if err != nil {
			return nil, err
		}
		out[e.Name] = data
	}
	return out, nil
}
