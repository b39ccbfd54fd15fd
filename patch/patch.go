// Package patch implements the binary patch-file applier: whole-file COPY
// replacement and the bsdiff40-family BSD0 transform, each guarded by MD5
// verification of the base and result (§4.9).
package patch

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

// Error reports a patch-apply failure; Kind lets callers distinguish a
// structural problem from a checksum failure without string matching.
type Error struct {
	Kind   string
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("patch: %s: %s", e.Kind, e.Detail) }

func errf(kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// TransformType identifies the patch transform (§6.2).
type TransformType uint32

const (
	// TransformCOPY is a whole-file replacement.
	TransformCOPY TransformType = 0x59504F43 // 'COPY' LE
	// TransformBSD0 is a run-length-compressed bsdiff40 delta.
	TransformBSD0 TransformType = 0x30445342 // 'BSD0' LE
)

// Patch is a fully parsed patch file (§6.2): header sizes, MD5 checksums,
// transform type, and its raw (still RLE-compressed, for BSD0) payload.
type Patch struct {
	SizeBefore uint32
	SizeAfter  uint32
	MD5Before  [16]byte
	MD5After   [16]byte
	Transform  TransformType
	Payload    []byte
}

const (
	magicPTCH = 0x48435450
	magicMD5  = 0x5F35444D
	magicXFRM = 0x4D524658
)

// Parse reads a patch file's PTCH/MD5_/XFRM block structure (§6.2).
func Parse(raw []byte) (*Patch, error) {
	if len(raw) < 12 {
		return nil, errf("InvalidFormat", "patch file too short for header block")
	}
	if binary.LittleEndian.Uint32(raw[0:4]) != magicPTCH {
		return nil, errf("InvalidFormat", "missing PTCH magic")
	}
	if len(raw) < 16 {
		return nil, errf("InvalidFormat", "patch file too short for header block")
	}
	// raw[4:8] is the header size field; size_before/size_after are what
	// the applier needs from it.
	p := &Patch{}
	p.SizeBefore = binary.LittleEndian.Uint32(raw[8:12])
	p.SizeAfter = binary.LittleEndian.Uint32(raw[12:16])
	off := 16

	if len(raw) < off+8 {
		return nil, errf("InvalidFormat", "patch file too short for MD5 block header")
	}
	if binary.LittleEndian.Uint32(raw[off:off+4]) != magicMD5 {
		return nil, errf("InvalidFormat", "missing MD5_ magic")
	}
	off += 4
	md5BlockSize := binary.LittleEndian.Uint32(raw[off : off+4])
	off += 4
	if md5BlockSize != 40 {
		return nil, errf("InvalidFormat", "MD5_ block size must be 40")
	}
	if len(raw) < off+32 {
		return nil, errf("InvalidFormat", "patch file too short for MD5 values")
	}
	copy(p.MD5Before[:], raw[off:off+16])
	copy(p.MD5After[:], raw[off+16:off+32])
	off += 32

	if len(raw) < off+12 {
		return nil, errf("InvalidFormat", "patch file too short for transform block header")
	}
	if binary.LittleEndian.Uint32(raw[off:off+4]) != magicXFRM {
		return nil, errf("InvalidFormat", "missing XFRM magic")
	}
	off += 4
	xfrmSize := binary.LittleEndian.Uint32(raw[off : off+4])
	off += 4
	p.Transform = TransformType(binary.LittleEndian.Uint32(raw[off : off+4]))
	off += 4

	payloadLen := int(xfrmSize) - 4 // xfrmSize counts the type field plus payload
	if payloadLen < 0 || off+payloadLen > len(raw) {
		return nil, errf("InvalidFormat", "transform block payload truncated")
	}
	p.Payload = raw[off : off+payloadLen]

	return p, nil
}

// Apply verifies base against the patch's declared pre-image MD5, applies
// the transform, and verifies the result against the post-image MD5
// (§4.9 steps 1 and 4).
func Apply(p *Patch, base []byte) ([]byte, error) {
	if md5.Sum(base) != p.MD5Before {
		return nil, errf("ChecksumMismatch", "base MD5 does not match patch.md5_before")
	}

	var out []byte
	var err error
	switch p.Transform {
	case TransformCOPY:
		out, err = applyCopy(p, base)
	case TransformBSD0:
		out, err = applyBSD0(p, base)
	default:
		return nil, errf("InvalidFormat", fmt.Sprintf("unknown transform type %#x", uint32(p.Transform)))
	}
	if err != nil {
		return nil, err
	}

	if md5.Sum(out) != p.MD5After {
		return nil, errf("ChecksumMismatch", "result MD5 does not match patch.md5_after")
	}
	return out, nil
}

func applyCopy(p *Patch, base []byte) ([]byte, error) {
	if uint32(len(base)) != p.SizeBefore {
		return nil, errf("InvalidFormat", "base length does not match size_before")
	}
	if uint32(len(p.Payload)) != p.SizeAfter {
		return nil, errf("InvalidFormat", "COPY payload length does not match size_after")
	}
	out := make([]byte, len(p.Payload))
	copy(out, p.Payload)
	return out, nil
}
