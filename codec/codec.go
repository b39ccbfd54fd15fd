// Package codec implements the stateless, byte-in/byte-out compression
// codecs applied to archive sectors: HUFFMAN, ZLIB, PKWARE_IMPLODE, BZIP2,
// SPARSE, ADPCM_MONO, ADPCM_STEREO and LZMA, plus the chained-mask
// dispatcher that combines them in the fixed layering order the format
// requires.
package codec

import "fmt"

// Algorithm identifies one compression primitive.
type Algorithm byte

const (
	Huffman       Algorithm = 0x01
	ZLib          Algorithm = 0x02
	PKImplode     Algorithm = 0x08
	PKImplodeOnly Algorithm = 0x10 // legacy-only, never combined in a mask
	Bzip2         Algorithm = 0x10
	Sparse        Algorithm = 0x20
	ADPCMMono     Algorithm = 0x40
	ADPCMStereo   Algorithm = 0x80
	LZMA          Algorithm = 0x12
	// LZ4Extra is not part of the wire format's eight codecs; it's a
	// module-local ninth option occupying an otherwise-unused mask bit,
	// for callers who opt in explicitly (see lz4.go).
	LZ4Extra Algorithm = 0x04
)

// Mask bits as they appear in the leading sector byte. PKImplodeOnly and
// Bzip2 intentionally alias 0x10: a sector only ever carries one of them,
// disambiguated by whether the archive's legacy-implode block flag is set
// (see mpq.BlockFlagImplode), matching the single open question this
// format raises about overloaded bit values.
const (
	maskSparse  = 0x20
	maskHuffman = 0x01
	maskZLib    = 0x02
	maskPKWare  = 0x08
	maskBzip2   = 0x10
	maskLZMA    = 0x12
	maskADPCM1  = 0x40
	maskADPCM2  = 0x80
	maskLZ4     = 0x04
)

// Error is returned by a codec when it refuses to process its input:
// truncated data, an oversized claim, or a mask naming an algorithm this
// build does not implement.
type Error struct {
	Op     string
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("codec: %s: %s", e.Op, e.Detail) }

func errf(op, format string, args ...interface{}) error {
	return &Error{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// DecodeSector reverses the chained mask applied to a single sector's
// compressed bytes, per §4.2: a sector whose compressed length equals its
// uncompressed length carries no mask byte and is returned unmodified
// (after a length check). implodeOnly selects the legacy single-algorithm
// PKWARE path used when the archive's implode-only block flag is set,
// which likewise carries no mask byte.
func DecodeSector(compressed []byte, uncompressedSize int, implodeOnly bool) ([]byte, error) {
	if len(compressed) == uncompressedSize {
		out := make([]byte, uncompressedSize)
		copy(out, compressed)
		return out, nil
	}
	if len(compressed) > uncompressedSize {
		return nil, errf("decode", "compressed size %d exceeds uncompressed size %d", len(compressed), uncompressedSize)
	}
	if implodeOnly {
		return pkimplodeDecode(compressed, uncompressedSize)
	}
	if len(compressed) == 0 {
		return nil, errf("decode", "empty compressed sector")
	}

	mask := compressed[0]
	data := compressed[1:]

	// Reverse order: ADPCM -> (IMPLODE/ZLIB/BZIP2/LZMA) -> HUFFMAN -> SPARSE
	var err error
	if mask&maskADPCM2 != 0 {
		data, err = adpcmDecode(data, 2)
		if err != nil {
			return nil, err
		}
	} else if mask&maskADPCM1 != 0 {
		data, err = adpcmDecode(data, 1)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case mask&maskLZMA == maskLZMA:
		data, err = lzmaDecode(data)
	case mask&maskBzip2 != 0:
		data, err = bzip2Decode(data)
	case mask&maskZLib != 0:
		data, err = zlibDecode(data)
	case mask&maskPKWare != 0:
		data, err = pkimplodeDecode(data, -1)
	case mask&maskLZ4 != 0:
		data, err = lz4Decode(data)
	}
	if err != nil {
		return nil, err
	}

	if mask&maskHuffman != 0 {
		data, err = huffmanDecode(data)
		if err != nil {
			return nil, err
		}
	}

	if mask&maskSparse != 0 {
		data, err = sparseDecode(data, uncompressedSize)
		if err != nil {
			return nil, err
		}
	}

	if len(data) != uncompressedSize {
		return nil, errf("decode", "decoded length %d does not match declared size %d", len(data), uncompressedSize)
	}
	return data, nil
}

// EncodeOptions selects which algorithms EncodeSector applies, in the
// fixed layering order; zero value means "store uncompressed".
type EncodeOptions struct {
	Sparse      bool
	Huffman     bool
	Method      Algorithm // ZLib, Bzip2, PKImplode, or LZMA; 0 for none
	ADPCMLevel  int       // 1..5; 0 disables ADPCM
	ADPCMStereo bool
}

// EncodeSector applies opts' algorithms in order and prefixes the mask
// byte, unless the result would not be smaller than storing the sector
// raw, in which case it returns the raw bytes (caller stores with no mask,
// matching the "stored uncompressed" sector rule of §4.2).
func EncodeSector(raw []byte, opts EncodeOptions) ([]byte, byte, error) {
	data := raw
	var mask byte

	if opts.Sparse {
		enc, err := sparseEncode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskSparse
	}
	if opts.Huffman {
		enc, err := huffmanEncode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskHuffman
	}
	switch opts.Method {
	case ZLib:
		enc, err := zlibEncode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskZLib
	case Bzip2:
		enc, err := bzip2Encode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskBzip2
	case PKImplode:
		enc, err := pkimplodeEncode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskPKWare
	case LZMA:
		enc, err := lzmaEncode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskLZMA
	case LZ4Extra:
		enc, err := lz4Encode(data)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		mask |= maskLZ4
	}
	if opts.ADPCMLevel > 0 {
		ch := 1
		if opts.ADPCMStereo {
			ch = 2
		}
		enc, err := adpcmEncode(data, opts.ADPCMLevel, ch)
		if err != nil {
			return nil, 0, err
		}
		data = enc
		if ch == 2 {
			mask |= maskADPCM2
		} else {
			mask |= maskADPCM1
		}
	}

	if mask == 0 || len(data)+1 >= len(raw) {
		return raw, 0, nil
	}
	out := make([]byte, len(data)+1)
	out[0] = mask
	copy(out[1:], data)
	return out, mask, nil
}
