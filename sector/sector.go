// Package sector implements the per-file sector table: splitting a stored
// file into fixed-size sectors, each independently compressed and
// optionally encrypted, with an optional parallel CRC table for advisory
// integrity checks.
package sector

import (
	"encoding/binary"
	"fmt"

	"github.com/wowemulation-dev/go-warcraft/codec"
	"github.com/wowemulation-dev/go-warcraft/crypto"
)

// Error reports a sector-layer failure: a bad offset table, a CRC
// mismatch collected for reporting, or a codec failure from a sector.
type Error struct {
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("sector: %s", e.Detail) }

// Reader abstracts the random-access read the sector layer needs from the
// underlying archive stream; it holds no locks of its own (see §4.3/§5).
type Reader interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Params describes how to read one file's sectors.
type Params struct {
	BaseOffset       int64 // file-relative base, i.e. the block's file_pos
	CompressedSize   uint32
	UncompressedSize uint32
	SectorSize       uint32
	SingleUnit       bool
	Encrypted        bool
	ImplodeOnly      bool
	HasSectorCRC     bool
	FileKey          uint32 // base key; per-sector key is FileKey + i
}

// CRCReport collects per-sector CRC mismatches. They are advisory per
// §4.3/§7 unless the caller treats a non-empty report as fatal (Strict
// mode in the validator framework).
type CRCReport struct {
	MismatchedSectors []int
}

func (r *CRCReport) OK() bool { return len(r.MismatchedSectors) == 0 }

// sectorCount returns ceil(usize / sectorSize), or 1 for single-unit files.
func sectorCount(p Params) int {
	if p.SingleUnit {
		return 1
	}
	if p.SectorSize == 0 {
		return 1
	}
	return int((p.UncompressedSize + p.SectorSize - 1) / p.SectorSize)
}

// ReadFile reads and decodes an entire file's sectors, returning its
// decoded bytes and a CRC report (empty/OK if HasSectorCRC is false).
func ReadFile(r Reader, p Params) ([]byte, *CRCReport, error) {
	report := &CRCReport{}

	if p.SingleUnit {
		buf := make([]byte, p.CompressedSize)
		if _, err := r.ReadAt(buf, p.BaseOffset); err != nil {
			return nil, nil, &Error{Detail: fmt.Sprintf("reading single-unit payload: %v", err)}
		}
		if p.Encrypted {
			decryptInPlace(buf, p.FileKey)
		}
		out, err := codec.DecodeSector(buf, int(p.UncompressedSize), p.ImplodeOnly)
		if err != nil {
			return nil, nil, err
		}
		return out, report, nil
	}

	n := sectorCount(p)
	offsets, err := readSectorOffsetTable(r, p, n)
	if err != nil {
		return nil, nil, err
	}

	var crcs []uint32
	crcTableOffset := p.BaseOffset + int64(n+1)*4
	if p.HasSectorCRC {
		crcs, err = readSectorCRCTable(r, crcTableOffset, n)
		if err != nil {
			return nil, nil, err
		}
	}

	out := make([]byte, 0, p.UncompressedSize)
	for i := 0; i < n; i++ {
		start := p.BaseOffset + int64(offsets[i])
		size := int(offsets[i+1] - offsets[i])
		if size < 0 {
			return nil, nil, &Error{Detail: fmt.Sprintf("sector %d has negative size", i)}
		}
		buf := make([]byte, size)
		if _, err := r.ReadAt(buf, start); err != nil {
			return nil, nil, &Error{Detail: fmt.Sprintf("reading sector %d: %v", i, err)}
		}

		if p.HasSectorCRC && crcs != nil {
			if crc32IEEE(buf) != crcs[i] {
				report.MismatchedSectors = append(report.MismatchedSectors, i)
			}
		}

		if p.Encrypted {
			decryptInPlace(buf, p.FileKey+uint32(i))
		}

		unpackedSize := int(p.SectorSize)
		if i == n-1 {
			unpackedSize = int(p.UncompressedSize) - i*int(p.SectorSize)
		}

		dec, err := codec.DecodeSector(buf, unpackedSize, p.ImplodeOnly)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, dec...)
	}
	return out, report, nil
}

func readSectorOffsetTable(r Reader, p Params, n int) ([]uint32, error) {
	buf := make([]byte, (n+1)*4)
	if _, err := r.ReadAt(buf, p.BaseOffset); err != nil {
		return nil, &Error{Detail: fmt.Sprintf("reading sector offset table: %v", err)}
	}
	if p.Encrypted {
		// The sector offset table is encrypted with key-1, per §3.
		decryptInPlace(buf, p.FileKey-1)
	}

	offsets := make([]uint32, n+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, &Error{Detail: fmt.Sprintf("sector offsets not monotonically non-decreasing at index %d", i)}
		}
	}
	if offsets[len(offsets)-1] != p.CompressedSize {
		return nil, &Error{Detail: "final sector offset does not equal compressed size"}
	}
	return offsets, nil
}

func readSectorCRCTable(r Reader, off int64, n int) ([]uint32, error) {
	buf := make([]byte, n*4)
	if _, err := r.ReadAt(buf, off); err != nil {
		// Per §4.3 the CRC table is optional/advisory; a short read just
		// means no CRCs are available to check against.
		return nil, nil
	}
	crcs := make([]uint32, n)
	for i := range crcs {
		crcs[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return crcs, nil
}

func decryptInPlace(buf []byte, key uint32) {
	// Only whole 32-bit words are decrypted: a sector whose stored length
	// is not a multiple of 4 keeps its trailing 1-3 bytes as stored, which
	// is how the archive builder encrypts them.
	n := len(buf) - len(buf)%4
	crypto.Decrypt(buf[:n], key)
}
