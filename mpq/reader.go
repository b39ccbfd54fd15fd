// Package mpq implements the archive container engine: a format-versioned
// (V1-V4) indexed container with per-file compression, filename-keyed
// encryption, sector-based I/O, and multi-archive patch chains. It keeps
// the shape of its teacher, icza/mpq — struct-field-by-field binary
// parsing, a closable handle returned from a constructor pair, manual
// open-addressing probes over the hash table — generalized across all
// four on-disk generations and extended with a builder, rebuilder, and
// comparator.
package mpq

import (
	"crypto/md5"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/wowemulation-dev/go-warcraft/codec"
	"github.com/wowemulation-dev/go-warcraft/crypto"
	"github.com/wowemulation-dev/go-warcraft/sector"
)

// Archive is an opened, immutable MPQ-family container. Once Opened it
// serves read operations concurrently; the only exclusive section is the
// duration of a single physical read against the backing stream (§4.4,
// §5).
type Archive struct {
	input  io.ReaderAt
	closer io.Closer

	header     Header
	hashTable  []HashEntry
	blockTable []BlockEntry

	// blockEntryIndices maps a "file index" (0-based, in block-table
	// order, skipping non-file blocks) back to its block-table index, the
	// same derived structure the teacher builds in diveIn().
	blockEntryIndices []int
	filesCount        uint32

	limits SecurityLimits

	listfile      []string
	listfileKnown bool
	attributes    *Attributes
}

// Entry describes one file as returned by List/ListAll.
type Entry struct {
	Name            string // empty if synthesized (no listfile name)
	HashTableIndex  int
	BlockTableIndex int
	Locale          uint16
	CompressedSize  uint32
	UncompressedSize uint32
	Flags           uint32
}

// ArchiveInfo summarizes an opened archive for inspection/tooling.
type ArchiveInfo struct {
	Version      Version
	SectorSize   uint32
	FileCount    uint32
	ArchiveBytes uint64
}

// OpenFile opens the named file and parses it as an archive. The returned
// Archive must be closed with Close.
func OpenFile(name string) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, wrapErr(IoError, "opening archive file", err)
	}
	a, err := Open(f, DefaultSecurityLimits)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// Open parses input as an archive using limits to bound resource
// consumption. input must support ReadAt independent of any other
// concurrent reader (callers serialize access to a non-thread-safe stream
// themselves, per §5).
func Open(input io.ReaderAt, limits SecurityLimits) (*Archive, error) {
	a := &Archive{input: input, limits: limits}

	if err := a.locateAndParseHeader(); err != nil {
		return nil, err
	}
	if err := a.loadTables(); err != nil {
		return nil, err
	}
	a.indexFiles()

	return a, nil
}

func (a *Archive) readAt(p []byte, off int64) error {
	_, err := a.input.ReadAt(p, off)
	if err != nil {
		return wrapErr(IoError, "reading archive stream", err)
	}
	return nil
}

func (a *Archive) locateAndParseHeader() error {
	var magic [4]byte
	for pos := int64(0); pos < headerScanLimit; pos += headerScanStride {
		if err := a.readAt(magic[:], pos); err != nil {
			return newErr(InvalidFormat, "no archive header found before end of stream")
		}
		if magic == signedMagic {
			continue // signed-companion shunt: skip per §6.1
		}
		if magic != archiveMagic {
			continue
		}
		h, err := a.parseHeaderAt(pos)
		if err != nil {
			return err
		}
		a.header = h
		return nil
	}
	return newErr(InvalidFormat, "no archive header found within the first 512MB")
}

func (a *Archive) parseHeaderAt(pos int64) (Header, error) {
	var h Header
	h.archiveBaseOffset = pos

	base := make([]byte, baseHeaderSize)
	if err := a.readAt(base, pos); err != nil {
		return h, err
	}
	h.HeaderSize = binary.LittleEndian.Uint32(base[4:8])
	archiveSize32 := binary.LittleEndian.Uint32(base[8:12])
	wireVersion := binary.LittleEndian.Uint16(base[12:14])
	h.BlockSizeShift = binary.LittleEndian.Uint16(base[14:16])
	hashOffLow := binary.LittleEndian.Uint32(base[16:20])
	blockOffLow := binary.LittleEndian.Uint32(base[20:24])
	h.HashTableEntries = binary.LittleEndian.Uint32(base[24:28])
	h.BlockTableEntries = binary.LittleEndian.Uint32(base[28:32])

	version, ok := versionFromWire(wireVersion)
	if !ok {
		return h, newErr(UnsupportedFeature, "unrecognized format version")
	}
	h.Version = version
	h.ArchiveSize = uint64(archiveSize32)
	h.SectorSize = 512 << h.BlockSizeShift
	h.HashTableOffset = uint64(hashOffLow)
	h.BlockTableOffset = uint64(blockOffLow)

	if version >= V2 {
		extra := make([]byte, v2ExtraSize)
		if err := a.readAt(extra, pos+baseHeaderSize); err != nil {
			return h, err
		}
		h.HiBlockTableOffset = binary.LittleEndian.Uint64(extra[0:8])
		h.HashTableOffsetHi = binary.LittleEndian.Uint16(extra[8:10])
		h.BlockTableOffsetHi = binary.LittleEndian.Uint16(extra[10:12])
		h.ArchiveSize = binary.LittleEndian.Uint64(extra[12:20])
		h.HashTableOffset |= uint64(h.HashTableOffsetHi) << 32
		h.BlockTableOffset |= uint64(h.BlockTableOffsetHi) << 32
	}

	if version >= V3 {
		extra := make([]byte, v3ExtraSize)
		if err := a.readAt(extra, pos+baseHeaderSize+v2ExtraSize); err != nil {
			return h, err
		}
		h.BETTableOffset = binary.LittleEndian.Uint64(extra[0:8])
		h.HETTableOffset = binary.LittleEndian.Uint64(extra[8:16])
		off := 16
		for _, dst := range []*[16]byte{
			&h.MD5BlockTable, &h.MD5HashTable, &h.MD5HiBlockTable,
			&h.MD5BETTable, &h.MD5HETTable, &h.MD5HeaderPrefix,
		} {
			copy(dst[:], extra[off:off+16])
			off += 16
		}
	}

	if h.HashTableEntries == 0 || h.HashTableEntries&(h.HashTableEntries-1) != 0 {
		if h.Version < V3 {
			return h, newErr(InvalidFormat, "hash table entry count is not a power of two")
		}
	}
	if err := a.limits.checkArchiveSize(int64(h.ArchiveSize)); err != nil {
		return h, err
	}
	if err := a.limits.checkFileCount(h.BlockTableEntries); err != nil {
		return h, err
	}

	return h, nil
}

func (a *Archive) loadTables() error {
	h := a.header
	base := h.archiveBaseOffset

	hashBytes := int64(h.HashTableEntries) * 16
	if h.Version >= V4 && h.BlockTableOffset != h.HashTableOffset+uint64(hashBytes) {
		return newErr(UnsupportedFeature, "V4 compressed hash-table storage is not implemented")
	}
	hashBuf := make([]byte, hashBytes)
	if err := a.readAt(hashBuf, base+int64(h.HashTableOffset)); err != nil {
		return err
	}
	hashBufOnDisk := md5.Sum(hashBuf)
	crypto.Decrypt(hashBuf, crypto.HashTableKey)

	a.hashTable = make([]HashEntry, h.HashTableEntries)
	for i := range a.hashTable {
		off := i * 16
		a.hashTable[i] = HashEntry{
			HashA:      binary.LittleEndian.Uint32(hashBuf[off:]),
			HashB:      binary.LittleEndian.Uint32(hashBuf[off+4:]),
			Locale:     binary.LittleEndian.Uint16(hashBuf[off+8:]),
			Platform:   hashBuf[off+10],
			BlockIndex: binary.LittleEndian.Uint32(hashBuf[off+12:]),
		}
	}

	blockBytes := int64(h.BlockTableEntries) * 16
	blockBuf := make([]byte, blockBytes)
	if err := a.readAt(blockBuf, base+int64(h.BlockTableOffset)); err != nil {
		return err
	}
	blockBufOnDisk := md5.Sum(blockBuf)
	crypto.Decrypt(blockBuf, crypto.BlockTableKey)

	if h.Version >= V3 {
		if err := a.verifyV3Footer(hashBufOnDisk, blockBufOnDisk); err != nil {
			return err
		}
	}

	a.blockTable = make([]BlockEntry, h.BlockTableEntries)
	for i := range a.blockTable {
		off := i * 16
		a.blockTable[i] = BlockEntry{
			FilePos:          binary.LittleEndian.Uint32(blockBuf[off:]),
			CompressedSize:   binary.LittleEndian.Uint32(blockBuf[off+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(blockBuf[off+8:]),
			Flags:            binary.LittleEndian.Uint32(blockBuf[off+12:]),
		}
	}

	if h.Version >= V2 && h.HiBlockTableOffset != 0 {
		hiBuf := make([]byte, int64(h.BlockTableEntries)*2)
		if err := a.readAt(hiBuf, base+int64(h.HiBlockTableOffset)); err != nil {
			return err
		}
		for i := range a.blockTable {
			a.blockTable[i].FilePosHigh = binary.LittleEndian.Uint16(hiBuf[i*2:])
		}
	}

	return nil
}

// verifyV3Footer checks the V3+ MD5 footer (§6.1) against the on-disk
// (still-encrypted) hash and block table bytes and the header prefix.
// HET/BET and the hi-block table are not produced by this package's
// Builder, so their digests aren't verified here; a reader encountering
// an archive that does carry them still resolves files through the
// classical hash/block table pair, which §3's invariant 1 guarantees is
// always present.
func (a *Archive) verifyV3Footer(hashBufMD5, blockBufMD5 [16]byte) error {
	h := a.header
	if hashBufMD5 != h.MD5HashTable {
		return newErr(ChecksumMismatch, "V3 hash table MD5 does not match header footer")
	}
	if blockBufMD5 != h.MD5BlockTable {
		return newErr(ChecksumMismatch, "V3 block table MD5 does not match header footer")
	}

	const prefixLen = baseHeaderSize + v2ExtraSize + 16 // through the HET table offset
	prefix := make([]byte, prefixLen)
	if err := a.readAt(prefix, h.archiveBaseOffset); err != nil {
		return err
	}
	if md5.Sum(prefix) != h.MD5HeaderPrefix {
		return newErr(ChecksumMismatch, "V3 header prefix MD5 does not match header footer")
	}
	return nil
}

// indexFiles builds the derived file index: block-table order, skipping
// non-file blocks, the same structure the teacher's diveIn() computes.
func (a *Archive) indexFiles() {
	a.blockEntryIndices = make([]int, len(a.blockTable))
	a.filesCount = 0
	for i, be := range a.blockTable {
		if be.present() {
			a.blockEntryIndices[a.filesCount] = i
			a.filesCount++
		}
	}
	a.blockEntryIndices = a.blockEntryIndices[:a.filesCount]
}

// Close releases the archive's resources, if it owns any (i.e. it was
// opened with OpenFile).
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// GetInfo returns a summary of the opened archive.
func (a *Archive) GetInfo() ArchiveInfo {
	return ArchiveInfo{
		Version:      a.header.Version,
		SectorSize:   a.header.SectorSize,
		FileCount:    a.filesCount,
		ArchiveBytes: a.header.ArchiveSize,
	}
}

// normalizeName applies the case-insensitive, slash-normalized comparison
// convention of §6.3.
func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "\\")
	return strings.ToUpper(name)
}

// findHashEntry probes the hash table per §3/§4.4: start at hash_A(name)
// mod tableSize, advance forward with wraparound, a "never used" sentinel
// terminates the search, a "deleted" entry does not. An entry whose
// locale equals locale wins; failing that, a non-default locale falls
// back to the DefaultLocale entry, and DefaultLocale falls back to the
// first name match of any locale.
func (a *Archive) findHashEntry(name string, locale uint16) (int, *HashEntry, error) {
	if len(a.hashTable) == 0 {
		return -1, nil, nil
	}
	hashA, hashB := crypto.NameHashes(normalizeName(name))
	tableSize := uint32(len(a.hashTable))
	start := hashA & (tableSize - 1)

	var fallback = -1
	for step := uint32(0); step < tableSize; step++ {
		i := (start + step) % tableSize
		he := a.hashTable[i]
		if he.neverUsed() {
			break
		}
		if he.HashA != hashA || he.HashB != hashB {
			continue
		}
		if he.Locale == locale {
			idx := i
			e := he
			return int(idx), &e, nil
		}
		if locale == DefaultLocale && fallback == -1 {
			fallback = int(i)
		}
		if locale != DefaultLocale && he.Locale == DefaultLocale && fallback == -1 {
			fallback = int(i)
		}
	}
	if fallback != -1 {
		e := a.hashTable[fallback]
		return fallback, &e, nil
	}
	return -1, nil, nil
}

// Contains reports whether name exists in the archive under locale.
func (a *Archive) Contains(name string, locale uint16) bool {
	idx, he, _ := a.findHashEntry(name, locale)
	if idx == -1 || he == nil || he.deleted() {
		return false
	}
	return true
}

// BlockRef locates a resolved block for a named file.
type BlockRef struct {
	BlockIndex int
	Block      BlockEntry
}

// Find resolves name to its block entry, or (nil, nil) if absent.
func (a *Archive) Find(name string, locale uint16) (*BlockRef, error) {
	_, he, err := a.findHashEntry(name, locale)
	if err != nil {
		return nil, err
	}
	if he == nil || he.deleted() {
		return nil, nil
	}
	if he.BlockIndex >= uint32(len(a.blockTable)) {
		return nil, newErr(InvalidBounds, "hash entry block index out of range")
	}
	return &BlockRef{BlockIndex: int(he.BlockIndex), Block: a.blockTable[he.BlockIndex]}, nil
}

// ReadFile resolves name and streams its decoded bytes through the sector
// layer, applying the file key per §4.1.
func (a *Archive) ReadFile(name string, locale uint16) ([]byte, error) {
	ref, err := a.Find(name, locale)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, newErr(FileNotFound, name)
	}
	return a.readBlock(name, ref.Block)
}

func (a *Archive) readBlock(name string, be BlockEntry) ([]byte, error) {
	if !be.present() {
		return nil, newErr(FileNotFound, name)
	}
	if err := a.limits.checkDecompressedSize(int64(be.UncompressedSize)); err != nil {
		return nil, err
	}

	key := uint32(0)
	if be.encrypted() {
		flags := crypto.FileFlags(0)
		if be.Flags&BlockFlagKeyAdjusted != 0 {
			flags = crypto.FlagKeyAdjusted
		}
		key = crypto.KeyForFile(name, flags, be.FilePos, be.UncompressedSize)
	}

	params := sector.Params{
		BaseOffset:       a.header.archiveBaseOffset + be.offset(),
		CompressedSize:   be.CompressedSize,
		UncompressedSize: be.UncompressedSize,
		SectorSize:       a.header.SectorSize,
		SingleUnit:       be.singleUnit(),
		Encrypted:        be.encrypted(),
		ImplodeOnly:      be.implodeOnly(),
		HasSectorCRC:     be.hasSectorCRC(),
		FileKey:          key,
	}

	out, _, err := sector.ReadFile(readerAtAdapter{a.input}, params)
	if err != nil {
		return nil, wrapErr(CompressionError, "decoding file "+name, err)
	}
	return out, nil
}

// readerAtAdapter adapts io.ReaderAt to sector.Reader (identical
// signatures; kept distinct so the sector package doesn't need to import
// io directly for this one interface).
type readerAtAdapter struct{ r io.ReaderAt }

func (r readerAtAdapter) ReadAt(p []byte, off int64) (int, error) { return r.r.ReadAt(p, off) }
