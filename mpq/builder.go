package mpq

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math/bits"
	"os"
	"strings"

	"github.com/wowemulation-dev/go-warcraft/codec"
	"github.com/wowemulation-dev/go-warcraft/crypto"
)

// ListfileMode selects how the builder produces the "(listfile)"
// pseudo-file.
type ListfileMode int

const (
	ListfileNone ListfileMode = iota
	ListfileGenerate
	ListfileExternal
)

// AttributesMode selects how much of the "(attributes)" pseudo-file the
// builder writes.
type AttributesMode int

const (
	AttributesNone AttributesMode = iota
	AttributesCRC32
	AttributesFull // CRC32 + MD5
)

// BuilderConfig configures a new Builder (§4.5).
type BuilderConfig struct {
	Version             Version
	BlockSizeShift      uint16 // [3, 23]; default 3 (4 KiB sectors)
	DefaultCompression  codec.EncodeOptions
	Listfile            ListfileMode
	ExternalListfilePath string
	Attributes          AttributesMode
}

// AddFileOptions customizes how one staged file is stored.
type AddFileOptions struct {
	Compression *codec.EncodeOptions // nil uses the builder's default
	Encrypt     bool
	FixKey      bool // key-adjusted encryption
	Locale      uint16
	SingleUnit  bool
}

type stagedFile struct {
	path        string
	normPath    string
	data        []byte
	compression codec.EncodeOptions
	encrypt     bool
	fixKey      bool
	locale      uint16
	singleUnit  bool
}

// Builder stages files and produces a new archive on Build. It is not
// safe for concurrent use (§5: single-threaded writer).
type Builder struct {
	cfg   BuilderConfig
	files []stagedFile
	seen  map[string]bool
}

// NewBuilder constructs a Builder; BlockSizeShift of 0 is normalized to
// the default (3).
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.BlockSizeShift == 0 {
		cfg.BlockSizeShift = 3
	}
	return &Builder{cfg: cfg, seen: map[string]bool{}}
}

func validFileName(path string) error {
	base := path
	if i := strings.LastIndexAny(base, "\\/"); i >= 0 {
		base = base[i+1:]
	}
	if len(base) <= 1 {
		return newErr(InvalidFormat, "filename too short: "+path)
	}
	allDigits := true
	for _, c := range base {
		if c < '0' || c > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		return newErr(InvalidFormat, "digit-only filename: "+path)
	}
	return nil
}

// AddFile stages data under path. Duplicate paths (after normalization)
// are rejected with DuplicatePath, checked before any write, per §4.5.
func (b *Builder) AddFile(data []byte, path string, opts AddFileOptions) error {
	if err := validFileName(path); err != nil {
		return err
	}
	norm := normalizeName(path)
	if b.seen[norm] {
		return newErr(DuplicatePath, path)
	}
	b.seen[norm] = true

	comp := b.cfg.DefaultCompression
	if opts.Compression != nil {
		comp = *opts.Compression
	}
	b.files = append(b.files, stagedFile{
		path:        path,
		normPath:    norm,
		data:        data,
		compression: comp,
		encrypt:     opts.Encrypt,
		fixKey:      opts.FixKey,
		locale:      opts.Locale,
		singleUnit:  opts.SingleUnit,
	})
	return nil
}

// BuildSummary reports what Build did.
type BuildSummary struct {
	FileCount  int
	TotalBytes int64
}

func nextPowerOfTwo(n uint32) uint32 {
	if n < 1 {
		n = 1
	}
	return 1 << bits.Len32(n-1)
}

// headerSize returns the on-disk header size for v.
func headerSize(v Version) uint32 {
	n := uint32(baseHeaderSize)
	if v >= V2 {
		n += v2ExtraSize
	}
	if v >= V3 {
		n += v3ExtraSize
	}
	return n
}

type builtBlock struct {
	name   string
	locale uint16
	entry  BlockEntry
}

// Build writes the staged files to a new archive at targetPath, via a
// sibling ".tmp" file that is fsynced and atomically renamed into place
// (§4.5, §5).
func (b *Builder) Build(targetPath string) (*BuildSummary, error) {
	files := make([]stagedFile, len(b.files))
	copy(files, b.files)

	if b.cfg.Listfile == ListfileGenerate {
		var sb strings.Builder
		for _, f := range files {
			sb.WriteString(f.path)
			sb.WriteString("\r\n")
		}
		files = append(files, stagedFile{
			path:     listfileName,
			normPath: normalizeName(listfileName),
			data:     []byte(sb.String()),
			locale:   DefaultLocale,
		})
	} else if b.cfg.Listfile == ListfileExternal && b.cfg.ExternalListfilePath != "" {
		raw, err := os.ReadFile(b.cfg.ExternalListfilePath)
		if err != nil {
			return nil, wrapErr(IoError, "reading external listfile", err)
		}
		files = append(files, stagedFile{
			path:     listfileName,
			normPath: normalizeName(listfileName),
			data:     raw,
			locale:   DefaultLocale,
		})
	}

	sectorSize := uint32(512) << b.cfg.BlockSizeShift
	hdrSize := headerSize(b.cfg.Version)

	blocks := make([]builtBlock, len(files))
	var payload []byte
	payloadBase := int64(hdrSize)

	for i, f := range files {
		offset := payloadBase + int64(len(payload))
		enc, flags, err := encodeFileSectors(f, sectorSize, uint32(offset))
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)

		blocks[i] = builtBlock{
			name:   f.path,
			locale: f.locale,
			entry: BlockEntry{
				FilePos:          uint32(offset),
				FilePosHigh:      uint16(offset >> 32),
				CompressedSize:   uint32(len(enc)),
				UncompressedSize: uint32(len(f.data)),
				Flags:            flags,
			},
		}
	}

	if b.cfg.Attributes != AttributesNone {
		attrFile, err := buildAttributesFile(files, b.cfg.Attributes)
		if err != nil {
			return nil, err
		}
		offset := payloadBase + int64(len(payload))
		enc, flags, err := encodeFileSectors(attrFile, sectorSize, uint32(offset))
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
		blocks = append(blocks, builtBlock{
			name:   attributesName,
			locale: DefaultLocale,
			entry: BlockEntry{
				FilePos:          uint32(offset),
				FilePosHigh:      uint16(offset >> 32),
				CompressedSize:   uint32(len(enc)),
				UncompressedSize: uint32(len(attrFile.data)),
				Flags:            flags,
			},
		})
	}

	hashTableSize := nextPowerOfTwo(uint32(len(blocks))*4/3 + 1)
	if hashTableSize < 16 {
		hashTableSize = 16
	}
	hashTable := make([]HashEntry, hashTableSize)
	for i := range hashTable {
		hashTable[i].BlockIndex = blockIndexNeverUsed
	}
	for bi, bl := range blocks {
		hashA, hashB := crypto.NameHashes(bl.name)
		start := hashA & (hashTableSize - 1)
		placed := false
		for step := uint32(0); step < hashTableSize; step++ {
			idx := (start + step) % hashTableSize
			if hashTable[idx].BlockIndex == blockIndexNeverUsed || hashTable[idx].BlockIndex == blockIndexDeleted {
				hashTable[idx] = HashEntry{HashA: hashA, HashB: hashB, Locale: bl.locale, BlockIndex: uint32(bi)}
				placed = true
				break
			}
		}
		if !placed {
			return nil, newErr(ResourceExhaustion, "hash table exhausted; too many files for its size")
		}
	}

	hashTableOffset := payloadBase + int64(len(payload))
	blockTableOffset := hashTableOffset + int64(hashTableSize)*16

	hashBuf := make([]byte, hashTableSize*16)
	for i, he := range hashTable {
		off := i * 16
		binary.LittleEndian.PutUint32(hashBuf[off:], he.HashA)
		binary.LittleEndian.PutUint32(hashBuf[off+4:], he.HashB)
		binary.LittleEndian.PutUint16(hashBuf[off+8:], he.Locale)
		binary.LittleEndian.PutUint32(hashBuf[off+12:], he.BlockIndex)
	}
	crypto.Encrypt(hashBuf, crypto.HashTableKey)

	blockBuf := make([]byte, len(blocks)*16)
	for i, bl := range blocks {
		off := i * 16
		binary.LittleEndian.PutUint32(blockBuf[off:], bl.entry.FilePos)
		binary.LittleEndian.PutUint32(blockBuf[off+4:], bl.entry.CompressedSize)
		binary.LittleEndian.PutUint32(blockBuf[off+8:], bl.entry.UncompressedSize)
		binary.LittleEndian.PutUint32(blockBuf[off+12:], bl.entry.Flags)
	}
	crypto.Encrypt(blockBuf, crypto.BlockTableKey)

	archiveSize := blockTableOffset + int64(len(blockBuf))

	header := make([]byte, hdrSize)
	copy(header[0:4], archiveMagic[:])
	binary.LittleEndian.PutUint32(header[4:8], hdrSize)
	binary.LittleEndian.PutUint32(header[8:12], uint32(archiveSize))
	binary.LittleEndian.PutUint16(header[12:14], b.cfg.Version.wire())
	binary.LittleEndian.PutUint16(header[14:16], b.cfg.BlockSizeShift)
	binary.LittleEndian.PutUint32(header[24:28], hashTableSize)
	binary.LittleEndian.PutUint32(header[28:32], uint32(len(blocks)))
	// §6.1: offset 16 is the hash-table offset, offset 20 is the
	// block-table offset. This builder writes the hash table right after
	// the file payloads and the block table directly after the hash
	// table (hashTableOffset/blockTableOffset computed above).
	binary.LittleEndian.PutUint32(header[16:20], uint32(hashTableOffset))
	binary.LittleEndian.PutUint32(header[20:24], uint32(blockTableOffset))

	if b.cfg.Version >= V2 {
		binary.LittleEndian.PutUint64(header[32:40], 0) // hi-block-table offset: unused, archive < 4GB
		binary.LittleEndian.PutUint16(header[40:42], uint16(hashTableOffset>>32))
		binary.LittleEndian.PutUint16(header[42:44], uint16(blockTableOffset>>32))
		binary.LittleEndian.PutUint64(header[44:52], uint64(archiveSize))
	}

	if b.cfg.Version >= V3 {
		writeV3Footer(header, hashBuf, blockBuf)
	}

	tmpPath := targetPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, wrapErr(IoError, "creating temp archive file", err)
	}
	writeErr := func() error {
		if _, err := f.Write(header); err != nil {
			return err
		}
		if _, err := f.Write(payload); err != nil {
			return err
		}
		if _, err := f.Write(hashBuf); err != nil {
			return err
		}
		if _, err := f.Write(blockBuf); err != nil {
			return err
		}
		return f.Sync()
	}()
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return nil, wrapErr(IoError, "writing archive", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, wrapErr(IoError, "closing archive", closeErr)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return nil, wrapErr(IoError, "finalizing archive", err)
	}

	var total int64
	for _, f := range files {
		total += int64(len(f.data))
	}
	return &BuildSummary{FileCount: len(files), TotalBytes: total}, nil
}

// encodeFileSectors sector-encodes one staged file's payload and returns
// its stored bytes plus the block-flags word to record for it. blockOffset
// is the block's file position, which feeds the key-adjusted file key.
func encodeFileSectors(f stagedFile, sectorSize uint32, blockOffset uint32) ([]byte, uint32, error) {
	flags := BlockFlagPresent
	var key uint32
	if f.encrypt {
		ff := crypto.FileFlags(0)
		if f.fixKey {
			ff = crypto.FlagKeyAdjusted
			flags |= BlockFlagKeyAdjusted
		}
		key = crypto.KeyForFile(f.path, ff, blockOffset, uint32(len(f.data)))
		flags |= BlockFlagEncrypted
	}
	if f.compression.Method != 0 || f.compression.Huffman || f.compression.Sparse || f.compression.ADPCMLevel > 0 {
		flags |= BlockFlagCompressed
	}

	if f.singleUnit || len(f.data) == 0 {
		flags |= BlockFlagSingleUnit
		enc, _, err := codec.EncodeSector(f.data, f.compression)
		if err != nil {
			return nil, 0, wrapErr(CompressionError, "encoding "+f.path, err)
		}
		if f.encrypt {
			enc = padAndEncrypt(enc, key)
		}
		return enc, flags, nil
	}

	n := int((uint32(len(f.data)) + sectorSize - 1) / sectorSize)
	offsets := make([]uint32, n+1)
	// Offsets are relative to the block start, so they count the offset
	// table itself.
	tableLen := uint32((n + 1) * 4)
	var body []byte
	for i := 0; i < n; i++ {
		start := i * int(sectorSize)
		end := start + int(sectorSize)
		if end > len(f.data) {
			end = len(f.data)
		}
		enc, _, err := codec.EncodeSector(f.data[start:end], f.compression)
		if err != nil {
			return nil, 0, wrapErr(CompressionError, fmt.Sprintf("encoding %s sector %d", f.path, i), err)
		}
		if f.encrypt {
			enc = padAndEncrypt(enc, key+uint32(i))
		}
		offsets[i] = tableLen + uint32(len(body))
		body = append(body, enc...)
	}
	offsets[n] = tableLen + uint32(len(body))

	offBuf := make([]byte, (n+1)*4)
	for i, o := range offsets {
		binary.LittleEndian.PutUint32(offBuf[i*4:], o)
	}
	if f.encrypt {
		crypto.Encrypt(offBuf, key-1)
	}

	out := make([]byte, 0, len(offBuf)+len(body))
	out = append(out, offBuf...)
	out = append(out, body...)
	return out, flags, nil
}

// padAndEncrypt encrypts the 4-byte-aligned prefix of buf with key in
// place, leaving a trailing 1-3 byte remainder untouched, mirroring
// sector.decryptInPlace exactly: the cipher only ever runs on whole
// 32-bit words, on both the encode and decode side, so a sector whose
// encoded length isn't a multiple of 4 still round-trips.
func padAndEncrypt(buf []byte, key uint32) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	n := len(out) - len(out)%4
	crypto.Encrypt(out[:n], key)
	return out
}

// writeV3Footer fills the V3+ header extension in place. This builder
// does not emit HET/BET tables: the classical hash/block table pair
// remains the sole lookup path (always present, per §3's invariant 1),
// so the BET/HET offsets and their MD5 digests are left zero, and only
// the hash table, block table, and header-prefix digests are computed.
func writeV3Footer(header, hashBuf, blockBuf []byte) {
	const v3Off = baseHeaderSize + v2ExtraSize
	binary.LittleEndian.PutUint64(header[v3Off:v3Off+8], 0)    // BET table offset: absent
	binary.LittleEndian.PutUint64(header[v3Off+8:v3Off+16], 0) // HET table offset: absent

	md5Block := md5.Sum(blockBuf)
	md5Hash := md5.Sum(hashBuf)
	copy(header[v3Off+16:v3Off+32], md5Block[:])
	copy(header[v3Off+32:v3Off+48], md5Hash[:])
	// MD5HiBlockTable, MD5BETTable, MD5HETTable stay zero: none of those
	// structures are written.

	prefix := md5.Sum(header[:v3Off+16])
	copy(header[v3Off+96:v3Off+112], prefix[:])
}

// buildAttributesFile computes the "(attributes)" pseudo-file's CRC32 and
// MD5 arrays over every staged file's plaintext, in block-table order.
// The reader indexes these arrays by block-table slot, and the
// attributes block itself occupies the final slot (it is appended to the
// block table right after this call), so the arrays carry one more entry
// than len(files): a trailing zero-valued entry for the attributes block,
// which does not checksum itself.
func buildAttributesFile(files []stagedFile, mode AttributesMode) (stagedFile, error) {
	flags := AttrCRC32
	if mode == AttributesFull {
		flags |= AttrMD5
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], 100)
	binary.LittleEndian.PutUint32(buf[4:8], flags)

	for _, f := range files {
		buf = crc32Append(buf, f.data)
	}
	buf = append(buf, make([]byte, 4)...) // attributes block's own CRC32 slot

	if mode == AttributesFull {
		for _, f := range files {
			buf = md5Append(buf, f.data)
		}
		buf = append(buf, make([]byte, 16)...) // attributes block's own MD5 slot
	}
	return stagedFile{
		path:     attributesName,
		normPath: normalizeName(attributesName),
		data:     buf,
		locale:   DefaultLocale,
	}, nil
}
