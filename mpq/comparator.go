package mpq

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// MetadataDiff reports differences between two archives' headers (§4.8):
// format version, sector size, file count, and archive size.
type MetadataDiff struct {
	VersionChanged     bool
	OldVersion         Version
	NewVersion         Version
	SectorSizeChanged  bool
	OldSectorSize      uint32
	NewSectorSize      uint32
	FileCountChanged   bool
	OldFileCount       uint32
	NewFileCount       uint32
	ArchiveSizeChanged bool
	OldArchiveSize     uint64
	NewArchiveSize     uint64
}

// FileSetDiff partitions two archives' file sets (by normalized name).
type FileSetDiff struct {
	OnlyInOld []string
	OnlyInNew []string
	InBoth    []string
}

// FileDiff describes how one shared file differs between two archives.
type FileDiff struct {
	Name               string
	SizeChanged        bool
	OldSize, NewSize   uint32
	ContentChanged     bool
	CompressionChanged bool
}

// CompareReport is the full output of Compare.
type CompareReport struct {
	Metadata MetadataDiff
	Files    FileSetDiff
	Changed  []FileDiff
}

// CompareOptions controls Compare's behavior.
type CompareOptions struct {
	// IgnoreOrder makes file-set comparison insensitive to block-table
	// ordering; it already is (names are compared as sets), so this only
	// affects how a caller may choose to present the table/json output.
	IgnoreOrder bool
}

// Compare diffs two opened archives: header metadata (format, sector size,
// file count, archive size), the file-name sets, and, for names present in
// both, content via an xxhash64 pre-check: differing digests mark the
// content changed without a byte compare, and equal digests are confirmed
// with a full byte compare so a hash collision cannot mask a real
// difference (§4.8).
func Compare(oldA, newA *Archive, opts CompareOptions) (*CompareReport, error) {
	report := &CompareReport{}

	report.Metadata = MetadataDiff{
		VersionChanged:     oldA.header.Version != newA.header.Version,
		OldVersion:         oldA.header.Version,
		NewVersion:         newA.header.Version,
		SectorSizeChanged:  oldA.header.SectorSize != newA.header.SectorSize,
		OldSectorSize:      oldA.header.SectorSize,
		NewSectorSize:      newA.header.SectorSize,
		FileCountChanged:   oldA.filesCount != newA.filesCount,
		OldFileCount:       oldA.filesCount,
		NewFileCount:       newA.filesCount,
		ArchiveSizeChanged: oldA.header.ArchiveSize != newA.header.ArchiveSize,
		OldArchiveSize:     oldA.header.ArchiveSize,
		NewArchiveSize:     newA.header.ArchiveSize,
	}

	oldEntries, err := oldA.ListAll()
	if err != nil {
		return nil, err
	}
	newEntries, err := newA.ListAll()
	if err != nil {
		return nil, err
	}

	oldByName := make(map[string]Entry, len(oldEntries))
	for _, e := range oldEntries {
		oldByName[normalizeName(e.Name)] = e
	}
	newByName := make(map[string]Entry, len(newEntries))
	for _, e := range newEntries {
		newByName[normalizeName(e.Name)] = e
	}

	for key, e := range oldByName {
		if _, ok := newByName[key]; !ok {
			report.Files.OnlyInOld = append(report.Files.OnlyInOld, e.Name)
		} else {
			report.Files.InBoth = append(report.Files.InBoth, e.Name)
		}
	}
	for key, e := range newByName {
		if _, ok := oldByName[key]; !ok {
			report.Files.OnlyInNew = append(report.Files.OnlyInNew, e.Name)
		}
	}

	for _, name := range report.Files.InBoth {
		key := normalizeName(name)
		oe := oldByName[key]
		ne := newByName[key]

		diff := FileDiff{Name: name}
		if oe.UncompressedSize != ne.UncompressedSize {
			diff.SizeChanged = true
			diff.OldSize = oe.UncompressedSize
			diff.NewSize = ne.UncompressedSize
		}
		if (oe.Flags&BlockFlagCompressed != 0) != (ne.Flags&BlockFlagCompressed != 0) {
			diff.CompressionChanged = true
		}

		oldData, err := oldA.readBlock(name, oldA.blockTable[oe.BlockTableIndex])
		if err != nil {
			return nil, err
		}
		newData, err := newA.readBlock(name, newA.blockTable[ne.BlockTableIndex])
		if err != nil {
			return nil, err
		}
		if xxhash.Sum64(oldData) != xxhash.Sum64(newData) {
			diff.ContentChanged = true
		} else if !bytes.Equal(oldData, newData) {
			// Equal digests but different bytes: a hash collision; the
			// byte compare is the arbiter of truth, not the digest.
			diff.ContentChanged = true
		}

		if diff.SizeChanged || diff.CompressionChanged || diff.ContentChanged {
			report.Changed = append(report.Changed, diff)
		}
	}

	return report, nil
}
