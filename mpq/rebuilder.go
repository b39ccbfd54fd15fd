package mpq

import (
	"sort"

	"github.com/wowemulation-dev/go-warcraft/codec"
)

// RebuildOptions controls a version-preserving (or upgrading)
// reconstruction of a source archive (§4.7).
type RebuildOptions struct {
	PreserveFormat      bool
	TargetFormat        *Version
	PreserveOrder       bool
	SkipEncrypted       bool
	SkipSignatures      bool
	Verify              bool
	OverrideCompression *codec.EncodeOptions
	OverrideBlockSize   *uint16
	ListOnly            bool
}

// Summary reports the outcome of a Rebuild call.
type Summary struct {
	SourceFiles    int
	ExtractedFiles int
	SkippedFiles   int
	TargetFormat   Version
	Verified       bool
}

var signatureNames = map[string]bool{
	"(SIGNATURE)": true, // keyed by normalizeName's uppercase form
}

// compressionFromBlockFlags reconstructs a best-effort EncodeOptions from a
// source block's flags, used when a rebuild carries compression forward
// rather than overriding it. It can't recover the exact original chain
// (the mask byte lives per-sector, not in the block table), so it only
// preserves the "was this file compressed at all" decision.
func compressionFromBlockFlags(flags uint32) *codec.EncodeOptions {
	if flags&BlockFlagCompressed == 0 {
		return &codec.EncodeOptions{}
	}
	return &codec.EncodeOptions{Method: codec.ZLib}
}

// Rebuild reads src and writes a fresh archive to targetPath per opts. It
// never mutates src.
func Rebuild(src *Archive, targetPath string, opts RebuildOptions) (*Summary, error) {
	entries, err := src.ListAll()
	if err != nil {
		return nil, err
	}

	if opts.PreserveOrder {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].BlockTableIndex < entries[j].BlockTableIndex
		})
	}

	targetVersion := src.header.Version
	if opts.TargetFormat != nil {
		targetVersion = *opts.TargetFormat
	}

	summary := &Summary{SourceFiles: len(entries), TargetFormat: targetVersion}

	if opts.ListOnly {
		summary.ExtractedFiles = len(entries)
		return summary, nil
	}

	blockShift := src.header.BlockSizeShift
	if opts.OverrideBlockSize != nil {
		blockShift = *opts.OverrideBlockSize
	}

	b := NewBuilder(BuilderConfig{
		Version:        targetVersion,
		BlockSizeShift: blockShift,
		Listfile:       ListfileGenerate,
	})

	for _, e := range entries {
		if opts.SkipSignatures && signatureNames[normalizeName(e.Name)] {
			summary.SkippedFiles++
			continue
		}
		be := src.blockTable[e.BlockTableIndex]
		if opts.SkipEncrypted && be.encrypted() {
			summary.SkippedFiles++
			continue
		}

		data, err := src.readBlock(e.Name, be)
		if err != nil {
			summary.SkippedFiles++
			continue
		}

		addOpts := AddFileOptions{
			Encrypt:    be.encrypted(),
			FixKey:     be.Flags&BlockFlagKeyAdjusted != 0,
			Locale:     e.Locale,
			SingleUnit: be.singleUnit(),
		}
		if opts.OverrideCompression != nil {
			addOpts.Compression = opts.OverrideCompression
		} else {
			addOpts.Compression = compressionFromBlockFlags(be.Flags)
		}

		if err := b.AddFile(data, e.Name, addOpts); err != nil {
			summary.SkippedFiles++
			continue
		}
		summary.ExtractedFiles++
	}

	if _, err := b.Build(targetPath); err != nil {
		return nil, err
	}

	if opts.Verify {
		out, err := OpenFile(targetPath)
		if err != nil {
			return nil, wrapErr(InvalidFormat, "verify: reopening rebuilt archive", err)
		}
		defer out.Close()
		for _, e := range entries {
			want, err := src.readBlock(e.Name, src.blockTable[e.BlockTableIndex])
			if err != nil {
				continue
			}
			got, err := out.ReadFile(e.Name, e.Locale)
			if err != nil {
				return nil, wrapErr(ChecksumMismatch, "verify: "+e.Name, err)
			}
			if len(got) != len(want) {
				return nil, newErr(ChecksumMismatch, "verify: size mismatch for "+e.Name)
			}
			for i := range want {
				if want[i] != got[i] {
					return nil, newErr(ChecksumMismatch, "verify: content mismatch for "+e.Name)
				}
			}
		}
		summary.Verified = true
	}

	return summary, nil
}
