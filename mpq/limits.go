package mpq

// SecurityLimits bounds resource consumption so that hostile or corrupt
// archives (decompression bombs, claimed file counts in the billions)
// cannot be used to exhaust memory or CPU. Exceeding a size or file-count
// limit aborts the operation with ResourceExhaustion and leaves no partial
// buffers live (§5).
type SecurityLimits struct {
	MaxArchiveSize       int64
	MaxDecompressedSize  int64
	MaxDecompressionTime int64 // milliseconds; carried as a setting only, not checked by this package
	MaxFilesInArchive    uint32
}

// DefaultSecurityLimits is a conservative default suitable for opening
// archives of unknown provenance.
var DefaultSecurityLimits = SecurityLimits{
	MaxArchiveSize:       4 << 30,  // 4 GiB
	MaxDecompressedSize:  1 << 30,  // 1 GiB per file
	MaxDecompressionTime: 30_000,   // 30s
	MaxFilesInArchive:    1 << 20,  // ~1M files
}

func (l SecurityLimits) checkArchiveSize(size int64) error {
	if l.MaxArchiveSize > 0 && size > l.MaxArchiveSize {
		return newErr(ResourceExhaustion, "archive size exceeds configured ceiling")
	}
	return nil
}

func (l SecurityLimits) checkDecompressedSize(size int64) error {
	if l.MaxDecompressedSize > 0 && size > l.MaxDecompressedSize {
		return newErr(ResourceExhaustion, "decompressed size exceeds configured ceiling")
	}
	return nil
}

func (l SecurityLimits) checkFileCount(n uint32) error {
	if l.MaxFilesInArchive > 0 && n > l.MaxFilesInArchive {
		return newErr(ResourceExhaustion, "file count exceeds configured ceiling")
	}
	return nil
}
