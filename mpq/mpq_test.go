package mpq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/go-warcraft/codec"
)

// buildV1Archive mirrors the round-trip scenario: a V1 archive containing
// "file1.txt" and "test/file2.dat", one compressed, one stored raw.
func buildV1Archive(t *testing.T) (string, map[string][]byte) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mpq")

	files := map[string][]byte{
		"file1.txt":      []byte("Hello, MPQ!"),
		"test/file2.dat": []byte("Binary data here"),
	}

	b := NewBuilder(BuilderConfig{
		Version:        V1,
		BlockSizeShift: 3,
		Listfile:       ListfileGenerate,
	})
	require.NoError(t, b.AddFile(files["file1.txt"], "file1.txt", AddFileOptions{
		Compression: &codec.EncodeOptions{Method: codec.ZLib},
	}))
	require.NoError(t, b.AddFile(files["test/file2.dat"], "test/file2.dat", AddFileOptions{}))

	_, err := b.Build(path)
	require.NoError(t, err)

	return path, files
}

func TestBuildAndReadV1Archive(t *testing.T) {
	path, files := buildV1Archive(t)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	info := a.GetInfo()
	assert.Equal(t, V1, info.Version)
	assert.EqualValues(t, 3, info.FileCount) // two files + generated listfile

	for name, want := range files {
		got, err := a.ReadFile(name, DefaultLocale)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestListAndListAll(t *testing.T) {
	path, files := buildV1Archive(t)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	entries, err := a.List()
	require.NoError(t, err)

	named := map[string]bool{}
	for _, e := range entries {
		if e.Name != "" {
			named[e.Name] = true
		}
	}
	for name := range files {
		assert.True(t, named[name], "expected %s in listfile-derived listing", name)
	}

	all, err := a.ListAll()
	require.NoError(t, err)
	assert.Equal(t, len(entries), len(all))
	for _, e := range all {
		assert.NotEmpty(t, e.Name)
	}
}

func TestContainsAndFindMissing(t *testing.T) {
	path, _ := buildV1Archive(t)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.Contains("file1.txt", DefaultLocale))
	assert.False(t, a.Contains("nonexistent.txt", DefaultLocale))

	_, err = a.ReadFile("nonexistent.txt", DefaultLocale)
	require.Error(t, err)
	var mpqErr *Error
	require.ErrorAs(t, err, &mpqErr)
	assert.Equal(t, FileNotFound, mpqErr.Kind)
}

func TestDuplicatePathRejected(t *testing.T) {
	b := NewBuilder(BuilderConfig{Version: V1})
	require.NoError(t, b.AddFile([]byte("a"), "dup.txt", AddFileOptions{}))
	err := b.AddFile([]byte("b"), "DUP.TXT", AddFileOptions{})
	require.Error(t, err)
	var mpqErr *Error
	require.ErrorAs(t, err, &mpqErr)
	assert.Equal(t, DuplicatePath, mpqErr.Kind)
}

func TestRebuildPreservesContent(t *testing.T) {
	path, files := buildV1Archive(t)

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	dstPath := filepath.Join(t.TempDir(), "rebuilt.mpq")
	summary, err := Rebuild(src, dstPath, RebuildOptions{Verify: true})
	require.NoError(t, err)
	assert.True(t, summary.Verified)
	assert.Equal(t, summary.SourceFiles, summary.ExtractedFiles+summary.SkippedFiles)

	dst, err := OpenFile(dstPath)
	require.NoError(t, err)
	defer dst.Close()

	for name, want := range files {
		got, err := dst.ReadFile(name, DefaultLocale)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestCompareIdenticalArchives(t *testing.T) {
	path, _ := buildV1Archive(t)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenFile(path)
	require.NoError(t, err)
	defer b.Close()

	report, err := Compare(a, b, CompareOptions{})
	require.NoError(t, err)
	assert.Empty(t, report.Files.OnlyInOld)
	assert.Empty(t, report.Files.OnlyInNew)
	assert.Empty(t, report.Changed)
	assert.False(t, report.Metadata.FileCountChanged)
	assert.False(t, report.Metadata.ArchiveSizeChanged)
}

func TestCompareDetectsContentChange(t *testing.T) {
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "old.mpq")
	ob := NewBuilder(BuilderConfig{Version: V1, Listfile: ListfileGenerate})
	require.NoError(t, ob.AddFile([]byte("version one"), "doc.txt", AddFileOptions{}))
	_, err := ob.Build(oldPath)
	require.NoError(t, err)

	newPath := filepath.Join(dir, "new.mpq")
	nb := NewBuilder(BuilderConfig{Version: V1, Listfile: ListfileGenerate})
	require.NoError(t, nb.AddFile([]byte("version two, longer"), "doc.txt", AddFileOptions{}))
	require.NoError(t, nb.AddFile([]byte("new file"), "added.txt", AddFileOptions{}))
	_, err = nb.Build(newPath)
	require.NoError(t, err)

	oldA, err := OpenFile(oldPath)
	require.NoError(t, err)
	defer oldA.Close()
	newA, err := OpenFile(newPath)
	require.NoError(t, err)
	defer newA.Close()

	report, err := Compare(oldA, newA, CompareOptions{})
	require.NoError(t, err)
	assert.Contains(t, report.Files.OnlyInNew, "added.txt")
	require.Len(t, report.Changed, 1)
	assert.Equal(t, "doc.txt", report.Changed[0].Name)
	assert.True(t, report.Changed[0].ContentChanged)
	assert.True(t, report.Changed[0].SizeChanged)
	assert.True(t, report.Metadata.FileCountChanged)
	assert.EqualValues(t, 2, report.Metadata.OldFileCount) // doc.txt + listfile
	assert.EqualValues(t, 3, report.Metadata.NewFileCount) // doc.txt + added.txt + listfile
	assert.True(t, report.Metadata.ArchiveSizeChanged)
}

func TestAttributesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attrs.mpq")

	b := NewBuilder(BuilderConfig{
		Version:    V1,
		Listfile:   ListfileGenerate,
		Attributes: AttributesFull,
	})
	require.NoError(t, b.AddFile([]byte("payload"), "a.txt", AddFileOptions{}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	attrs, err := a.Attributes()
	require.NoError(t, err)
	require.NotNil(t, attrs)
	assert.EqualValues(t, 100, attrs.Version)
	assert.NotEmpty(t, attrs.CRC32)
	assert.NotEmpty(t, attrs.MD5)
}

func TestExtractAll(t *testing.T) {
	path, files := buildV1Archive(t)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	extracted, err := a.ExtractAll()
	require.NoError(t, err)
	for name, want := range files {
		assert.Equal(t, want, extracted[name], name)
	}
}

func TestSingleUnitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.mpq")

	b := NewBuilder(BuilderConfig{Version: V1, Listfile: ListfileGenerate})
	data := make([]byte, 20000)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, b.AddFile(data, "big.bin", AddFileOptions{SingleUnit: true}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	got, err := a.ReadFile("big.bin", DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEncryptedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enc.mpq")

	b := NewBuilder(BuilderConfig{Version: V1, Listfile: ListfileGenerate, BlockSizeShift: 3})
	content := []byte("top secret archive contents, stored in one sector whose length is not a multiple of four bytes")
	require.NoError(t, b.AddFile(content, "secret.dat", AddFileOptions{Encrypt: true}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	got, err := a.ReadFile("secret.dat", DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLZ4ExtraCompressionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lz4.mpq")
	content := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")

	b := NewBuilder(BuilderConfig{Version: V1, BlockSizeShift: 3})
	require.NoError(t, b.AddFile(content, "fast.dat", AddFileOptions{
		Compression: &codec.EncodeOptions{Method: codec.LZ4Extra},
	}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	got, err := a.ReadFile("fast.dat", DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBuildAndReadV2Archive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2.mpq")
	content := []byte("V2 extends the header with a 64-bit archive size.")

	b := NewBuilder(BuilderConfig{Version: V2, BlockSizeShift: 3, Listfile: ListfileGenerate})
	require.NoError(t, b.AddFile(content, "hi.dat", AddFileOptions{
		Compression: &codec.EncodeOptions{Method: codec.ZLib},
	}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, V2, a.GetInfo().Version)
	got, err := a.ReadFile("hi.dat", DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

// TestBuildAndReadV3Archive exercises the V3 MD5 footer: Build writes it,
// Open verifies it, and a corrupted footer byte must surface as
// ChecksumMismatch rather than silently being ignored.
func TestBuildAndReadV3Archive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v3.mpq")
	content := []byte("V3 adds HET/BET offsets and an MD5 footer over the classical tables.")

	b := NewBuilder(BuilderConfig{Version: V3, BlockSizeShift: 3, Listfile: ListfileGenerate})
	require.NoError(t, b.AddFile(content, "hi.dat", AddFileOptions{}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	got, err := a.ReadFile("hi.dat", DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	a.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[70] ^= 0xFF // flips a byte inside the V3 MD5BlockTable footer field
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = OpenFile(path)
	require.Error(t, err)
	var mpqErr *Error
	require.ErrorAs(t, err, &mpqErr)
	assert.Equal(t, ChecksumMismatch, mpqErr.Kind)
}

func TestBuildAndReadV4UncompressedTablesArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v4.mpq")
	content := []byte("V4 allows compressed hash/block tables; this builder only emits uncompressed ones.")

	b := NewBuilder(BuilderConfig{Version: V4, BlockSizeShift: 3, Listfile: ListfileGenerate})
	require.NoError(t, b.AddFile(content, "hi.dat", AddFileOptions{}))
	_, err := b.Build(path)
	require.NoError(t, err)

	a, err := OpenFile(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, V4, a.GetInfo().Version)
	got, err := a.ReadFile("hi.dat", DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestOpenRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.mpq")
	require.NoError(t, os.WriteFile(path, []byte("not an archive, just noise"), 0o644))

	_, err := OpenFile(path)
	require.Error(t, err)
}
