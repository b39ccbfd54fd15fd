package patchchain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/go-warcraft/mpq"
)

func buildArchive(t *testing.T, path string, files map[string]string) {
	t.Helper()
	b := mpq.NewBuilder(mpq.BuilderConfig{Version: mpq.V1, Listfile: mpq.ListfileGenerate})
	for name, content := range files {
		require.NoError(t, b.AddFile([]byte(content), name, mpq.AddFileOptions{}))
	}
	_, err := b.Build(path)
	require.NoError(t, err)
}

// TestPatchChainOverride mirrors the literal scenario: a base archive with
// two files at priority 0, and a patch archive overriding one at priority
// 100.
func TestPatchChainOverride(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.mpq")
	patchPath := filepath.Join(dir, "patch.mpq")

	buildArchive(t, basePath, map[string]string{
		"file1.txt": "base file1",
		"file2.txt": "base file2",
	})
	buildArchive(t, patchPath, map[string]string{
		"file2.txt": "patched file2",
	})

	baseA, err := mpq.OpenFile(basePath)
	require.NoError(t, err)
	patchA, err := mpq.OpenFile(patchPath)
	require.NoError(t, err)

	chain := New()
	chain.Add(basePath, baseA, 0)
	chain.Add(patchPath, patchA, 100)
	defer chain.Close()

	got, err := chain.ReadFile("file2.txt", mpq.DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "patched file2", string(got))

	got, err = chain.ReadFile("file1.txt", mpq.DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "base file1", string(got))
}

func TestPatchChainMissingIsFileNotFound(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.mpq")
	buildArchive(t, basePath, map[string]string{"a.txt": "a"})

	a, err := mpq.OpenFile(basePath)
	require.NoError(t, err)
	chain := New()
	chain.Add(basePath, a, 0)
	defer chain.Close()

	_, err = chain.ReadFile("missing.txt", mpq.DefaultLocale)
	require.Error(t, err)
}

func TestFromArchivesParallel(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.mpq")
	p2 := filepath.Join(dir, "b.mpq")
	buildArchive(t, p1, map[string]string{"x.txt": "low"})
	buildArchive(t, p2, map[string]string{"x.txt": "high"})

	chain, err := FromArchivesParallel([]ArchiveSpec{
		{Path: p1, Priority: 0},
		{Path: p2, Priority: 10},
	})
	require.NoError(t, err)
	defer chain.Close()

	got, err := chain.ReadFile("x.txt", mpq.DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "high", string(got))
	assert.Equal(t, p2, chain.FindFileArchive("x.txt"))
}

func TestSetPriorityReorders(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.mpq")
	p2 := filepath.Join(dir, "b.mpq")
	buildArchive(t, p1, map[string]string{"x.txt": "from-a"})
	buildArchive(t, p2, map[string]string{"x.txt": "from-b"})

	aArc, err := mpq.OpenFile(p1)
	require.NoError(t, err)
	bArc, err := mpq.OpenFile(p2)
	require.NoError(t, err)

	chain := New()
	chain.Add(p1, aArc, 10)
	chain.Add(p2, bArc, 0)
	defer chain.Close()

	got, err := chain.ReadFile("x.txt", mpq.DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "from-a", string(got))

	require.True(t, chain.SetPriority(p2, 20))
	got, err = chain.ReadFile("x.txt", mpq.DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "from-b", string(got))
}
