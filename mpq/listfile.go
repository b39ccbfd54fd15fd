package mpq

import (
	"fmt"
	"strings"

	"github.com/wowemulation-dev/go-warcraft/crypto"
)

const (
	listfileName   = "(listfile)"
	attributesName = "(attributes)"
)

// List enumerates every present file block, in block-table order (§5's
// ordering guarantee). A block whose name appears in the embedded
// "(listfile)" pseudo-file carries that name; blocks the listfile does
// not name are returned too, with an empty Name.
func (a *Archive) List() ([]Entry, error) {
	names, err := a.loadListfile()
	if err != nil {
		return nil, err
	}
	type hashKey struct {
		a, b uint32
	}
	byHash := make(map[hashKey]string, len(names))
	for _, n := range names {
		ha, hb := crypto.NameHashes(n)
		byHash[hashKey{ha, hb}] = n
	}

	// blockIdx -> hash-table index, resolved in one pass over the hash
	// table rather than re-probing per block.
	hashIdxOf := make(map[int]int, len(a.hashTable))
	for hi, he := range a.hashTable {
		if he.neverUsed() || he.deleted() {
			continue
		}
		if _, seen := hashIdxOf[int(he.BlockIndex)]; !seen {
			hashIdxOf[int(he.BlockIndex)] = hi
		}
	}

	out := make([]Entry, 0, len(a.blockEntryIndices))
	for _, blockIdx := range a.blockEntryIndices {
		be := a.blockTable[blockIdx]
		hashIdx := -1
		locale := DefaultLocale
		name := ""
		if hi, ok := hashIdxOf[blockIdx]; ok {
			hashIdx = hi
			he := a.hashTable[hi]
			locale = he.Locale
			if n, ok := byHash[hashKey{he.HashA, he.HashB}]; ok {
				name = n
			}
		}
		out = append(out, Entry{
			Name:             name,
			HashTableIndex:   hashIdx,
			BlockTableIndex:  blockIdx,
			Locale:           locale,
			CompressedSize:   be.CompressedSize,
			UncompressedSize: be.UncompressedSize,
			Flags:            be.Flags,
		})
	}
	return out, nil
}

// ListAll enumerates every file block, synthesizing placeholder names
// ("File%08d.dat") for blocks the listfile doesn't name.
func (a *Archive) ListAll() ([]Entry, error) {
	entries, err := a.List()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Name == "" {
			entries[i].Name = fmt.Sprintf("File%08d.dat", entries[i].BlockTableIndex)
		}
	}
	return entries, nil
}

func (a *Archive) loadListfile() ([]string, error) {
	if a.listfileKnown {
		return a.listfile, nil
	}
	a.listfileKnown = true
	raw, err := a.ReadFile(listfileName, DefaultLocale)
	if err != nil {
		if ae, ok := err.(*Error); ok && ae.Kind == FileNotFound {
			a.listfile = nil
			return nil, nil
		}
		return nil, err
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	var names []string
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			names = append(names, l)
		}
	}
	a.listfile = names
	return names, nil
}
