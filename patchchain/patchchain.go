// Package patchchain implements the priority-ordered archive stack: a
// filename resolves by consulting member archives from highest to lowest
// priority, first hit wins (§4.6).
package patchchain

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wowemulation-dev/go-warcraft/mpq"
)

// Error reports a patch-chain level failure.
type Error struct {
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("patchchain: %s", e.Detail) }

type member struct {
	archive  *mpq.Archive
	path     string
	priority int
}

// Chain holds a descending-priority-sorted stack of opened archives.
// Every method holds mu: mutations and the index-consulting lookups
// (ReadFile, Contains, FindFileArchive, which may rebuild the index) take
// it exclusively, so those lookups run one at a time; List takes it
// shared (§5).
type Chain struct {
	mu      sync.RWMutex
	members []member

	// index maps a normalized name to the position in members (after the
	// last sort) that should answer it; rebuilt lazily after any mutation.
	index      map[string]int
	indexDirty bool
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{index: map[string]int{}, indexDirty: true}
}

func normalize(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "/", "\\"))
}

// Add inserts an opened archive at the given priority (higher wins) and
// re-sorts the stack descending by priority; ties keep insertion order.
func (c *Chain) Add(path string, archive *mpq.Archive, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = append(c.members, member{archive: archive, path: path, priority: priority})
	c.resort()
	c.indexDirty = true
}

// Remove drops the member opened from path, if present, closing its
// archive handle.
func (c *Chain) Remove(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.members {
		if m.path == path {
			m.archive.Close()
			c.members = append(c.members[:i], c.members[i+1:]...)
			c.indexDirty = true
			return true
		}
	}
	return false
}

// SetPriority updates path's priority and re-sorts the stack.
func (c *Chain) SetPriority(path string, priority int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.members {
		if c.members[i].path == path {
			c.members[i].priority = priority
			c.resort()
			c.indexDirty = true
			return true
		}
	}
	return false
}

func (c *Chain) resort() {
	sort.SliceStable(c.members, func(i, j int) bool {
		return c.members[i].priority > c.members[j].priority
	})
}

// rebuildIndex maps every normalized name found in any member to the
// highest-priority member that carries it. Must be called with c.mu held.
func (c *Chain) rebuildIndex() {
	c.index = make(map[string]int)
	for i := len(c.members) - 1; i >= 0; i-- {
		entries, err := c.members[i].archive.ListAll()
		if err != nil {
			continue
		}
		for _, e := range entries {
			c.index[normalize(e.Name)] = i
		}
	}
	c.indexDirty = false
}

func (c *Chain) ensureIndex() {
	if c.indexDirty {
		c.rebuildIndex()
	}
}

// ReadFile resolves name via the name index (a miss returns FileNotFound
// without scanning member archives) and reads it from the owning archive.
func (c *Chain) ReadFile(name string, locale uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndex()
	i, ok := c.index[normalize(name)]
	if !ok {
		return nil, &Error{Detail: "file not found: " + name}
	}
	return c.members[i].archive.ReadFile(name, locale)
}

// Contains reports whether name resolves anywhere in the chain.
func (c *Chain) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndex()
	_, ok := c.index[normalize(name)]
	return ok
}

// FindFileArchive returns the source path of the archive that would answer
// a read of name, or "" if none does.
func (c *Chain) FindFileArchive(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndex()
	i, ok := c.index[normalize(name)]
	if !ok {
		return ""
	}
	return c.members[i].path
}

// List enumerates every distinct file name visible through the chain,
// deduplicated across archives (first occurrence by descending priority
// wins), in priority order for tie-breaks (§5).
func (c *Chain) List() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	for _, m := range c.members {
		entries, err := m.archive.ListAll()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			key := normalize(e.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, e.Name)
		}
	}
	return out, nil
}

// ExtractFiles reads each named file, resolving through the chain.
func (c *Chain) ExtractFiles(names []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	for _, n := range names {
		data, err := c.ReadFile(n, mpq.DefaultLocale)
		if err != nil {
			return nil, err
		}
		out[n] = data
	}
	return out, nil
}

// Close closes every member archive opened by this chain.
func (c *Chain) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.members {
		m.archive.Close()
	}
	c.members = nil
	c.index = map[string]int{}
}
