package patchchain

import (
	"fmt"
	"sync"

	"github.com/wowemulation-dev/go-warcraft/mpq"
)

// ArchiveSpec names one archive to load and its priority within the chain.
type ArchiveSpec struct {
	Path     string
	Priority int
}

// FromArchivesParallel opens every spec's archive on its own goroutine and
// joins before assembling the chain; if any open fails, the already-opened
// archives are closed and the first error is returned (§5).
func FromArchivesParallel(specs []ArchiveSpec) (*Chain, error) {
	type result struct {
		spec    ArchiveSpec
		archive *mpq.Archive
		err     error
	}

	results := make([]result, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec ArchiveSpec) {
			defer wg.Done()
			a, err := mpq.OpenFile(spec.Path)
			results[i] = result{spec: spec, archive: a, err: err}
		}(i, spec)
	}
	wg.Wait()

	var firstErr error
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("opening %s: %w", r.spec.Path, r.err)
		}
	}
	if firstErr != nil {
		for _, r := range results {
			if r.archive != nil {
				r.archive.Close()
			}
		}
		return nil, firstErr
	}

	chain := New()
	for _, r := range results {
		chain.Add(r.spec.Path, r.archive, r.spec.Priority)
	}
	return chain, nil
}
