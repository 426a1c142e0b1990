package index

import (
	"sort"
	"strings"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/types"
)

// DefaultPrefixKeyLen is the default bucket width (k) of the prefix
// index.
const DefaultPrefixKeyLen = 3

// MaxCandidates caps the substring pre-filter stage before fuzzy
// rescoring runs.
const MaxCandidates = 5000

// IndexSnapshot is one immutable generation of the package universe.
// Readers always see a fully-built, internally-consistent snapshot:
// there is no partial state visible mid-build.
type IndexSnapshot struct {
	Generation  uint64
	Fingerprint string
	BackendTag  string

	packages   []types.Package
	lowerNames []string
	byName     map[string]int

	sortedByName []int             // indices into packages, sorted by lowerNames
	prefixIndex  map[string][]int  // first-k lowercase bytes -> indices, k = DefaultPrefixKeyLen
}

// BuildSnapshot constructs a new generation from a backend's current
// package universe. Construction never mutates src.Packages.
func BuildSnapshot(generation uint64, src backend.IndexSource) *IndexSnapshot {
	packages := make([]types.Package, len(src.Packages))
	copy(packages, src.Packages)

	lowerNames := make([]string, len(packages))
	byName := make(map[string]int, len(packages))
	sortedByName := make([]int, len(packages))
	prefixIndex := make(map[string][]int)

	for i, p := range packages {
		lowerNames[i] = strings.ToLower(p.Name)
		byName[p.Name] = i
		sortedByName[i] = i

		key := lowerNames[i]
		if len(key) > DefaultPrefixKeyLen {
			key = key[:DefaultPrefixKeyLen]
		}
		prefixIndex[key] = append(prefixIndex[key], i)
	}

	sort.Slice(sortedByName, func(a, b int) bool {
		return lowerNames[sortedByName[a]] < lowerNames[sortedByName[b]]
	})

	return &IndexSnapshot{
		Generation:   generation,
		Fingerprint:  src.Fingerprint,
		BackendTag:   src.Tag,
		packages:     packages,
		lowerNames:   lowerNames,
		byName:       byName,
		sortedByName: sortedByName,
		prefixIndex:  prefixIndex,
	}
}

// Len reports the total number of indexed packages.
func (s *IndexSnapshot) Len() int { return len(s.packages) }

// InstalledCount counts packages with Installed set.
func (s *IndexSnapshot) InstalledCount() int {
	n := 0
	for _, p := range s.packages {
		if p.Installed {
			n++
		}
	}
	return n
}

// ExplicitCount counts packages with Explicit set.
func (s *IndexSnapshot) ExplicitCount() int {
	n := 0
	for _, p := range s.packages {
		if p.Explicit {
			n++
		}
	}
	return n
}

// All returns every indexed package. Callers must not mutate the
// returned slice's elements in place; it aliases the snapshot's own
// storage for a read-only, allocation-free view.
func (s *IndexSnapshot) All() []types.Package {
	return s.packages
}

// Get looks up a package by exact name.
func (s *IndexSnapshot) Get(name string) (types.Package, bool) {
	i, ok := s.byName[name]
	if !ok {
		return types.Package{}, false
	}
	return s.packages[i], true
}
