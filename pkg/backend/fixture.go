package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/omg/pkg/types"
)

// FixtureBackend is an in-memory Backend over a fixed package list, used
// by the daemon's own tests in place of a real ALPM/APT integration.
type FixtureBackend struct {
	mu          sync.RWMutex
	tag         string
	packages    map[string]types.Package
	updates     []types.UpdateCandidate
	fingerprint string
}

// NewFixtureBackend builds a FixtureBackend from an initial package set.
func NewFixtureBackend(tag string, packages []types.Package) *FixtureBackend {
	index := make(map[string]types.Package, len(packages))
	for _, p := range packages {
		index[p.Name] = p
	}
	return &FixtureBackend{
		tag:         tag,
		packages:    index,
		fingerprint: fmt.Sprintf("%s-%d", tag, len(packages)),
	}
}

func (f *FixtureBackend) Tag() string { return f.tag }

// SetUpdates installs the candidate list Updates() will return.
func (f *FixtureBackend) SetUpdates(updates []types.UpdateCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = updates
}

// Put adds or replaces a package record and bumps the snapshot
// fingerprint so PIX rebuild triggers observe the change.
func (f *FixtureBackend) Put(pkg types.Package) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packages[pkg.Name] = pkg
	f.fingerprint = fmt.Sprintf("%s-%d-%s", f.tag, len(f.packages), pkg.Name)
}

func (f *FixtureBackend) Snapshot(ctx context.Context) (IndexSource, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	pkgs := make([]types.Package, 0, len(f.packages))
	for _, p := range f.packages {
		pkgs = append(pkgs, p)
	}
	return IndexSource{Packages: pkgs, Fingerprint: f.fingerprint, Tag: f.tag}, nil
}

func (f *FixtureBackend) Info(ctx context.Context, name string) (types.Package, bool, error) {
	if err := types.ValidateName(name); err != nil {
		return types.Package{}, false, fmt.Errorf("invalid name: %w", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.packages[name]
	return p, ok, nil
}

func (f *FixtureBackend) Updates(ctx context.Context) ([]types.UpdateCandidate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]types.UpdateCandidate, len(f.updates))
	copy(out, f.updates)
	return out, nil
}

func (f *FixtureBackend) ExplicitInstalled(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var names []string
	for _, p := range f.packages {
		if p.Explicit {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

func (f *FixtureBackend) Orphans(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var names []string
	for _, p := range f.packages {
		if p.Installed && !p.Explicit && len(p.Dependencies) == 0 {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

func (f *FixtureBackend) Install(ctx context.Context, names []string, opts MutateOptions) (MutateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		p := f.packages[name]
		p.Name = name
		p.Installed = true
		if !opts.AsDeps {
			p.Explicit = true
		}
		f.packages[name] = p
	}
	return MutateResult{ExitCode: 0}, nil
}

func (f *FixtureBackend) Remove(ctx context.Context, names []string, opts MutateOptions) (MutateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		delete(f.packages, name)
	}
	return MutateResult{ExitCode: 0}, nil
}

func (f *FixtureBackend) ApplyAllUpdates(ctx context.Context, opts MutateOptions) (MutateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.updates {
		p := f.packages[u.Name]
		p.Name = u.Name
		p.Version = u.NewVersion
		f.packages[u.Name] = p
	}
	f.updates = nil
	return MutateResult{ExitCode: 0}, nil
}

var _ Backend = (*FixtureBackend)(nil)
