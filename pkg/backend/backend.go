package backend

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/omg/pkg/types"
)

// ErrBackendUnavailable is returned when a backend call fails or the
// backend is not configured.
var ErrBackendUnavailable = errors.New("backend: unavailable")

// IndexSource is a fresh description of the full package universe, used
// by pkg/index to build an IndexSnapshot.
type IndexSource struct {
	Packages    []types.Package
	Fingerprint string
	Tag         string
}

// MutateOptions controls an Install/Remove/ApplyAllUpdates call.
type MutateOptions struct {
	NoConfirm bool
	AsDeps    bool
}

// MutateResult reports the backend process's own exit status; the
// daemon marshals the request and reports this result without
// interpreting it further — it never performs privileged mutations
// itself.
type MutateResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Backend is the contract every package source integration must
// satisfy. Concrete ALPM/APT adapters are external collaborators; the
// daemon core only depends on this interface.
type Backend interface {
	// Tag identifies the backend for FastStatus.BackendTag and logging.
	Tag() string

	// Snapshot returns a fresh IndexSource. Must be safe to call
	// concurrently with Info/Updates/etc; may be slow.
	Snapshot(ctx context.Context) (IndexSource, error)

	// Info looks up live backend state for a single package. Returns
	// ok=false if the backend has no record of name.
	Info(ctx context.Context, name string) (types.Package, bool, error)

	// Updates lists packages with an available newer version.
	Updates(ctx context.Context) ([]types.UpdateCandidate, error)

	// ExplicitInstalled lists names of explicitly-installed packages.
	ExplicitInstalled(ctx context.Context) ([]string, error)

	// Orphans lists names of orphaned (no longer required) packages.
	Orphans(ctx context.Context) ([]string, error)

	// Install, Remove, and ApplyAllUpdates are mutating operations
	// executed with the invoking user's own privileges, elevated outside
	// the daemon process. The daemon never escalates privileges itself.
	Install(ctx context.Context, names []string, opts MutateOptions) (MutateResult, error)
	Remove(ctx context.Context, names []string, opts MutateOptions) (MutateResult, error)
	ApplyAllUpdates(ctx context.Context, opts MutateOptions) (MutateResult, error)
}

// DefaultCallTimeout bounds a single Backend call when the caller does
// not supply its own deadline.
const DefaultCallTimeout = 10 * time.Second
