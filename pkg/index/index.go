package index

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/pkv"
	"github.com/cuemby/omg/pkg/types"
	"github.com/rs/zerolog"
)

// Keys under pkv.NamespaceIndexFingerprint. The full index source is
// saved under sourceKey; the fingerprint is duplicated under
// fingerprintKey and compared on load, so a crash between the two
// writes leaves a mismatch that LoadPersisted refuses to restore.
const (
	sourceKey      = "source"
	fingerprintKey = "fingerprint"
)

// Index holds the current IndexSnapshot behind an atomic pointer.
// Readers call Snapshot() once and operate on the returned value;
// Rebuild swaps in a new generation without ever blocking a reader or
// exposing a half-built snapshot.
type Index struct {
	snap   atomic.Pointer[IndexSnapshot]
	store  pkv.Store
	logger zerolog.Logger
}

// New creates an empty Index (generation 0, zero packages). store, if
// non-nil, is where each rebuilt generation's source is persisted so a
// restarted daemon can restore the index before its first backend
// round trip; pass nil for a memory-only index. Rebuild or
// LoadPersisted must succeed once before Search/Prefix/Info return
// useful results.
func New(store pkv.Store) *Index {
	idx := &Index{store: store, logger: log.WithComponent("index")}
	idx.snap.Store(&IndexSnapshot{byName: map[string]int{}, prefixIndex: map[string][]int{}})
	return idx
}

// LoadPersisted restores the index from the source a previous run
// saved, if one exists and validates. Validation is load-then-check:
// the decoded source's fingerprint must match the separately-stored
// fingerprint key, or the persisted state is treated as torn and
// ignored. It reports whether a snapshot was restored. The restored
// generation keeps its saved fingerprint, so the next Rebuild is a
// no-op unless the backend has actually changed since the save.
func (idx *Index) LoadPersisted() bool {
	if idx.store == nil {
		return false
	}
	raw, err := idx.store.Get(pkv.NamespaceIndexFingerprint, sourceKey)
	if err != nil {
		return false
	}
	fp, err := idx.store.Get(pkv.NamespaceIndexFingerprint, fingerprintKey)
	if err != nil {
		return false
	}

	var src backend.IndexSource
	if err := json.Unmarshal(raw, &src); err != nil || src.Fingerprint == "" || src.Fingerprint != string(fp) {
		idx.logger.Warn().Msg("persisted index source failed validation, ignoring")
		return false
	}

	next := BuildSnapshot(1, src)
	idx.snap.Store(next)
	idx.logger.Info().
		Int("count", next.Len()).
		Str("fingerprint", next.Fingerprint).
		Msg("index restored from storage")
	return true
}

// persist saves a generation's source and fingerprint. Best-effort: a
// storage failure never fails the rebuild that produced the
// generation. The source is written before the fingerprint so a crash
// in between fails LoadPersisted's validation instead of restoring a
// mismatched pair.
func (idx *Index) persist(src backend.IndexSource) {
	if idx.store == nil {
		return
	}
	encoded, err := json.Marshal(src)
	if err != nil {
		return
	}
	if err := idx.store.Put(pkv.NamespaceIndexFingerprint, sourceKey, encoded, 0); err != nil {
		idx.logger.Warn().Err(err).Msg("persist index source failed")
		return
	}
	if err := idx.store.Put(pkv.NamespaceIndexFingerprint, fingerprintKey, []byte(src.Fingerprint), 0); err != nil {
		idx.logger.Warn().Err(err).Msg("persist index fingerprint failed")
	}
}

// Snapshot returns the currently-published generation. Safe for
// concurrent use; never returns nil.
func (idx *Index) Snapshot() *IndexSnapshot {
	return idx.snap.Load()
}

// Generation reports the currently-published generation number.
func (idx *Index) Generation() uint64 {
	return idx.snap.Load().Generation
}

// Fingerprint reports the currently-published generation's backend
// fingerprint, used by the status/rebuild trigger to detect backend
// state changes cheaply.
func (idx *Index) Fingerprint() string {
	return idx.snap.Load().Fingerprint
}

// Rebuild fetches a fresh IndexSource from src and atomically
// publishes it as the next generation, unless fingerprint is
// unchanged from the published snapshot (in which case it is a no-op
// and changed reports false). A non-nil error means the source could not
// be read; the previously-published generation remains current.
func (idx *Index) Rebuild(ctx context.Context, src backend.Backend) (generation uint64, changed bool, err error) {
	current := idx.Snapshot()

	snapshotSrc, err := src.Snapshot(ctx)
	if err != nil {
		return current.Generation, false, err
	}
	if snapshotSrc.Fingerprint != "" && snapshotSrc.Fingerprint == current.Fingerprint {
		return current.Generation, false, nil
	}

	next := BuildSnapshot(current.Generation+1, snapshotSrc)
	idx.snap.Store(next)
	idx.persist(snapshotSrc)
	idx.logger.Info().
		Uint64("generation", next.Generation).
		Int("count", next.Len()).
		Str("fingerprint", next.Fingerprint).
		Msg("index rebuilt")
	return next.Generation, true, nil
}

// Search delegates to the currently-published snapshot.
func (idx *Index) Search(query string, limit int) []types.Package {
	return idx.Snapshot().Search(query, limit)
}

// SearchStats delegates to the currently-published snapshot, also
// reporting the substring-prefilter candidate count.
func (idx *Index) SearchStats(query string, limit int) ([]types.Package, int) {
	return idx.Snapshot().SearchStats(query, limit)
}

// Prefix delegates to the currently-published snapshot.
func (idx *Index) Prefix(prefix string, limit int) []string {
	return idx.Snapshot().Prefix(prefix, limit)
}

// Info looks up a single package by exact name in the currently-
// published snapshot.
func (idx *Index) Info(name string) (types.Package, bool) {
	return idx.Snapshot().Get(name)
}

// Counts reports the aggregate figures FastStatus publishes.
func (idx *Index) Counts() (total, installed, explicit int) {
	s := idx.Snapshot()
	return s.Len(), s.InstalledCount(), s.ExplicitCount()
}
