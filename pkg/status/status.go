package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/index"
	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/metrics"
	"github.com/cuemby/omg/pkg/pkv"
	"github.com/cuemby/omg/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the background refresh period.
const DefaultInterval = 30 * time.Second

// StartupTimeout bounds the synchronous best-effort refresh Start
// performs before returning.
const StartupTimeout = 2 * time.Second

const pkvStatusKey = "current"

// State is the SAG refresh state machine's current phase.
type State int32

const (
	StateIdle State = iota
	StateRefreshing
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateRefreshing:
		return "refreshing"
	case StatePublishing:
		return "publishing"
	default:
		return "idle"
	}
}

// Aggregator is the status aggregator (SAG). It owns the published
// FastStatus file and the background refresh loop.
type Aggregator struct {
	idx        *index.Index
	be         backend.Backend
	store      pkv.Store
	statusPath string
	interval   time.Duration
	logger     zerolog.Logger

	group singleflight.Group
	state atomic.Int32

	current atomic.Pointer[types.FastStatus]

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds an Aggregator that writes its published snapshot to
// statusPath and persists a copy to store under NamespaceStatusSnapshot.
func New(idx *index.Index, be backend.Backend, store pkv.Store, statusPath string, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{
		idx:        idx,
		be:         be,
		store:      store,
		statusPath: statusPath,
		interval:   interval,
		logger:     log.WithComponent("status"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start performs a synchronous, best-effort initial refresh (bounded by
// StartupTimeout — a slow or unavailable backend must never block
// daemon startup) and then launches the ticker-driven background loop.
// Start must be called at most once.
func (a *Aggregator) Start(ctx context.Context) {
	startCtx, cancel := context.WithTimeout(ctx, StartupTimeout)
	if _, err := a.Refresh(startCtx); err != nil {
		a.logger.Warn().Err(err).Msg("startup status refresh failed, continuing with stale/empty status")
	}
	cancel()

	go a.loop(ctx)
}

func (a *Aggregator) loop(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			if _, err := a.Refresh(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("periodic status refresh failed")
			}
		}
	}
}

// Stop ends the background loop and waits for it to exit.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.doneCh
}

// Current returns the most recently published FastStatus without
// touching the backend or the filesystem. Safe for concurrent use.
func (a *Aggregator) Current() types.FastStatus {
	if fs := a.current.Load(); fs != nil {
		return *fs
	}
	return types.FastStatus{SchemaVersion: SchemaVersion, BackendStale: true}
}

// Invalidate triggers an out-of-cycle refresh. The Invalidate RPC
// handler does not call it. Concurrent Refresh/Invalidate callers
// share a single in-flight refresh via singleflight.
func (a *Aggregator) Invalidate(ctx context.Context) (types.FastStatus, error) {
	return a.Refresh(ctx)
}

// Refresh recomputes counts from PIX and the backend, publishes the
// mmap-able file, and persists a copy to PKV. Concurrent callers
// coalesce onto a single underlying refresh.
func (a *Aggregator) Refresh(ctx context.Context) (types.FastStatus, error) {
	v, err, _ := a.group.Do("refresh", func() (interface{}, error) {
		return a.refreshOnce(ctx)
	})
	if err != nil {
		return types.FastStatus{}, err
	}
	return v.(types.FastStatus), nil
}

func (a *Aggregator) refreshOnce(ctx context.Context) (types.FastStatus, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StatusRefreshDuration)

	a.state.Store(int32(StateRefreshing))

	backendStale := false
	rebuildTimer := metrics.NewTimer()
	_, _, rebuildErr := a.idx.Rebuild(ctx, a.be)
	rebuildTimer.ObserveDuration(metrics.IndexRebuildDuration)
	if rebuildErr != nil {
		a.logger.Warn().Err(rebuildErr).Msg("backend snapshot unavailable, serving stale counts")
		backendStale = true
	}

	total, installed, _ := a.idx.Counts()

	lastKnown := a.lastKnown()

	explicitCount := lastKnown.ExplicitCount
	if explicit, err := a.be.ExplicitInstalled(ctx); err != nil {
		backendStale = true
	} else {
		explicitCount = uint64(len(explicit))
	}
	updatesCount := lastKnown.UpdatesCount
	if updates, err := a.be.Updates(ctx); err != nil {
		backendStale = true
	} else {
		updatesCount = uint64(len(updates))
	}
	orphanCount := lastKnown.OrphanCount
	if orphans, err := a.be.Orphans(ctx); err != nil {
		backendStale = true
	} else {
		orphanCount = uint64(len(orphans))
	}

	// A stale publication keeps the last successful refresh's
	// generated_at: the counts are that refresh's counts, and the
	// timestamp must stay monotonic for readers comparing generations.
	generatedAt := uint64(time.Now().UnixNano())
	if backendStale {
		generatedAt = lastKnown.GeneratedAtNanos
	}

	fs := types.FastStatus{
		SchemaVersion:    SchemaVersion,
		BackendStale:     backendStale,
		GeneratedAtNanos: generatedAt,
		TotalCount:       uint64(total),
		InstalledCount:   uint64(installed),
		ExplicitCount:    explicitCount,
		UpdatesCount:     updatesCount,
		OrphanCount:      orphanCount,
		BackendTag:       a.be.Tag(),
	}

	a.state.Store(int32(StatePublishing))
	if err := a.publish(fs); err != nil {
		a.state.Store(int32(StateIdle))
		metrics.StatusRefreshTotal.WithLabelValues("error").Inc()
		return types.FastStatus{}, fmt.Errorf("publish status: %w", err)
	}

	a.current.Store(&fs)
	a.state.Store(int32(StateIdle))

	if backendStale {
		metrics.StatusBackendStale.Set(1)
		metrics.StatusRefreshTotal.WithLabelValues("stale").Inc()
		metrics.Report(metrics.ComponentBackend, false, "serving last-known counts")
	} else {
		metrics.StatusBackendStale.Set(0)
		metrics.StatusRefreshTotal.WithLabelValues("ok").Inc()
		metrics.Report(metrics.ComponentBackend, true, a.be.Tag())
	}
	metrics.Report(metrics.ComponentIndex, a.idx.Generation() > 0,
		fmt.Sprintf("generation %d", a.idx.Generation()))
	return fs, nil
}

// lastKnown returns the most recently published FastStatus, preferring
// the in-memory copy and falling back to the PKV status_snapshot
// namespace, so a restarted daemon's first refresh still has a
// last-known value to fall back to on a backend failure. A fully cold
// start with no prior publication and an unreadable PKV yields a
// zero-valued FastStatus, the same shape the startup-timeout fallback
// publishes.
func (a *Aggregator) lastKnown() types.FastStatus {
	if fs := a.current.Load(); fs != nil {
		return *fs
	}
	if a.store != nil {
		if raw, err := a.store.Get(pkv.NamespaceStatusSnapshot, pkvStatusKey); err == nil {
			var fs types.FastStatus
			if json.Unmarshal(raw, &fs) == nil {
				return fs
			}
		}
	}
	return types.FastStatus{}
}

// publish writes fs to the PKV snapshot namespace and to the
// mmap-able file via write-tempfile, fsync, rename, so a concurrent
// reader of statusPath always sees a complete generation.
func (a *Aggregator) publish(fs types.FastStatus) error {
	if a.store != nil {
		encoded, err := json.Marshal(fs)
		if err == nil {
			_ = a.store.Put(pkv.NamespaceStatusSnapshot, pkvStatusKey, encoded, 0)
		}
	}

	if a.statusPath == "" {
		return nil
	}

	dir := filepath.Dir(a.statusPath)
	tmp, err := os.CreateTemp(dir, ".omg-status-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(encode(fs)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, a.statusPath)
}

// LoadPublished reads and validates a previously published file,
// used by `omgd doctor` to check an on-disk status file independent
// of a running daemon.
func LoadPublished(path string) (types.FastStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.FastStatus{}, err
	}
	return decode(data)
}

// State reports the aggregator's current refresh phase.
func (a *Aggregator) State() State {
	return State(a.state.Load())
}
