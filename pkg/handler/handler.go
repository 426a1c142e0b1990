package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/omg/pkg/backend"
	"github.com/cuemby/omg/pkg/cache"
	"github.com/cuemby/omg/pkg/index"
	"github.com/cuemby/omg/pkg/log"
	"github.com/cuemby/omg/pkg/metrics"
	"github.com/cuemby/omg/pkg/pkv"
	"github.com/cuemby/omg/pkg/rpc"
	"github.com/cuemby/omg/pkg/status"
	"github.com/cuemby/omg/pkg/types"
	"github.com/cuemby/omg/pkg/validate"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	searchTTL   = 60 * time.Second
	infoTTL     = 5 * time.Minute
	updatesTTL  = 5 * time.Minute
	completeTTL = 60 * time.Second

	// maxBatchConcurrency bounds in-flight sub-requests within one
	// Batch call.
	maxBatchConcurrency = 16
)

// ConnInfo carries per-connection facts a handler needs but that only
// pkg/daemon, which owns the raw socket, can determine.
type ConnInfo struct {
	// IsOwner reports whether the peer's credentials (SO_PEERCRED or
	// equivalent) match the daemon process's own user, required to
	// honor Shutdown.
	IsOwner bool

	// ConnID is the connection's uuid, used to correlate a privileged
	// operation (currently just Shutdown) with the audit_log entry it
	// produces.
	ConnID string
}

// Handlers composes PTC/PIX/BA/PKV/SAG into the daemon's request
// handlers. ShutdownFunc is invoked once Shutdown is accepted;
// pkg/daemon supplies it to trigger its own drain sequence.
type Handlers struct {
	idx          *index.Index
	be           backend.Backend
	cache        *cache.TTLCache
	store        pkv.Store
	agg          *status.Aggregator
	logger       zerolog.Logger
	ShutdownFunc func()
}

// New builds a Handlers. store may be nil (PKV best-effort degrades to
// cache-less operation).
func New(idx *index.Index, be backend.Backend, c *cache.TTLCache, store pkv.Store, agg *status.Aggregator) *Handlers {
	return &Handlers{
		idx:    idx,
		be:     be,
		cache:  c,
		store:  store,
		agg:    agg,
		logger: log.WithComponent("handler"),
	}
}

// Dispatch validates and executes a single request, returning a
// Response that always carries the original request id.
func (h *Handlers) Dispatch(ctx context.Context, req rpc.Request, conn ConnInfo) rpc.Response {
	switch req.Kind {
	case rpc.KindSearch:
		return h.handleSearch(ctx, req)
	case rpc.KindInfo:
		return h.handleInfo(ctx, req)
	case rpc.KindStatus:
		return h.handleStatus(req)
	case rpc.KindExplicit:
		return h.handleExplicit(req)
	case rpc.KindUpdates:
		return h.handleUpdates(ctx, req)
	case rpc.KindComplete:
		return h.handleComplete(req)
	case rpc.KindInvalidate:
		return h.handleInvalidate(req)
	case rpc.KindBatch:
		return h.handleBatch(ctx, req, conn)
	case rpc.KindShutdown:
		return h.handleShutdown(req, conn)
	default:
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.ErrUnsupportedRequest)
	}
}

func (h *Handlers) handleSearch(ctx context.Context, req rpc.Request) rpc.Response {
	if req.Search == nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("search", "missing payload"))
	}
	if verr := validate.Query(req.Search.Query); verr != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, verr)
	}
	limit := validate.SearchLimit(req.Search.Limit)

	timer := metrics.NewTimer()
	key := searchCacheKey(req.Search.Query, limit)
	raw, hit, err := h.cacheOrComputeTracked(key, searchTTL, func() (interface{}, error) {
		packages, candidates := h.idx.SearchStats(req.Search.Query, limit)
		metrics.SearchCandidatesTotal.Observe(float64(candidates))
		return packages, nil
	})
	timer.ObserveDuration(metrics.SearchDuration)
	recordCacheOutcome(types.CacheSearch, hit)
	if err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInternal(err.Error()))
	}

	var packages []types.Package
	if err := json.Unmarshal(raw, &packages); err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInternal(err.Error()))
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind, Search: &rpc.SearchResponse{Packages: packages}}
}

func (h *Handlers) handleInfo(ctx context.Context, req rpc.Request) rpc.Response {
	if req.Info == nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("info", "missing payload"))
	}
	name := req.Info.Name
	if verr := validate.Name(name); verr != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, verr)
	}
	if isLocalFileName(name) {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("name", "local file paths are a CLI install argument, not a daemon query"))
	}

	key := infoCacheKey(name)
	raw, hit, err := h.cacheOrComputeTracked(key, infoTTL, func() (interface{}, error) {
		if pkg, ok := h.idx.Info(name); ok {
			return &pkg, nil
		}
		pkg, ok, err := h.be.Info(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("backend unavailable: %w", err)
		}
		if !ok {
			return (*types.Package)(nil), nil
		}
		return &pkg, nil
	})
	recordCacheOutcome(types.CacheInfo, hit)
	if err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewBackendUnavailable(err.Error()))
	}

	var pkg *types.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInternal(err.Error()))
	}
	if pkg == nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewNotFound(name))
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind, Info: &rpc.InfoResponse{Package: *pkg}}
}

func (h *Handlers) handleStatus(req rpc.Request) rpc.Response {
	return rpc.Response{ID: req.ID, Kind: req.Kind, Status: &rpc.StatusResponse{Status: h.agg.Current()}}
}

func (h *Handlers) handleExplicit(req rpc.Request) rpc.Response {
	snap := h.idx.Snapshot()
	explicit := 0
	var names []string
	for _, pkg := range snap.All() {
		if pkg.Explicit {
			explicit++
			names = append(names, pkg.Name)
		}
	}

	resp := &rpc.ExplicitResponse{Count: explicit}
	if req.Explicit == nil || !req.Explicit.CountOnly {
		resp.Names = names
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind, Explicit: resp}
}

func (h *Handlers) handleUpdates(ctx context.Context, req rpc.Request) rpc.Response {
	key := updatesCacheKey()
	raw, hit, err := h.cacheOrComputeTracked(key, updatesTTL, func() (interface{}, error) {
		updates, err := h.be.Updates(ctx)
		if err != nil {
			return nil, fmt.Errorf("backend unavailable: %w", err)
		}
		return updates, nil
	})
	recordCacheOutcome(types.CacheUpdates, hit)
	if err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewBackendUnavailable(err.Error()))
	}

	var updates []types.UpdateCandidate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInternal(err.Error()))
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind, Updates: &rpc.UpdatesResponse{Updates: updates}}
}

func (h *Handlers) handleComplete(req rpc.Request) rpc.Response {
	if req.Complete == nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("complete", "missing payload"))
	}
	if verr := validate.Prefix(req.Complete.Prefix); verr != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, verr)
	}
	limit := validate.CompleteLimit(req.Complete.Limit)

	key := completionCacheKey(req.Complete.Prefix, limit)
	raw, hit, err := h.cacheOrComputeTracked(key, completeTTL, func() (interface{}, error) {
		return h.idx.Prefix(req.Complete.Prefix, limit), nil
	})
	recordCacheOutcome(types.CacheCompletion, hit)
	if err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInternal(err.Error()))
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInternal(err.Error()))
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind, Complete: &rpc.CompleteResponse{Names: names}}
}

func (h *Handlers) handleInvalidate(req rpc.Request) rpc.Response {
	if req.Invalidate == nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("invalidate", "missing payload"))
	}
	if h.cache != nil {
		h.cache.InvalidateKind(req.Invalidate.Kind)
	}
	if h.store != nil {
		if ns, prefix, ok := namespaceForCacheKind(req.Invalidate.Kind); ok {
			if entries, err := h.store.Range(ns, prefix, 0); err == nil {
				for key := range entries {
					_ = h.store.Delete(ns, key)
				}
			}
		}
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind, Invalidate: &rpc.InvalidateResponse{Invalidated: true}}
}

func (h *Handlers) handleBatch(ctx context.Context, req rpc.Request, conn ConnInfo) rpc.Response {
	if req.Batch == nil {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("batch", "missing payload"))
	}
	if verr := validate.BatchLen(len(req.Batch.Requests)); verr != nil {
		return rpc.ErrorResponse(req.ID, req.Kind, verr)
	}

	responses := make([]rpc.Response, len(req.Batch.Requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)

	for i, sub := range req.Batch.Requests {
		i, sub := i, sub
		g.Go(func() error {
			responses[i] = h.Dispatch(gctx, sub, conn)
			return nil
		})
	}
	_ = g.Wait() // sub-handlers never return an error; failures are per-item Response.Error

	return rpc.Response{ID: req.ID, Kind: req.Kind, Batch: &rpc.BatchResponse{Responses: responses}}
}

func (h *Handlers) handleShutdown(req rpc.Request, conn ConnInfo) rpc.Response {
	if !conn.IsOwner {
		return rpc.ErrorResponse(req.ID, req.Kind, rpc.NewInvalidRequest("kind", "insufficient privileges"))
	}
	h.auditShutdown(conn.ConnID)
	if h.ShutdownFunc != nil {
		go h.ShutdownFunc()
	}
	return rpc.Response{ID: req.ID, Kind: req.Kind}
}

// auditShutdown records an accepted Shutdown under the audit_log PKV
// namespace, keyed by the issuing connection's id, so a post-mortem
// can tell which connection drained the daemon. Best-effort: a write
// failure here never fails the Shutdown response itself.
func (h *Handlers) auditShutdown(connID string) {
	if h.store == nil {
		return
	}
	key := fmt.Sprintf("%s-shutdown", connID)
	value := []byte(fmt.Sprintf("shutdown accepted at %s", time.Now().UTC().Format(time.RFC3339Nano)))
	if err := h.store.Put(pkv.NamespaceAuditLog, key, value, 0); err != nil {
		h.logger.Warn().Err(err).Msg("audit log write failed")
	}
}

// pkvCacheEntry is the durable envelope for a second-tier cache value:
// the payload plus the index generation it was computed against.
// Loading is load-then-validate — an entry from a previous generation
// is discarded and recomputed, never served.
type pkvCacheEntry struct {
	Value      json.RawMessage `json:"value"`
	Generation uint64          `json:"generation"`
}

// cacheOrComputeTracked is the two-tier cache composition shared by
// Search/Info/Updates/Complete: the in-memory TTL cache first, then
// the durable PKV namespace (which survives a restart), then compute.
// A computed value is written through to both tiers, JSON-encoded so
// the byte-oriented caches can store it uniformly. hit reports whether
// the first tier already held the value (for omg_cache_hits_total).
func (h *Handlers) cacheOrComputeTracked(key types.CacheKey, ttl time.Duration, compute func() (interface{}, error)) (raw []byte, hit bool, err error) {
	produce := func() ([]byte, error) {
		if cached, ok := h.loadPersisted(key); ok {
			return cached, nil
		}
		v, cerr := compute()
		if cerr != nil {
			return nil, cerr
		}
		encoded, merr := json.Marshal(v)
		if merr != nil {
			return nil, merr
		}
		h.persist(key, encoded, ttl)
		return encoded, nil
	}

	if h.cache == nil {
		raw, err = produce()
		return raw, false, err
	}

	computed := false
	raw, err = h.cache.GetOrInsert(key, ttl, func() ([]byte, error) {
		computed = true
		return produce()
	})
	return raw, !computed, err
}

// persist writes a freshly-computed value through to its PKV
// namespace, stamped with the producing index generation and the same
// ttl as the first tier. Best-effort: a storage failure leaves the
// in-memory tier working and is reported, not propagated.
func (h *Handlers) persist(key types.CacheKey, value []byte, ttl time.Duration) {
	ns, prefix, ok := namespaceForCacheKind(key.Kind)
	if !ok || h.store == nil {
		return
	}
	encoded, err := json.Marshal(pkvCacheEntry{Value: value, Generation: h.idx.Generation()})
	if err != nil {
		return
	}
	if err := h.store.Put(ns, prefix+key.Hash, encoded, int64(ttl)); err != nil {
		h.logger.Warn().Err(err).Str("kind", string(key.Kind)).Msg("cache write-through failed")
		metrics.Report(metrics.ComponentStorage, false, "cache write failed")
	}
}

// loadPersisted consults the durable second tier on a first-tier miss.
// Expiry is enforced below this layer — PKV reads report an entry past
// its ttl hint as absent — so validation here is the generation check
// only.
func (h *Handlers) loadPersisted(key types.CacheKey) ([]byte, bool) {
	ns, prefix, ok := namespaceForCacheKind(key.Kind)
	if !ok || h.store == nil {
		return nil, false
	}
	raw, err := h.store.Get(ns, prefix+key.Hash)
	if err != nil {
		return nil, false
	}
	var entry pkvCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.Generation != h.idx.Generation() {
		return nil, false
	}
	return entry.Value, true
}

func recordCacheOutcome(kind types.CacheKind, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
	}
}

func isLocalFileName(name string) bool {
	return strings.HasSuffix(name, ".deb") || strings.Contains(name, ".pkg.")
}

// namespaceForCacheKind maps a cache kind to its durable namespace and
// the key prefix its entries use there. Updates have no namespace of
// their own in the fixed set; they live beside the status snapshot —
// both are backend-derived state — under their own prefix, so
// invalidating the updates kind never touches the aggregator's
// snapshot key.
func namespaceForCacheKind(kind types.CacheKind) (pkv.Namespace, string, bool) {
	switch kind {
	case types.CacheSearch:
		return pkv.NamespaceSearchCache, "", true
	case types.CacheInfo:
		return pkv.NamespaceInfoCache, "", true
	case types.CacheCompletion:
		return pkv.NamespaceCompletionCache, "", true
	case types.CacheUpdates:
		return pkv.NamespaceStatusSnapshot, "updates:", true
	default:
		return "", "", false
	}
}
