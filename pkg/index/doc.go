/*
Package index implements the in-memory package index: fuzzy search,
prefix completion, and exact info lookup over an immutable,
generation-numbered snapshot built from a backend's package universe.

	┌──────────────────── PACKAGE INDEX ─────────────────────────┐
	│  IndexSnapshot (immutable, one per generation)              │
	│    packages []types.Package                                 │
	│    lowerNames []string        (parallel, for substring scan)│
	│    sortedByName []int         (binary search over names)    │
	│    prefixIndex map[string][]int  (first-k-byte buckets)     │
	│    byName map[string]int      (exact lookup)                │
	│    fingerprint, generation                                  │
	│                                                               │
	│  Index                                                       │
	│    atomic.Pointer[IndexSnapshot] — readers never block a     │
	│    generation swap, and a handler that started before a      │
	│    swap never observes a mix of old and new data             │
	└────────────────────────────────────────────────────────────────┘

Search is two-stage: a substring pre-filter over the
lowercased-name vector, capped at MaxCandidates, then a
fuzzy rescoring pass over those candidates. Ties break by score
descending, then name length ascending, then name lexicographically —
deterministic and stable.

Each rebuilt generation's source is also persisted to durable storage
(pkg/pkv, index_fingerprint namespace), so a restarted daemon restores
its last index via LoadPersisted before the first backend round trip;
the saved fingerprint makes the subsequent rebuild a no-op when the
backend hasn't changed.
*/
package index
