/*
Package pkv provides bbolt-backed durable key/value storage for the omg
daemon: cache entries, index fingerprints, and status snapshots that
must survive a daemon restart.

	┌──────────────────── PKV STORAGE ──────────────────────────┐
	│  Store                                                     │
	│  - File: <dataDir>/omg.db                                  │
	│  - Format: bbolt B+tree, one bucket per namespace          │
	│  - Transactions: single-writer/multi-reader, ACID          │
	│                                                             │
	│  Namespaces (fixed, compile-time):                         │
	│    search_cache | info_cache | status_snapshot             │
	│    index_fingerprint | completion_cache | audit_log        │
	└─────────────────────────────────────────────────────────────┘

A Put may carry a ttl hint, stored as an absolute deadline; Get and
Range treat an entry past its deadline as absent (lazy expiry — no
background sweeper, the next overwrite reclaims the space). A zero
hint never expires.

Every call is best-effort from the caller's point of view: a Get/Put/
Delete/Range failure is reported as an error, but handlers must still
function (more slowly, uncached) when PKV is empty or unavailable.
Corrupt database files are detected on Open and returned as an error,
never silently rebuilt.
*/
package pkv
