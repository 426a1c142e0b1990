package pkv

import "errors"

// Namespace is one of the fixed compile-time PKV namespaces.
type Namespace string

const (
	NamespaceSearchCache      Namespace = "search_cache"
	NamespaceInfoCache        Namespace = "info_cache"
	NamespaceStatusSnapshot   Namespace = "status_snapshot"
	NamespaceIndexFingerprint Namespace = "index_fingerprint"
	NamespaceCompletionCache  Namespace = "completion_cache"
	NamespaceAuditLog         Namespace = "audit_log"
)

// namespaces is the full enumerated set, used to create buckets on open
// and to validate namespace arguments.
var namespaces = []Namespace{
	NamespaceSearchCache,
	NamespaceInfoCache,
	NamespaceStatusSnapshot,
	NamespaceIndexFingerprint,
	NamespaceCompletionCache,
	NamespaceAuditLog,
}

// ErrStorageUnavailable is returned when PKV cannot be opened or a
// transaction cannot be started against an open database.
var ErrStorageUnavailable = errors.New("pkv: storage unavailable")

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("pkv: key not found")

// Store is the daemon's durable key/value contract.
type Store interface {
	// Get performs a read-only lookup. It returns ErrNotFound if the key
	// is absent from the namespace.
	Get(namespace Namespace, key string) ([]byte, error)

	// Put writes a value under key in namespace. A positive
	// ttlHintNanos is recorded as an absolute deadline alongside the
	// value: a Get or Range past the deadline treats the entry as
	// absent (lazy expiry, no background sweeper). Zero means the
	// entry never expires.
	Put(namespace Namespace, key string, value []byte, ttlHintNanos int64) error

	// Delete removes key from namespace. Deleting an absent key is not
	// an error.
	Delete(namespace Namespace, key string) error

	// Range returns up to limit key/value pairs in namespace whose key
	// starts with prefix, as a map keyed by entry key (so the result
	// carries no order). The scan visits keys in order, so a limit keeps
	// the first matches by key; a limit of 0 or less returns every match.
	Range(namespace Namespace, prefix string, limit int) (map[string][]byte, error)

	// Close flushes and closes the underlying database file.
	Close() error
}
