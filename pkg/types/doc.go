/*
Package types defines the core data structures shared across the omg
daemon: packages, update candidates, the fast-status snapshot, and
cache keys/entries.

	┌──────────────────── DATA MODEL ───────────────────────────┐
	│  Package          — one package record (name, version,    │
	│                     source, installed/explicit, grade)    │
	│  UpdateCandidate  — name + current/new version + grade    │
	│  FastStatus       — fixed-layout mmap-able count snapshot  │
	│  CacheKey/Entry   — cache addressing shared by the TTL     │
	│                     cache and durable storage              │
	└─────────────────────────────────────────────────────────────┘

All types are plain structs; none hold locks or goroutines. Ownership
and lifecycle rules are documented per type below.
*/
package types
