/*
Package status implements the status aggregator: a ticker-driven
background loop that recomputes package counts from the index and the
active backend, and publishes them as a fixed-layout file other
processes can mmap without talking to the daemon over the socket.

	Idle ──ticker fires──▶ Refreshing ──counts computed──▶ Publishing ──▶ Idle
	  ▲                                                                    │
	  └────────────────────────────────────────────────────────────────────┘

Concurrent refresh triggers (ticker tick racing an explicit Refresh or
Invalidate call) are coalesced with golang.org/x/sync/singleflight — only one
refresh runs at a time; callers arriving while one is in flight share
its result instead of starting a second.

The published file is written tempfile-then-rename: the
daemon never mutates the live file in place, so a concurrent mmap reader
always sees either the old or the new generation, never a half-written
one. A trailing CRC64 checksum lets readers detect a torn write from a
crash between the rename and a fsync landing on disk.
*/
package status
