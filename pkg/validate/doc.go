/*
Package validate implements validation and governance: the checks
that run before any handler dispatch. A violation always yields an
immediate Error response — no handler or backend is ever invoked for a
rejected request.

Per-connection rate limiting uses golang.org/x/time/rate, a token
bucket implementation; it is the natural fit for a soft per-connection
rate limit where excess requests get RateLimited rather than a
hand-rolled counter.
*/
package validate
