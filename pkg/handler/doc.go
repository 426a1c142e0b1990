/*
Package handler implements the daemon's request handlers: one pure
composition per request kind over the cache (pkg/cache), the package
index (pkg/index), the backend adapter (pkg/backend), durable storage
(pkg/pkv) and the status aggregator (pkg/status). Handlers never talk
to the socket directly — pkg/daemon decodes a frame into an rpc.Request,
calls Dispatch, and encodes the rpc.Response back.

The cached kinds (Search, Info, Updates, Complete) run two tiers deep:
the in-memory TTL cache first, then the durable PKV namespace, then
compute. Computed values are written through to both tiers; a value
loaded from the durable tier is only served if the index generation it
was computed against is still current.

Batch dispatch uses golang.org/x/sync/errgroup to bound concurrency at
16 in-flight sub-requests while preserving the caller's input order in
the response.
*/
package handler
