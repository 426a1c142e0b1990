package rpc

import "github.com/cuemby/omg/pkg/types"

// RequestKind enumerates the closed set of request shapes the wire
// protocol defines. An unrecognized kind on the wire yields
// UnsupportedRequest rather than a decode failure, so old clients
// talking to a newer daemon (or vice versa) degrade gracefully.
type RequestKind string

const (
	KindSearch     RequestKind = "search"
	KindInfo       RequestKind = "info"
	KindStatus     RequestKind = "status"
	KindExplicit   RequestKind = "explicit"
	KindUpdates    RequestKind = "updates"
	KindComplete   RequestKind = "complete"
	KindInvalidate RequestKind = "invalidate"
	KindBatch      RequestKind = "batch"
	KindShutdown   RequestKind = "shutdown"
)

// CompletionKind distinguishes what a Complete request is completing.
// The daemon currently only completes package names; the field is
// wire-visible so a future completion domain (e.g. repo names) can be
// added without a new request kind.
type CompletionKind string

const CompletionPackageName CompletionKind = "package_name"

// Request is the versioned envelope every decoded frame carries. Kind
// selects which of the optional payload fields is populated.
type Request struct {
	ID         uint64             `json:"id"`
	Kind       RequestKind        `json:"kind"`
	Search     *SearchRequest     `json:"search,omitempty"`
	Info       *InfoRequest       `json:"info,omitempty"`
	Explicit   *ExplicitRequest   `json:"explicit,omitempty"`
	Complete   *CompleteRequest   `json:"complete,omitempty"`
	Invalidate *InvalidateRequest `json:"invalidate,omitempty"`
	Batch      *BatchRequest      `json:"batch,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit uint32 `json:"limit,omitempty"`
}

type InfoRequest struct {
	Name string `json:"name"`
}

type ExplicitRequest struct {
	CountOnly bool `json:"count_only"`
}

type CompleteRequest struct {
	Prefix string         `json:"prefix"`
	Kind   CompletionKind `json:"kind"`
	Limit  uint32         `json:"limit,omitempty"`
}

type InvalidateRequest struct {
	Kind types.CacheKind `json:"kind"`
}

type BatchRequest struct {
	Requests []Request `json:"requests"`
}

// Response mirrors Request: Kind plus the matching optional payload,
// or Error when the request failed. ID echoes the originating
// Request.ID.
type Response struct {
	ID         uint64              `json:"id"`
	Kind       RequestKind         `json:"kind"`
	Error      *Error              `json:"error,omitempty"`
	Search     *SearchResponse     `json:"search,omitempty"`
	Info       *InfoResponse       `json:"info,omitempty"`
	Status     *StatusResponse     `json:"status,omitempty"`
	Explicit   *ExplicitResponse   `json:"explicit,omitempty"`
	Updates    *UpdatesResponse    `json:"updates,omitempty"`
	Complete   *CompleteResponse   `json:"complete,omitempty"`
	Invalidate *InvalidateResponse `json:"invalidate,omitempty"`
	Batch      *BatchResponse      `json:"batch,omitempty"`
}

type SearchResponse struct {
	Packages []types.Package `json:"packages"`
}

type InfoResponse struct {
	Package types.Package `json:"package"`
}

type StatusResponse struct {
	Status types.FastStatus `json:"status"`
}

type ExplicitResponse struct {
	Names []string `json:"names,omitempty"`
	Count int      `json:"count"`
}

type UpdatesResponse struct {
	Updates []types.UpdateCandidate `json:"updates"`
}

type CompleteResponse struct {
	Names []string `json:"names"`
}

type InvalidateResponse struct {
	Invalidated bool `json:"invalidated"`
}

type BatchResponse struct {
	Responses []Response `json:"responses"`
}

// ErrorResponse builds a Response carrying err for the given request,
// preserving id and kind so the client can still correlate it.
func ErrorResponse(id uint64, kind RequestKind, err *Error) Response {
	return Response{ID: id, Kind: kind, Error: err}
}
