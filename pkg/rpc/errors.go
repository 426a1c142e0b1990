package rpc

import "fmt"

// ErrorKind enumerates the wire-visible error taxonomy.
type ErrorKind string

const (
	KindProtocolError      ErrorKind = "protocol_error"
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindUnsupportedRequest ErrorKind = "unsupported_request"
	KindNotFound           ErrorKind = "not_found"
	KindBackendUnavailable ErrorKind = "backend_unavailable"
	KindRateLimited        ErrorKind = "rate_limited"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindInternal           ErrorKind = "internal"
)

// Error is the wire representation of a failed request. It implements
// the error interface so handlers can return it directly.
type Error struct {
	Kind   ErrorKind `json:"kind"`
	Field  string    `json:"field,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field=%s reason=%s", e.Kind, e.Field, e.Reason)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

// NewInvalidRequest builds an InvalidRequest error for a single field.
func NewInvalidRequest(field, reason string) *Error {
	return &Error{Kind: KindInvalidRequest, Field: field, Reason: reason}
}

// NewNotFound builds a NotFound error naming the missing package.
func NewNotFound(name string) *Error {
	return &Error{Kind: KindNotFound, Detail: name}
}

// NewBackendUnavailable builds a BackendUnavailable error naming the
// backend tag, or wrapping the underlying cause in Detail.
func NewBackendUnavailable(detail string) *Error {
	return &Error{Kind: KindBackendUnavailable, Detail: detail}
}

// NewInternal wraps an unexpected failure (including a recovered
// panic) as an Internal error, never leaking the original message to
// the client beyond a short description.
func NewInternal(detail string) *Error {
	return &Error{Kind: KindInternal, Detail: detail}
}

var (
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrUnsupportedRequest = &Error{Kind: KindUnsupportedRequest}
)
