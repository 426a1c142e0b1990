package validate

import (
	"fmt"

	"github.com/cuemby/omg/pkg/rpc"
	"github.com/cuemby/omg/pkg/types"
)

const (
	MaxQueryLen  = 500
	MaxPrefixLen = 200
	MaxBatchLen  = 100

	DefaultSearchLimit = 50
	MaxSearchLimit     = 1000

	DefaultCompleteLimit = 20
	MaxCompleteLimit     = 500

	// InternalHardCap bounds every limit-bearing request regardless of
	// what the caller asks for or what a higher per-kind cap allows.
	InternalHardCap = 5000
)

// Name validates a package name against the shared whitelist.
func Name(name string) *rpc.Error {
	if err := types.ValidateName(name); err != nil {
		return rpc.NewInvalidRequest("name", err.Error())
	}
	return nil
}

// Query validates a Search query string: length <= MaxQueryLen, any
// byte except the control codes < 0x20 and 0x7F. An empty query is
// valid — Search answers "" with an empty result, so rejecting it
// here would turn a legitimate empty-result answer into
// InvalidRequest.
func Query(query string) *rpc.Error {
	if len(query) > MaxQueryLen {
		return rpc.NewInvalidRequest("query", fmt.Sprintf("exceeds %d bytes", MaxQueryLen))
	}
	for _, b := range []byte(query) {
		if b < 0x20 || b == 0x7F {
			return rpc.NewInvalidRequest("query", "contains control character")
		}
	}
	return nil
}

// Prefix validates a Complete prefix: length <= MaxPrefixLen, and (if
// non-empty) the same character whitelist as a package name. An empty
// prefix is valid; the index answers it with no names.
func Prefix(prefix string) *rpc.Error {
	if len(prefix) > MaxPrefixLen {
		return rpc.NewInvalidRequest("prefix", fmt.Sprintf("exceeds %d bytes", MaxPrefixLen))
	}
	if prefix == "" {
		return nil
	}
	if err := types.ValidateName(prefix); err != nil {
		return rpc.NewInvalidRequest("prefix", err.Error())
	}
	return nil
}

// BatchLen validates the number of sub-requests in a Batch request.
func BatchLen(n int) *rpc.Error {
	if n > MaxBatchLen {
		return rpc.NewInvalidRequest("requests", fmt.Sprintf("exceeds %d items", MaxBatchLen))
	}
	return nil
}

// SearchLimit resolves a caller-supplied Search limit (0 means
// "unspecified") to an effective limit, applying the default and both
// the per-kind and internal hard caps.
func SearchLimit(requested uint32) int {
	return resolveLimit(requested, DefaultSearchLimit, MaxSearchLimit)
}

// CompleteLimit resolves a caller-supplied Complete limit the same way
// SearchLimit does, with Complete's own default and cap.
func CompleteLimit(requested uint32) int {
	return resolveLimit(requested, DefaultCompleteLimit, MaxCompleteLimit)
}

func resolveLimit(requested uint32, def, cap int) int {
	limit := def
	if requested > 0 {
		limit = int(requested)
	}
	if limit > cap {
		limit = cap
	}
	if limit > InternalHardCap {
		limit = InternalHardCap
	}
	return limit
}
