package index

import (
	"sort"
	"strings"

	"github.com/cuemby/omg/pkg/types"
)

// MaxSearchLimit is the hard internal cap on results returned by
// Search/Prefix regardless of the caller-requested limit.
const MaxSearchLimit = 1000

type scoredMatch struct {
	idx   int
	score int
}

// Search runs a two-stage lookup: a substring
// pre-filter over lowercased names capped at MaxCandidates, then a
// fuzzy rescoring pass over the surviving candidates. Results are
// ordered by score descending, then name length ascending, then name
// lexicographically, and truncated to limit (itself clamped to
// MaxSearchLimit).
func (s *IndexSnapshot) Search(query string, limit int) []types.Package {
	out, _ := s.SearchStats(query, limit)
	return out
}

// SearchStats runs the same lookup as Search but also reports how many
// substring-prefilter candidates survived before rescoring and
// truncation, for omg_search_candidates_total.
func (s *IndexSnapshot) SearchStats(query string, limit int) ([]types.Package, int) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0
	}
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	lowerQuery := strings.ToLower(query)

	candidates := make([]scoredMatch, 0, limit)
	for i, lowerName := range s.lowerNames {
		pos := strings.Index(lowerName, lowerQuery)
		if pos < 0 {
			continue
		}
		candidates = append(candidates, scoredMatch{idx: i, score: scoreMatch(s.packages[i].Name, query, pos)})
		if len(candidates) >= MaxCandidates {
			break
		}
	}
	candidateCount := len(candidates)

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		na, nb := s.packages[ca.idx].Name, s.packages[cb.idx].Name
		if len(na) != len(nb) {
			return len(na) < len(nb)
		}
		return na < nb
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]types.Package, len(candidates))
	for i, c := range candidates {
		out[i] = s.packages[c.idx]
	}
	return out, candidateCount
}

// scoreMatch scores a confirmed substring match at byte offset pos
// within name's lowercased form. Earlier matches and exact-case
// matches score higher; a match at position 0 (a prefix match) gets a
// further bonus. The scale is arbitrary but deterministic, which is
// all the tie-break rule in Search requires.
func scoreMatch(name, query string, pos int) int {
	score := 1000 - pos*2
	if pos == 0 {
		score += 500
	}
	if strings.Contains(name, query) {
		score += 200
	}
	return score
}

// Prefix returns up to limit package names beginning with prefix
// (case-insensitive), the completion lookup.
// A prefix at least DefaultPrefixKeyLen bytes long hits the
// first-k-byte bucket directly (IndexSnapshot.prefixIndex) — an O(k)
// bucket lookup over a handful of candidates, rather than a scan of
// the whole name space. A shorter prefix can't name a single bucket
// (it's a prefix of many of them), so it falls back to a binary
// search over the name-sorted index, O(log n + k).
func (s *IndexSnapshot) Prefix(prefix string, limit int) []string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	lowerPrefix := strings.ToLower(prefix)

	if len(lowerPrefix) >= DefaultPrefixKeyLen {
		return s.prefixBucketLookup(lowerPrefix, limit)
	}
	return s.prefixScanLookup(lowerPrefix, limit)
}

// prefixBucketLookup serves a prefix at least DefaultPrefixKeyLen
// bytes long from its single prefixIndex bucket, filtering for the
// (possibly longer) exact prefix and returning names in sorted order.
func (s *IndexSnapshot) prefixBucketLookup(lowerPrefix string, limit int) []string {
	bucket := s.prefixIndex[lowerPrefix[:DefaultPrefixKeyLen]]
	if len(bucket) == 0 {
		return nil
	}

	matches := make([]int, 0, len(bucket))
	for _, idx := range bucket {
		if strings.HasPrefix(s.lowerNames[idx], lowerPrefix) {
			matches = append(matches, idx)
		}
	}
	sort.Slice(matches, func(a, b int) bool {
		return s.lowerNames[matches[a]] < s.lowerNames[matches[b]]
	})

	out := make([]string, 0, limit)
	for _, idx := range matches {
		if len(out) >= limit {
			break
		}
		out = append(out, s.packages[idx].Name)
	}
	return out
}

// prefixScanLookup serves a prefix shorter than DefaultPrefixKeyLen via
// a binary search over the name-sorted index.
func (s *IndexSnapshot) prefixScanLookup(lowerPrefix string, limit int) []string {
	start := sort.Search(len(s.sortedByName), func(i int) bool {
		return s.lowerNames[s.sortedByName[i]] >= lowerPrefix
	})

	var out []string
	for i := start; i < len(s.sortedByName) && len(out) < limit; i++ {
		idx := s.sortedByName[i]
		if !strings.HasPrefix(s.lowerNames[idx], lowerPrefix) {
			break
		}
		out = append(out, s.packages[idx].Name)
	}
	return out
}
