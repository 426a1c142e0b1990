package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// nameWhitelist matches allowed package name / prefix characters.
var nameWhitelist = regexp.MustCompile(`^[A-Za-z0-9._+@/\-]+$`)

// ValidateName checks a package name or completion prefix against the
// whitelist shared by the data model and the validation layer:
// non-empty, length <= 200, whitelisted characters only, no ".."
// segments, not an absolute path.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > 200 {
		return fmt.Errorf("name exceeds 200 bytes")
	}
	if !nameWhitelist.MatchString(name) {
		return fmt.Errorf("name contains forbidden character")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("name must not be an absolute path")
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("name must not contain .. segments")
		}
	}
	return nil
}

// SourceKind tags where a package record came from.
type SourceKind string

const (
	SourceOfficialRepo SourceKind = "official_repo"
	SourceAUR          SourceKind = "aur"
	SourceAPT          SourceKind = "apt"
	SourceLocalFile    SourceKind = "local_file"
)

// Source identifies a package's origin. Only the field matching Kind is
// meaningful: Repo for SourceOfficialRepo, Component for SourceAPT, Path
// for SourceLocalFile.
type Source struct {
	Kind      SourceKind `json:"kind"`
	Repo      string     `json:"repo,omitempty"`
	Component string     `json:"component,omitempty"`
	Path      string     `json:"path,omitempty"`
}

func (s Source) String() string {
	switch s.Kind {
	case SourceOfficialRepo:
		return fmt.Sprintf("repo:%s", s.Repo)
	case SourceAPT:
		return fmt.Sprintf("apt:%s", s.Component)
	case SourceLocalFile:
		return fmt.Sprintf("file:%s", s.Path)
	default:
		return string(s.Kind)
	}
}

// Grade is the security posture assigned to a package by an external
// policy component. The daemon stores and serves this value; it never
// computes it.
type Grade string

const (
	GradeLocked    Grade = "locked"
	GradeVerified  Grade = "verified"
	GradeCommunity Grade = "community"
	GradeRisk      Grade = "risk"
	GradeUnknown   Grade = "unknown"
)

// Package is the unit of description served by the daemon.
type Package struct {
	Name             string     `json:"name"`
	Version          string     `json:"version"`
	Source           Source     `json:"source"`
	Description      string     `json:"description"`
	LongDescription  string     `json:"long_description,omitempty"`
	License          string     `json:"license,omitempty"`
	SizeBytes        int64      `json:"size_bytes"`
	Dependencies     []string   `json:"dependencies,omitempty"`
	Provides         []string   `json:"provides,omitempty"`
	Conflicts        []string   `json:"conflicts,omitempty"`
	Maintainer       string     `json:"maintainer,omitempty"`
	InstalledAt      *time.Time `json:"installed_at,omitempty"`
	Installed        bool       `json:"installed"`
	Explicit         bool       `json:"explicit"`
	Grade            Grade      `json:"grade"`
}

// Validate enforces the package record's invariants: whitelisted
// name, non-empty version, InstalledAt absent unless Installed, and
// Explicit implying Installed.
func (p *Package) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return fmt.Errorf("package name: %w", err)
	}
	if p.Version == "" {
		return fmt.Errorf("package %s: version must not be empty", p.Name)
	}
	if !p.Installed && p.InstalledAt != nil {
		return fmt.Errorf("package %s: installed_at set but not installed", p.Name)
	}
	if p.Explicit && !p.Installed {
		return fmt.Errorf("package %s: explicit implies installed", p.Name)
	}
	return nil
}

// UpdateCandidate describes an available update for an installed
// package. CurrentVersion < NewVersion is an invariant enforced by the
// backend's own version-ordering semantics, not generically checkable
// here since version comparison is backend-defined.
type UpdateCandidate struct {
	Name           string `json:"name"`
	CurrentVersion string `json:"current_version"`
	NewVersion     string `json:"new_version"`
	Source         Source `json:"source"`
	Grade          Grade  `json:"grade"`
}

// FastStatus is the in-memory form of the mmap-published status
// snapshot. BackendTag is stored unpadded here; padding to the fixed
// 8-byte wire field happens in pkg/status at encode time.
type FastStatus struct {
	SchemaVersion    uint32
	BackendStale     bool
	GeneratedAtNanos uint64
	TotalCount       uint64
	InstalledCount   uint64
	ExplicitCount    uint64
	UpdatesCount     uint64
	OrphanCount      uint64
	BackendTag       string
}

// CacheKind enumerates the cache/storage namespaces shared by the
// handlers, the TTL cache, and PKV.
type CacheKind string

const (
	CacheSearch        CacheKind = "search"
	CacheInfo          CacheKind = "info"
	CacheStatus        CacheKind = "status"
	CacheExplicit      CacheKind = "explicit"
	CacheUpdates       CacheKind = "updates"
	CacheSecurityGrade CacheKind = "security_grade"
	CacheCompletion    CacheKind = "completion"
)

// CacheKey addresses a single cached value.
type CacheKey struct {
	Kind CacheKind
	Hash string
}

func (k CacheKey) String() string {
	return string(k.Kind) + ":" + k.Hash
}

// CacheEntry is a single PTC/PKV cached value.
type CacheEntry struct {
	Value               []byte
	InsertedAt          time.Time
	TTL                 time.Duration
	ProducingGeneration uint64
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.InsertedAt) > e.TTL
}
