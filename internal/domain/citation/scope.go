package citation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citescope/citescope/pkg/errors"
)

// ScopeMode selects how a scope definition identifies its assets.
type ScopeMode string

const (
	// ScopeModeAssignee resolves assets owned by the named organisations.
	ScopeModeAssignee ScopeMode = "assignee"
	// ScopeModeIdentifiers names assets directly by identifier.
	ScopeModeIdentifiers ScopeMode = "identifiers"
	// ScopeModeFilters resolves assets through a search query.
	ScopeModeFilters ScopeMode = "filters"
)

// SearchFilters is the payload for filter-mode scopes.  At least one field
// must be set.
type SearchFilters struct {
	Keyword          string `json:"keyword,omitempty"`
	CPCPrefix        string `json:"cpc_prefix,omitempty"`
	AssigneeContains string `json:"assignee_contains,omitempty"`
}

// Empty reports whether no filter field is set.
func (f SearchFilters) Empty() bool {
	return strings.TrimSpace(f.Keyword) == "" &&
		strings.TrimSpace(f.CPCPrefix) == "" &&
		strings.TrimSpace(f.AssigneeContains) == ""
}

// ScopeDefinition declares the set of assets an analysis run operates on,
// plus the optional citing-date window, bucket granularity, and competitor
// list shared by every view.
type ScopeDefinition struct {
	Mode          ScopeMode         `json:"mode"`
	AssigneeNames []string          `json:"assignee_names,omitempty"`
	AssetIDs      []string          `json:"asset_ids,omitempty"`
	Filters       *SearchFilters    `json:"filters,omitempty"`
	From          *time.Time        `json:"from,omitempty"`
	To            *time.Time        `json:"to,omitempty"`
	Bucket        BucketGranularity `json:"bucket,omitempty"`
	Competitors   []string          `json:"competitors,omitempty"`
}

// Validate checks the definition's structural invariants.  Every violation
// maps to the invalid-scope error code so handlers answer 400.
func (d *ScopeDefinition) Validate() error {
	switch d.Mode {
	case ScopeModeAssignee:
		if len(nonBlank(d.AssigneeNames)) == 0 {
			return errors.New(errors.ErrCodeInvalidScope, "assignee mode requires at least one assignee name")
		}
	case ScopeModeIdentifiers:
		if len(nonBlank(d.AssetIDs)) == 0 {
			return errors.New(errors.ErrCodeInvalidScope, "identifiers mode requires at least one asset identifier")
		}
	case ScopeModeFilters:
		if d.Filters == nil || d.Filters.Empty() {
			return errors.New(errors.ErrCodeInvalidScope, "filters mode requires at least one search filter")
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidScope, "unknown scope mode %q", d.Mode)
	}

	if d.From != nil && d.To != nil && d.From.After(*d.To) {
		return errors.New(errors.ErrCodeInvalidScope, "scope window start is after its end")
	}
	if d.Bucket != "" && !d.Bucket.Valid() {
		return errors.Newf(errors.ErrCodeInvalidScope, "unknown bucket granularity %q", d.Bucket)
	}
	return nil
}

// Granularity returns the effective bucket width, defaulting to monthly.
func (d *ScopeDefinition) Granularity() BucketGranularity {
	if d.Bucket.Valid() {
		return d.Bucket
	}
	return BucketMonth
}

// CacheKey returns a deterministic digest of the definition, suitable as a
// cache key.  Equal definitions always digest identically regardless of
// list ordering.
func (d *ScopeDefinition) CacheKey() string {
	var b strings.Builder
	b.WriteString(string(d.Mode))
	b.WriteByte('|')
	writeSorted(&b, nonBlank(d.AssigneeNames))
	b.WriteByte('|')
	writeSorted(&b, nonBlank(d.AssetIDs))
	b.WriteByte('|')
	if d.Filters != nil {
		fmt.Fprintf(&b, "%s,%s,%s", d.Filters.Keyword, d.Filters.CPCPrefix, d.Filters.AssigneeContains)
	}
	b.WriteByte('|')
	if d.From != nil {
		b.WriteString(d.From.UTC().Format(time.RFC3339))
	}
	b.WriteByte('|')
	if d.To != nil {
		b.WriteString(d.To.UTC().Format(time.RFC3339))
	}
	b.WriteByte('|')
	b.WriteString(string(d.Granularity()))
	b.WriteByte('|')
	writeSorted(&b, nonBlank(d.Competitors))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func writeSorted(b *strings.Builder, in []string) {
	sorted := append([]string(nil), in...)
	sort.Strings(sorted)
	for i, s := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s)
	}
}

// ScopeSet is a resolved, deduplicated scope.  AssetIDs is sorted ascending
// so downstream output is deterministic for equal definitions.
type ScopeSet struct {
	// Mode records which selection mode the definition used.  Encroachment
	// keys its precondition off this rather than the resolved contents, so
	// an assignee scope that matched nothing still counts as assignee mode.
	Mode     ScopeMode
	AssetIDs []string
	// Assets indexes the scope's asset records by identifier.  Membership
	// checks during edge streaming go through this map.
	Assets map[string]*Asset
	// From/To is the effective citing-date window.  Either side may be nil,
	// in which case the aggregation derives it from observed edge dates.
	From *time.Time
	To   *time.Time
	// AssigneeIDs holds the resolved target organisations for assignee-mode
	// scopes; empty otherwise.
	AssigneeIDs []uuid.UUID
	// UnknownIdentifiers counts identifiers from the definition that matched
	// no known asset and were dropped.
	UnknownIdentifiers int
	// Competitors holds lowercased competitor names from the definition.
	Competitors map[string]bool
}

// NewScopeSet builds a ScopeSet from raw identifiers: trims, deduplicates,
// and sorts.
func NewScopeSet(ids []string) *ScopeSet {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	sort.Strings(unique)
	return &ScopeSet{
		AssetIDs: unique,
		Assets:   make(map[string]*Asset, len(unique)),
	}
}

// Size returns the number of assets in scope.
func (s *ScopeSet) Size() int {
	return len(s.AssetIDs)
}

// Contains reports whether id is part of the scope.
func (s *ScopeSet) Contains(id string) bool {
	_, ok := s.Assets[id]
	return ok
}

// AssigneeMode reports whether the scope originated from assignee names,
// which is the precondition for encroachment analysis.
func (s *ScopeSet) AssigneeMode() bool {
	return s.Mode == ScopeModeAssignee
}

// IsCompetitor reports whether the named assignee is on the competitor list.
// With an empty list every assignee other than the asset's own counts.
func (s *ScopeSet) IsCompetitor(name string) bool {
	if len(s.Competitors) == 0 {
		return false
	}
	return s.Competitors[strings.ToLower(strings.TrimSpace(name))]
}
