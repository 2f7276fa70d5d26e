// Package citation implements the citation-analytics bounded context: patent
// assets, citation edges, analysis scopes, and the aggregate shapes the
// scoring pipeline consumes.  All business rules that concern citation
// analytics live here; persistence and transport are handled by separate
// repository and adapter layers.
package citation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction selects which side of the citation relation a query follows.
type Direction string

const (
	// DirectionForward follows edges where the scope asset is cited.
	DirectionForward Direction = "forward"
	// DirectionBackward follows edges where the scope asset is citing.
	DirectionBackward Direction = "backward"
	// DirectionBoth follows both at once, for single-pass aggregation.
	DirectionBoth Direction = "both"
)

// BucketGranularity selects the time-bucket width for trend series.
type BucketGranularity string

const (
	BucketMonth   BucketGranularity = "month"
	BucketQuarter BucketGranularity = "quarter"
)

// Valid reports whether g is a supported granularity.
func (g BucketGranularity) Valid() bool {
	return g == BucketMonth || g == BucketQuarter
}

// Truncate returns the bucket start containing t, in UTC.
func (g BucketGranularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case BucketQuarter:
		qm := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), qm, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the bucket following the one that starts at t.
func (g BucketGranularity) Next(t time.Time) time.Time {
	if g == BucketQuarter {
		return t.AddDate(0, 3, 0)
	}
	return t.AddDate(0, 1, 0)
}

// Asset is a patent document inside an analysis scope.
type Asset struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	AssigneeID   *uuid.UUID `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	PubDate      *time.Time `json:"pub_date,omitempty"`
	CPCCodes     []string   `json:"cpc_codes,omitempty"`
}

// AssigneeKey returns the canonical grouping key for the asset's assignee.
func (a *Asset) AssigneeKey() string {
	return AssigneeKey(a.AssigneeID, a.AssigneeName)
}

// CitationEdge is one directed citation between two patent documents.  The
// accessor fills whichever CPC side the query direction needs; absent fields
// stay zero.
type CitationEdge struct {
	CitingID         string
	CitedID          string
	CitingDate       *time.Time
	CitingAssigneeID *uuid.UUID
	CitingAssignee   string
	CitedAssigneeID  *uuid.UUID
	CitedAssignee    string
	CitingCPCCodes   []string
	CitedCPCCodes    []string
}

// CitingAssigneeKey returns the grouping key for the citing side.
func (e *CitationEdge) CitingAssigneeKey() string {
	return AssigneeKey(e.CitingAssigneeID, e.CitingAssignee)
}

// CitedAssigneeKey returns the grouping key for the cited side.
func (e *CitationEdge) CitedAssigneeKey() string {
	return AssigneeKey(e.CitedAssigneeID, e.CitedAssignee)
}

// UnknownAssignee is the display label used when neither a canonical
// assignee identifier nor a name is available.
const UnknownAssignee = "Unknown"

// AssigneeKey derives the canonical grouping key for an assignee: the
// canonical identifier when known, otherwise the lowercased trimmed name.
// Records with neither collapse into a single "unknown" group.
func AssigneeKey(id *uuid.UUID, name string) string {
	if id != nil && *id != uuid.Nil {
		return id.String()
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return strings.ToLower(UnknownAssignee)
	}
	return name
}

// AssigneeLabel returns the display name for an assignee, falling back to
// UnknownAssignee when the name is blank.
func AssigneeLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnknownAssignee
	}
	return name
}

// AssigneeRef pairs a canonical assignee identifier with its display name.
type AssigneeRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Calibration is the portfolio-wide normalization snapshot used by exposure
// scoring.  P95Forward is the 95th-percentile forward-citation count across
// the reference corpus.
type Calibration struct {
	P95Forward float64   `json:"p95_forward"`
	AsOf       time.Time `json:"as_of"`
}
