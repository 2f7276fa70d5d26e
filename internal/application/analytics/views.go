// Package analytics implements the citation-analytics application layer:
// scope resolution, the streaming aggregation pass, score computation, and
// the four analytic views assembled from one resolved scope.
package analytics

import (
	"time"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/pkg/errors"
)

// Sort keys accepted by the risk view.
const (
	SortByOverall          = "overall"
	SortByExposure         = "exposure"
	SortByFragility        = "fragility"
	SortByForwardCitations = "forward_citations"
)

// ImpactRequest parameterises the forward-citation impact view.
type ImpactRequest struct {
	Scope citation.ScopeDefinition `json:"scope"`
	TopN  int                      `json:"top_n,omitempty"`
}

// Validate checks the request's structural integrity.
func (r *ImpactRequest) Validate() error {
	if r.TopN < 0 {
		return errors.NewValidation("top_n must not be negative")
	}
	return r.Scope.Validate()
}

// RiskRequest parameterises the risk-radar view.
type RiskRequest struct {
	Scope  citation.ScopeDefinition `json:"scope"`
	TopN   int                      `json:"top_n,omitempty"`
	SortBy string                   `json:"sort_by,omitempty"`
}

// Validate checks the request's structural integrity.
func (r *RiskRequest) Validate() error {
	if r.TopN < 0 {
		return errors.NewValidation("top_n must not be negative")
	}
	switch r.SortBy {
	case "", SortByOverall, SortByExposure, SortByFragility, SortByForwardCitations:
	default:
		return errors.NewValidation("sort_by %q is not one of overall|exposure|fragility|forward_citations", r.SortBy)
	}
	return r.Scope.Validate()
}

// MatrixRequest parameterises the dependency-matrix view.
type MatrixRequest struct {
	Scope        citation.ScopeDefinition `json:"scope"`
	MinCitations int                      `json:"min_citations,omitempty"`
	Normalize    bool                     `json:"normalize,omitempty"`
	TopK         int                      `json:"top_k,omitempty"`
}

// Validate checks the request's structural integrity.
func (r *MatrixRequest) Validate() error {
	if r.MinCitations < 0 {
		return errors.NewValidation("min_citations must not be negative")
	}
	if r.TopK < 0 {
		return errors.NewValidation("top_k must not be negative")
	}
	return r.Scope.Validate()
}

// EncroachmentRequest parameterises the encroachment view.
type EncroachmentRequest struct {
	Scope citation.ScopeDefinition `json:"scope"`
	TopN  int                      `json:"top_n,omitempty"`
}

// Validate checks the request's structural integrity.
func (r *EncroachmentRequest) Validate() error {
	if r.TopN < 0 {
		return errors.NewValidation("top_n must not be negative")
	}
	return r.Scope.Validate()
}

// PortfolioRequest asks for all four views from one scope resolution.
type PortfolioRequest struct {
	Scope        citation.ScopeDefinition `json:"scope"`
	TopN         int                      `json:"top_n,omitempty"`
	SortBy       string                   `json:"sort_by,omitempty"`
	MinCitations int                      `json:"min_citations,omitempty"`
	Normalize    bool                     `json:"normalize,omitempty"`
	TopK         int                      `json:"top_k,omitempty"`
}

// Validate checks the request's structural integrity.
func (r *PortfolioRequest) Validate() error {
	risk := RiskRequest{Scope: r.Scope, TopN: r.TopN, SortBy: r.SortBy}
	if err := risk.Validate(); err != nil {
		return err
	}
	if r.MinCitations < 0 {
		return errors.NewValidation("min_citations must not be negative")
	}
	if r.TopK < 0 {
		return errors.NewValidation("top_k must not be negative")
	}
	return nil
}

// TimelinePoint is one zero-filled bucket of the trend series.
type TimelinePoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Count       int       `json:"count"`
}

// ImpactPatent is one row of the impact view's top list.
type ImpactPatent struct {
	ID             string     `json:"id"`
	Title          string     `json:"title,omitempty"`
	Assignee       string     `json:"assignee,omitempty"`
	PubDate        *time.Time `json:"pub_date,omitempty"`
	ForwardCount   int        `json:"forward_count"`
	DistinctCiting int        `json:"distinct_citing"`
	Velocity       float64    `json:"velocity"`
	FirstCiteDate  *time.Time `json:"first_cite_date,omitempty"`
	LastCiteDate   *time.Time `json:"last_cite_date,omitempty"`
}

// ImpactResult is the forward-citation impact view.
type ImpactResult struct {
	TotalForwardCitations int             `json:"total_forward_citations"`
	DistinctCitingPatents int             `json:"distinct_citing_patents"`
	MedianVelocity        float64         `json:"median_velocity"`
	Timeline              []TimelinePoint `json:"timeline"`
	TopPatents            []ImpactPatent  `json:"top_patents"`
	UnknownIdentifiers    int             `json:"unknown_identifiers,omitempty"`
}

// RiskPatent is one scored asset of the risk radar.
type RiskPatent struct {
	ID           string  `json:"id"`
	Exposure     float64 `json:"exposure"`
	Fragility    float64 `json:"fragility"`
	Overall      float64 `json:"overall"`
	ForwardCount int     `json:"forward_count"`
	Velocity     float64 `json:"velocity"`
	CPCEntropy   float64 `json:"cpc_entropy"`
}

// RiskResult is the risk-radar view.
type RiskResult struct {
	Patents         []RiskPatent `json:"patents"`
	Uncalibrated    bool         `json:"uncalibrated,omitempty"`
	CalibrationAsOf *time.Time   `json:"calibration_as_of,omitempty"`
}

// MatrixEdge is one directed assignee dependency.
type MatrixEdge struct {
	CitingAssignee string  `json:"citing_assignee"`
	CitedAssignee  string  `json:"cited_assignee"`
	Weight         float64 `json:"weight"`
}

// MatrixResult is the dependency-matrix view: the full edge list for tables
// plus the reduced top-K square matrix for heatmaps.
type MatrixResult struct {
	Edges      []MatrixEdge `json:"edges"`
	Matrix     [][]float64  `json:"matrix"`
	AxisLabels []string     `json:"axis_labels"`
}

// EncroachmentSeriesPoint is one assignee's count inside a trend bucket.
type EncroachmentSeriesPoint struct {
	Assignee string `json:"assignee"`
	Count    int    `json:"count"`
}

// EncroachmentBucket groups series points by bucket start.
type EncroachmentBucket struct {
	BucketStart time.Time                 `json:"bucket_start"`
	Series      []EncroachmentSeriesPoint `json:"series"`
}

// EncroachmentAssignee is one competitor row of the encroachment view.
type EncroachmentAssignee struct {
	Assignee     string  `json:"assignee"`
	TotalCiting  int     `json:"total_citing"`
	Encroachment float64 `json:"encroachment"`
	Velocity     float64 `json:"velocity"`
}

// EncroachmentResult is the encroachment view.  PreconditionMet is false
// when the scope has no assignee-mode source; that is a documented empty
// state, not an error.
type EncroachmentResult struct {
	PreconditionMet bool                   `json:"precondition_met"`
	Timeline        []EncroachmentBucket   `json:"timeline"`
	Assignees       []EncroachmentAssignee `json:"assignees"`
}

// PortfolioReport bundles all four views from one scope resolution.  A view
// that failed carries its error message in Errors keyed by view name; its
// pointer stays nil.
type PortfolioReport struct {
	Impact       *ImpactResult       `json:"impact,omitempty"`
	Risk         *RiskResult         `json:"risk,omitempty"`
	Matrix       *MatrixResult       `json:"matrix,omitempty"`
	Encroachment *EncroachmentResult `json:"encroachment,omitempty"`
	Errors       map[string]string   `json:"errors,omitempty"`
}

// ExportReceipt acknowledges a stored risk-radar snapshot.
type ExportReceipt struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url,omitempty"`
	Size      int64  `json:"size"`
	Assets    int    `json:"assets"`
}
