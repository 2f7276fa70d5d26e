package client

import (
	"context"
	"time"
)

// CitationClient exposes the citation analytics endpoints.
type CitationClient struct {
	client *Client
}

// Scope modes.
const (
	ScopeModeAssignee    = "assignee"
	ScopeModeIdentifiers = "identifiers"
	ScopeModeFilters     = "filters"
)

// Risk sort keys.
const (
	SortByOverall          = "overall"
	SortByExposure         = "exposure"
	SortByFragility        = "fragility"
	SortByForwardCitations = "forward_citations"
)

// SearchFilters is the payload for filter-mode scopes.
type SearchFilters struct {
	Keyword          string `json:"keyword,omitempty"`
	CPCPrefix        string `json:"cpc_prefix,omitempty"`
	AssigneeContains string `json:"assignee_contains,omitempty"`
}

// Scope selects the portfolio the analytics run over.
type Scope struct {
	Mode          string         `json:"mode"`
	AssigneeNames []string       `json:"assignee_names,omitempty"`
	AssetIDs      []string       `json:"asset_ids,omitempty"`
	Filters       *SearchFilters `json:"filters,omitempty"`
	From          *time.Time     `json:"from,omitempty"`
	To            *time.Time     `json:"to,omitempty"`
	Bucket        string         `json:"bucket,omitempty"`
	Competitors   []string       `json:"competitors,omitempty"`
}

// ImpactRequest parameterises the impact view.
type ImpactRequest struct {
	Scope Scope `json:"scope"`
	TopN  int   `json:"top_n,omitempty"`
}

// RiskRequest parameterises the risk radar.
type RiskRequest struct {
	Scope  Scope  `json:"scope"`
	TopN   int    `json:"top_n,omitempty"`
	SortBy string `json:"sort_by,omitempty"`
}

// MatrixRequest parameterises the dependency matrix.
type MatrixRequest struct {
	Scope        Scope `json:"scope"`
	MinCitations int   `json:"min_citations,omitempty"`
	Normalize    bool  `json:"normalize,omitempty"`
	TopK         int   `json:"top_k,omitempty"`
}

// EncroachmentRequest parameterises the encroachment view.
type EncroachmentRequest struct {
	Scope Scope `json:"scope"`
	TopN  int   `json:"top_n,omitempty"`
}

// PortfolioRequest asks for all four views at once.
type PortfolioRequest struct {
	Scope        Scope  `json:"scope"`
	TopN         int    `json:"top_n,omitempty"`
	SortBy       string `json:"sort_by,omitempty"`
	MinCitations int    `json:"min_citations,omitempty"`
	Normalize    bool   `json:"normalize,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
}

// TimelinePoint is one bucket of a trend series.
type TimelinePoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Count       int       `json:"count"`
}

// ImpactPatent is one row of the impact top list.
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

// ImpactResult is the impact view.
type ImpactResult struct {
	TotalForwardCitations int             `json:"total_forward_citations"`
	DistinctCitingPatents int             `json:"distinct_citing_patents"`
	MedianVelocity        float64         `json:"median_velocity"`
	Timeline              []TimelinePoint `json:"timeline"`
	TopPatents            []ImpactPatent  `json:"top_patents"`
	UnknownIdentifiers    int             `json:"unknown_identifiers,omitempty"`
}

// RiskPatent is one scored asset.
type RiskPatent struct {
	ID           string  `json:"id"`
	Exposure     float64 `json:"exposure"`
	Fragility    float64 `json:"fragility"`
	Overall      float64 `json:"overall"`
	ForwardCount int     `json:"forward_count"`
	Velocity     float64 `json:"velocity"`
	CPCEntropy   float64 `json:"cpc_entropy"`
}

// RiskResult is the risk radar view.
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

// MatrixResult is the dependency matrix view.
type MatrixResult struct {
	Edges      []MatrixEdge `json:"edges"`
	Matrix     [][]float64  `json:"matrix"`
	AxisLabels []string     `json:"axis_labels"`
}

// EncroachmentSeriesPoint is one assignee's count in a bucket.
type EncroachmentSeriesPoint struct {
	Assignee string `json:"assignee"`
	Count    int    `json:"count"`
}

// EncroachmentBucket groups series points by bucket start.
type EncroachmentBucket struct {
	BucketStart time.Time                 `json:"bucket_start"`
	Series      []EncroachmentSeriesPoint `json:"series"`
}

// EncroachmentAssignee is one competitor row.
type EncroachmentAssignee struct {
	Assignee     string  `json:"assignee"`
	TotalCiting  int     `json:"total_citing"`
	Encroachment float64 `json:"encroachment"`
	Velocity     float64 `json:"velocity"`
}

// EncroachmentResult is the encroachment view.
type EncroachmentResult struct {
	PreconditionMet bool                   `json:"precondition_met"`
	Timeline        []EncroachmentBucket   `json:"timeline"`
	Assignees       []EncroachmentAssignee `json:"assignees"`
}

// PortfolioReport bundles all four views.
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

// Impact computes the forward-citation impact view.
func (cc *CitationClient) Impact(ctx context.Context, req *ImpactRequest) (*ImpactResult, error) {
	var result ImpactResult
	if err := cc.client.post(ctx, "/api/v1/citation/impact", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RiskRadar computes the risk radar view.
func (cc *CitationClient) RiskRadar(ctx context.Context, req *RiskRequest) (*RiskResult, error) {
	var result RiskResult
	if err := cc.client.post(ctx, "/api/v1/citation/risk-radar", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DependencyMatrix computes the assignee dependency matrix.
func (cc *CitationClient) DependencyMatrix(ctx context.Context, req *MatrixRequest) (*MatrixResult, error) {
	var result MatrixResult
	if err := cc.client.post(ctx, "/api/v1/citation/dependency-matrix", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Encroachment computes the encroachment view.
func (cc *CitationClient) Encroachment(ctx context.Context, req *EncroachmentRequest) (*EncroachmentResult, error) {
	var result EncroachmentResult
	if err := cc.client.post(ctx, "/api/v1/citation/encroachment", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Portfolio computes all four views from one scope resolution.
func (cc *CitationClient) Portfolio(ctx context.Context, req *PortfolioRequest) (*PortfolioReport, error) {
	var report PortfolioReport
	if err := cc.client.post(ctx, "/api/v1/citation/portfolio", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ExportRiskRadar stores a risk-radar snapshot and returns its receipt.
func (cc *CitationClient) ExportRiskRadar(ctx context.Context, req *RiskRequest) (*ExportReceipt, error) {
	var receipt ExportReceipt
	if err := cc.client.post(ctx, "/api/v1/citation/risk-radar/export", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}
