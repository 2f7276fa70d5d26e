package citation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EdgeQuery describes one streaming fetch against the citation graph.
type EdgeQuery struct {
	AssetIDs  []string
	Direction Direction
	// From/To bound the citing document's publication date; nil means open.
	From *time.Time
	To   *time.Time
	// Limit caps the number of edges the backend may return.  Zero means
	// the backend default.
	Limit int
}

// EdgeHandler receives each streamed edge.  Returning an error aborts the
// stream and propagates out of StreamEdges.
type EdgeHandler func(edge *CitationEdge) error

// GraphAccessor is the citation-graph read contract.  Both the relational
// and the graph-database backends implement it.
type GraphAccessor interface {
	// StreamEdges invokes fn once per matching edge without materialising
	// the full result.
	StreamEdges(ctx context.Context, q EdgeQuery, fn EdgeHandler) error

	// ResolveAssignees maps organisation names to canonical assignee
	// records.  Names that match nothing are simply absent from the result.
	ResolveAssignees(ctx context.Context, names []string) ([]AssigneeRef, error)

	// AssetsByAssignees lists asset identifiers owned by the given
	// organisations, capped at limit.
	AssetsByAssignees(ctx context.Context, ids []uuid.UUID, limit int) ([]string, error)

	// GetAssets fetches asset records for the given identifiers.  Unknown
	// identifiers are omitted from the result.
	GetAssets(ctx context.Context, ids []string) ([]*Asset, error)

	// GetCalibration returns the current portfolio calibration snapshot.
	GetCalibration(ctx context.Context) (*Calibration, error)
}

// AssetSearcher resolves filter-mode scopes through the search index.
type AssetSearcher interface {
	SearchAssets(ctx context.Context, f SearchFilters, limit int) ([]string, error)
}
