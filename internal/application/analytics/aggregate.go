package analytics

import (
	"context"
	"time"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

// AggregatorConfig bounds the streaming pass.
type AggregatorConfig struct {
	// MaxEdges aborts the pass with ScopeTooLarge once exceeded.
	MaxEdges int
	// RetryBackoff is the delay before the single retry on a transient
	// upstream failure.
	RetryBackoff time.Duration
}

// Aggregator runs the single streaming aggregation pass that feeds all four
// views.
type Aggregator struct {
	graph  citation.GraphAccessor
	cfg    AggregatorConfig
	logger logging.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(graph citation.GraphAccessor, cfg AggregatorConfig, logger logging.Logger) *Aggregator {
	if cfg.MaxEdges <= 0 {
		cfg.MaxEdges = 250000
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Aggregator{graph: graph, cfg: cfg, logger: logger}
}

// Run streams every citation edge touching the scope exactly once and folds
// it into a fresh accumulator.  A transient upstream failure is retried once
// from scratch so no edge is double-counted.
func (a *Aggregator) Run(ctx context.Context, scope *citation.ScopeSet, gran citation.BucketGranularity) (*citation.AggregateSet, error) {
	if scope.Size() == 0 {
		return citation.NewAggregateSet(scope, gran), nil
	}

	aggs, err := a.stream(ctx, scope, gran)
	if err != nil && errors.IsCode(err, errors.ErrCodeUpstreamError) && ctx.Err() == nil {
		a.logger.Warn("edge stream failed, retrying once", logging.Err(err))
		select {
		case <-time.After(a.cfg.RetryBackoff):
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeUpstreamTimeout, "edge stream cancelled")
		}
		aggs, err = a.stream(ctx, scope, gran)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Debug("aggregation pass complete",
		logging.Int("assets", scope.Size()),
		logging.Int("edges", aggs.EdgeCount),
	)
	return aggs, nil
}

func (a *Aggregator) stream(ctx context.Context, scope *citation.ScopeSet, gran citation.BucketGranularity) (*citation.AggregateSet, error) {
	aggs := citation.NewAggregateSet(scope, gran)
	query := citation.EdgeQuery{
		AssetIDs:  scope.AssetIDs,
		Direction: citation.DirectionBoth,
		From:      scope.From,
		To:        scope.To,
		Limit:     a.cfg.MaxEdges + 1,
	}

	err := a.graph.StreamEdges(ctx, query, func(edge *citation.CitationEdge) error {
		if aggs.EdgeCount >= a.cfg.MaxEdges {
			return errors.Newf(errors.ErrCodeScopeTooLarge,
				"citation volume exceeds the processing cap of %d edges; narrow the scope or window", a.cfg.MaxEdges)
		}
		aggs.Observe(edge)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aggs, nil
}
