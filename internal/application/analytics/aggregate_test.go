package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/pkg/errors"
)

func scopeOf(ids ...string) *citation.ScopeSet {
	set := citation.NewScopeSet(ids)
	for _, id := range set.AssetIDs {
		set.Assets[id] = &citation.Asset{ID: id, AssigneeName: "Acme Corp"}
	}
	return set
}

func edgeTo(cited string, citing string, day time.Time) *citation.CitationEdge {
	return &citation.CitationEdge{
		CitingID:       citing,
		CitedID:        cited,
		CitingDate:     &day,
		CitingAssignee: "Rival Inc",
	}
}

func TestAggregatorEmptyScope(t *testing.T) {
	called := false
	graph := &mockGraph{
		streamEdgesFn: func(context.Context, citation.EdgeQuery, citation.EdgeHandler) error {
			called = true
			return nil
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{}, nil)

	aggs, err := agg.Run(context.Background(), scopeOf(), citation.BucketMonth)
	require.NoError(t, err)
	assert.Zero(t, aggs.EdgeCount)
	assert.False(t, called, "empty scope must not hit the graph store")
}

func TestAggregatorStreamsOnce(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var gotQuery citation.EdgeQuery
	graph := &mockGraph{
		streamEdgesFn: func(_ context.Context, q citation.EdgeQuery, fn citation.EdgeHandler) error {
			gotQuery = q
			require.NoError(t, fn(edgeTo("US-1", "EP-9", day)))
			require.NoError(t, fn(edgeTo("US-1", "EP-8", day.AddDate(0, 1, 0))))
			return nil
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{MaxEdges: 100}, nil)

	aggs, err := agg.Run(context.Background(), scopeOf("US-1"), citation.BucketMonth)
	require.NoError(t, err)

	assert.Equal(t, citation.DirectionBoth, gotQuery.Direction)
	assert.Equal(t, 101, gotQuery.Limit)
	assert.Equal(t, 2, aggs.EdgeCount)
	assert.Equal(t, 2, aggs.Assets["US-1"].ForwardTotal)
}

func TestAggregatorEdgeCap(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	graph := &mockGraph{
		streamEdgesFn: func(_ context.Context, _ citation.EdgeQuery, fn citation.EdgeHandler) error {
			for i := 0; i < 10; i++ {
				if err := fn(edgeTo("US-1", "EP-9", day)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{MaxEdges: 3}, nil)

	_, err := agg.Run(context.Background(), scopeOf("US-1"), citation.BucketMonth)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeScopeTooLarge, errors.GetCode(err))
	assert.Contains(t, err.Error(), "3")
}

func TestAggregatorRetriesTransientFailureOnce(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	attempts := 0
	graph := &mockGraph{
		streamEdgesFn: func(_ context.Context, _ citation.EdgeQuery, fn citation.EdgeHandler) error {
			attempts++
			if attempts == 1 {
				// Partial stream before the failure; the retry must not
				// double-count these edges.
				require.NoError(t, fn(edgeTo("US-1", "EP-9", day)))
				return errors.New(errors.ErrCodeUpstreamError, "connection reset")
			}
			require.NoError(t, fn(edgeTo("US-1", "EP-9", day)))
			require.NoError(t, fn(edgeTo("US-1", "EP-8", day)))
			return nil
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{RetryBackoff: time.Millisecond}, nil)

	aggs, err := agg.Run(context.Background(), scopeOf("US-1"), citation.BucketMonth)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, aggs.EdgeCount)
	assert.Equal(t, 2, aggs.Assets["US-1"].ForwardTotal)
}

func TestAggregatorRetriesAtMostOnce(t *testing.T) {
	attempts := 0
	graph := &mockGraph{
		streamEdgesFn: func(context.Context, citation.EdgeQuery, citation.EdgeHandler) error {
			attempts++
			return errors.New(errors.ErrCodeUpstreamError, "connection reset")
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{RetryBackoff: time.Millisecond}, nil)

	_, err := agg.Run(context.Background(), scopeOf("US-1"), citation.BucketMonth)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, errors.ErrCodeUpstreamError, errors.GetCode(err))
}

func TestAggregatorDoesNotRetryTimeout(t *testing.T) {
	attempts := 0
	graph := &mockGraph{
		streamEdgesFn: func(context.Context, citation.EdgeQuery, citation.EdgeHandler) error {
			attempts++
			return errors.New(errors.ErrCodeUpstreamTimeout, "deadline exceeded")
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{RetryBackoff: time.Millisecond}, nil)

	_, err := agg.Run(context.Background(), scopeOf("US-1"), citation.BucketMonth)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, errors.ErrCodeUpstreamTimeout, errors.GetCode(err))
}

func TestAggregatorDoesNotRetryAfterCancellation(t *testing.T) {
	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	graph := &mockGraph{
		streamEdgesFn: func(context.Context, citation.EdgeQuery, citation.EdgeHandler) error {
			attempts++
			cancel()
			return errors.New(errors.ErrCodeUpstreamError, "connection reset")
		},
	}
	agg := NewAggregator(graph, AggregatorConfig{RetryBackoff: time.Minute}, nil)

	_, err := agg.Run(ctx, scopeOf("US-1"), citation.BucketMonth)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
