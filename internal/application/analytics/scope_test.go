package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/domain/citation"
	"github.com/citescope/citescope/pkg/errors"
)

// mockGraph is a function-field test double for citation.GraphAccessor.
type mockGraph struct {
	streamEdgesFn       func(ctx context.Context, q citation.EdgeQuery, fn citation.EdgeHandler) error
	resolveAssigneesFn  func(ctx context.Context, names []string) ([]citation.AssigneeRef, error)
	assetsByAssigneesFn func(ctx context.Context, ids []uuid.UUID, limit int) ([]string, error)
	getAssetsFn         func(ctx context.Context, ids []string) ([]*citation.Asset, error)
	getCalibrationFn    func(ctx context.Context) (*citation.Calibration, error)
}

func (m *mockGraph) StreamEdges(ctx context.Context, q citation.EdgeQuery, fn citation.EdgeHandler) error {
	if m.streamEdgesFn == nil {
		return nil
	}
	return m.streamEdgesFn(ctx, q, fn)
}

func (m *mockGraph) ResolveAssignees(ctx context.Context, names []string) ([]citation.AssigneeRef, error) {
	if m.resolveAssigneesFn == nil {
		return nil, nil
	}
	return m.resolveAssigneesFn(ctx, names)
}

func (m *mockGraph) AssetsByAssignees(ctx context.Context, ids []uuid.UUID, limit int) ([]string, error) {
	if m.assetsByAssigneesFn == nil {
		return nil, nil
	}
	return m.assetsByAssigneesFn(ctx, ids, limit)
}

func (m *mockGraph) GetAssets(ctx context.Context, ids []string) ([]*citation.Asset, error) {
	if m.getAssetsFn == nil {
		assets := make([]*citation.Asset, 0, len(ids))
		for _, id := range ids {
			assets = append(assets, &citation.Asset{ID: id})
		}
		return assets, nil
	}
	return m.getAssetsFn(ctx, ids)
}

func (m *mockGraph) GetCalibration(ctx context.Context) (*citation.Calibration, error) {
	if m.getCalibrationFn == nil {
		return nil, nil
	}
	return m.getCalibrationFn(ctx)
}

// mockSearcher is a function-field test double for citation.AssetSearcher.
type mockSearcher struct {
	searchAssetsFn func(ctx context.Context, f citation.SearchFilters, limit int) ([]string, error)
}

func (m *mockSearcher) SearchAssets(ctx context.Context, f citation.SearchFilters, limit int) ([]string, error) {
	if m.searchAssetsFn == nil {
		return nil, nil
	}
	return m.searchAssetsFn(ctx, f, limit)
}

func TestResolveAssigneeMode(t *testing.T) {
	acme := uuid.New()
	graph := &mockGraph{
		resolveAssigneesFn: func(_ context.Context, names []string) ([]citation.AssigneeRef, error) {
			assert.Equal(t, []string{"Acme Corp"}, names)
			return []citation.AssigneeRef{{ID: acme, Name: "Acme Corp"}}, nil
		},
		assetsByAssigneesFn: func(_ context.Context, ids []uuid.UUID, limit int) ([]string, error) {
			assert.Equal(t, []uuid.UUID{acme}, ids)
			assert.Equal(t, 500, limit)
			return []string{"US-2", "US-1", "US-1"}, nil
		},
	}
	resolver := NewResolver(graph, nil, ResolverConfig{}, nil)

	set, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:          citation.ScopeModeAssignee,
		AssigneeNames: []string{"Acme Corp"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"US-1", "US-2"}, set.AssetIDs)
	assert.Equal(t, []uuid.UUID{acme}, set.AssigneeIDs)
	assert.True(t, set.AssigneeMode())
	assert.True(t, set.Contains("US-1"))
}

func TestResolveAssigneeModeNoMatchIsEmptyScope(t *testing.T) {
	graph := &mockGraph{
		resolveAssigneesFn: func(_ context.Context, _ []string) ([]citation.AssigneeRef, error) {
			return nil, nil
		},
	}
	resolver := NewResolver(graph, nil, ResolverConfig{}, nil)

	set, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:          citation.ScopeModeAssignee,
		AssigneeNames: []string{"Nobody GmbH"},
	})
	require.NoError(t, err)
	assert.Zero(t, set.Size())
	// The scope stays assignee mode even though nothing matched, so the
	// encroachment precondition still holds.
	assert.True(t, set.AssigneeMode())
}

func TestResolveIdentifiersDropsUnknown(t *testing.T) {
	graph := &mockGraph{
		getAssetsFn: func(_ context.Context, ids []string) ([]*citation.Asset, error) {
			assets := make([]*citation.Asset, 0, len(ids))
			for _, id := range ids {
				if id == "US-404" {
					continue
				}
				assets = append(assets, &citation.Asset{ID: id, AssigneeName: "Acme Corp"})
			}
			return assets, nil
		},
	}
	resolver := NewResolver(graph, nil, ResolverConfig{}, nil)

	set, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:     citation.ScopeModeIdentifiers,
		AssetIDs: []string{"US-1", "US-404", "US-2", "US-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"US-1", "US-2"}, set.AssetIDs)
	assert.Equal(t, 1, set.UnknownIdentifiers)
	assert.Equal(t, "Acme Corp", set.Assets["US-1"].AssigneeName)
}

func TestResolveFiltersNormalizesCPCPrefix(t *testing.T) {
	var got citation.SearchFilters
	searcher := &mockSearcher{
		searchAssetsFn: func(_ context.Context, f citation.SearchFilters, limit int) ([]string, error) {
			got = f
			assert.Equal(t, 500, limit)
			return []string{"US-9"}, nil
		},
	}
	resolver := NewResolver(&mockGraph{}, searcher, ResolverConfig{}, nil)

	set, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:    citation.ScopeModeFilters,
		Filters: &citation.SearchFilters{CPCPrefix: " h01m 10 "},
	})
	require.NoError(t, err)
	assert.Equal(t, "H01M10", got.CPCPrefix)
	assert.Equal(t, []string{"US-9"}, set.AssetIDs)
}

func TestResolveFiltersWithoutSearcher(t *testing.T) {
	resolver := NewResolver(&mockGraph{}, nil, ResolverConfig{}, nil)

	_, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:    citation.ScopeModeFilters,
		Filters: &citation.SearchFilters{Keyword: "battery"},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidScope, errors.GetCode(err))
}

func TestResolveTruncatesAtMaxScopeSize(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("US-%02d", i)
	}
	resolver := NewResolver(&mockGraph{}, nil, ResolverConfig{MaxScopeSize: 4}, nil)

	set, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:     citation.ScopeModeIdentifiers,
		AssetIDs: ids,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, set.Size())
	assert.Equal(t, []string{"US-00", "US-01", "US-02", "US-03"}, set.AssetIDs)
}

func TestResolveMaxScopeSizeClampedToCeiling(t *testing.T) {
	resolver := NewResolver(&mockGraph{}, nil, ResolverConfig{MaxScopeSize: 5000, ScopeSizeCeiling: 800}, nil)
	assert.Equal(t, 800, resolver.cfg.MaxScopeSize)
}

func TestResolveInvalidDefinition(t *testing.T) {
	resolver := NewResolver(&mockGraph{}, nil, ResolverConfig{}, nil)

	_, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{Mode: "portfolio"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidScope, errors.GetCode(err))

	_, err = resolver.Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidScope, errors.GetCode(err))
}

func TestResolveLowercasesCompetitors(t *testing.T) {
	resolver := NewResolver(&mockGraph{}, nil, ResolverConfig{}, nil)

	set, err := resolver.Resolve(context.Background(), &citation.ScopeDefinition{
		Mode:        citation.ScopeModeIdentifiers,
		AssetIDs:    []string{"US-1"},
		Competitors: []string{" Rival Inc ", "OtherCo"},
	})
	require.NoError(t, err)
	assert.True(t, set.IsCompetitor("RIVAL INC"))
	assert.True(t, set.IsCompetitor("otherco"))
	assert.False(t, set.IsCompetitor("acme corp"))
}

func TestNormalizeCPCPrefix(t *testing.T) {
	assert.Equal(t, "H01M10", NormalizeCPCPrefix(" h01m 10 "))
	assert.Equal(t, "G06F", NormalizeCPCPrefix("G06F"))
	assert.Equal(t, "", NormalizeCPCPrefix("   "))
}
